// Package tracker decides whether a classified message is a new lead, a
// follow-up on a tracked lead, or related chatter in the same conversation.
package tracker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfman30/leadtriage/internal/classify"
	"github.com/wolfman30/leadtriage/internal/extract"
	"github.com/wolfman30/leadtriage/internal/leads"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

const (
	// SimilarityThreshold is the Jaccard score a message must exceed to be
	// treated as related to a recent context message.
	SimilarityThreshold = 0.7
	// SimilarityWindow is how many recent context messages are compared.
	SimilarityWindow = 5
)

var (
	approvedRE = regexp.MustCompile(`(?i)\bapproved\b`)
	rejectedRE = regexp.MustCompile(`(?i)\brejected\b`)
)

// Outcome is the tracker's verdict on a message.
type Outcome string

const (
	OutcomeNewLead   Outcome = "new_lead"
	OutcomeFollowUp  Outcome = "follow_up"
	OutcomeRelated   Outcome = "related"
	OutcomeUnrelated Outcome = "unrelated"
)

// LeadStore is the subset of the lead store the tracker reads and mutates.
type LeadStore interface {
	Get(id string) (leads.Lead, error)
	Update(ctx context.Context, id string, patch leads.Patch) (leads.Lead, error)
}

// Message is one classified inbound message.
type Message struct {
	ConversationID string
	Text           string
	Result         classify.Result
}

// Decision is the outcome plus the result annotated with dedup flags.
type Decision struct {
	Outcome    Outcome
	Result     classify.Result
	Lead       *leads.Lead
	Ambiguous  bool
	Similarity float64
}

// Tracker owns the identifier index, conversation context and handler claims.
// It is not safe for concurrent Evaluate calls; the triage engine serialises them.
type Tracker struct {
	store   LeadStore
	index   *Index
	context *ConversationContext
	claims  *Claims
	logger  *logging.Logger
}

func New(store LeadStore, claims *Claims, logger *logging.Logger) *Tracker {
	if store == nil {
		panic("tracker: store required")
	}
	if claims == nil {
		claims = NewClaims(DefaultClaimTTL)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Tracker{
		store:   store,
		index:   NewIndex(),
		context: NewConversationContext(DefaultContextSize),
		claims:  claims,
		logger:  logger.Component("tracker"),
	}
}

// ExtractIdentifiers pulls dedup identifiers out of raw text.
func ExtractIdentifiers(text string) extract.Identifiers {
	return extract.Extract(text).Identifiers()
}

// Rebuild repopulates the index from the authoritative record set.
func (t *Tracker) Rebuild(records []leads.Lead) {
	t.index.Reset()
	for _, rec := range records {
		t.index.Add(rec.ID, rec.Identifiers)
	}
	t.logger.Info("identifier index rebuilt", "leads", len(records), "keys", t.index.Len())
}

// FindByIdentifier returns the lead matching any identifier. When several
// distinct leads match, the most recently updated wins and ambiguous is set.
func (t *Tracker) FindByIdentifier(ids extract.Identifiers) (lead leads.Lead, found, ambiguous bool, err error) {
	candidates := t.index.Lookup(ids)
	if len(candidates) == 0 {
		return leads.Lead{}, false, false, nil
	}

	var lookupErr error
	for _, id := range candidates {
		l, getErr := t.store.Get(id)
		if getErr != nil {
			lookupErr = fmt.Errorf("tracker: load lead %s: %w", id, getErr)
			continue
		}
		if !found || l.UpdatedAt.After(lead.UpdatedAt) {
			lead = l
		}
		found = true
	}
	if !found {
		return leads.Lead{}, false, false, lookupErr
	}
	return lead, true, len(candidates) > 1, nil
}

// Evaluate classifies msg against tracked state. Identifier matches are
// follow-ups even when the classifier said "not a lead"; otherwise non-leads
// are unrelated, near-duplicates of recent context are related, and the rest
// are new leads. Lookup failures fall through to new-lead creation.
func (t *Tracker) Evaluate(ctx context.Context, msg Message) Decision {
	res := msg.Result
	ids, _ := res.Fields.Identifiers().Merge(ExtractIdentifiers(msg.Text))

	lead, found, ambiguous, err := t.FindByIdentifier(ids)
	if err != nil {
		t.logger.Warn("identifier lookup failed, treating as no match", "conversation_id", msg.ConversationID, "error", err)
	}
	if found {
		return t.followUp(ctx, msg, res, lead, ids, ambiguous)
	}

	if !res.IsLead {
		res.IsNewLead = false
		return Decision{Outcome: OutcomeUnrelated, Result: res}
	}

	if score := t.maxSimilarity(msg.ConversationID, msg.Text); score > SimilarityThreshold {
		t.context.Append(msg.ConversationID, msg.Text)
		res.IsNewLead = false
		res.RelatedToExisting = true
		res.Reasoning = appendReason(res.Reasoning, fmt.Sprintf("similar to recent message (jaccard %.2f)", score))
		return Decision{Outcome: OutcomeRelated, Result: res, Similarity: score}
	}

	res.IsNewLead = true
	res.RelatedToExisting = false
	return Decision{Outcome: OutcomeNewLead, Result: res}
}

func (t *Tracker) followUp(ctx context.Context, msg Message, res classify.Result, lead leads.Lead, ids extract.Identifiers, ambiguous bool) Decision {
	status, detail := FollowUpStatus(msg.Text)
	detail["conversationId"] = msg.ConversationID
	patch := leads.Patch{
		Status:      &status,
		Identifiers: &ids,
		Action:      leads.ActionFollowUp,
		Detail:      detail,
	}
	if ambiguous {
		detail["ambiguous"] = "true"
	}

	updated, err := t.store.Update(ctx, lead.ID, patch)
	if err != nil {
		t.logger.Warn("follow-up update failed", "lead_id", lead.ID, "error", err)
		updated = lead
	} else {
		t.index.Add(updated.ID, updated.Identifiers)
	}
	t.claims.Set(lead.ID, msg.ConversationID)
	t.context.Append(msg.ConversationID, msg.Text)

	res.IsNewLead = false
	res.RelatedToExisting = true
	reason := "follow-up to lead " + lead.ID
	if ambiguous {
		reason += " (ambiguous: identifiers matched several leads, chose most recently updated)"
	}
	res.Reasoning = appendReason(res.Reasoning, reason)
	return Decision{Outcome: OutcomeFollowUp, Result: res, Lead: &updated, Ambiguous: ambiguous}
}

// FollowUpStatus maps follow-up text to a lead status. "approved" closes the
// lead, "rejected" marks it lost, anything else is InProgress with the text
// kept as lastMessage.
func FollowUpStatus(text string) (leads.Status, map[string]string) {
	switch {
	case approvedRE.MatchString(text):
		return leads.StatusClosed, map[string]string{"keyword": "approved"}
	case rejectedRE.MatchString(text):
		return leads.StatusLost, map[string]string{"keyword": "rejected"}
	default:
		return leads.StatusInProgress, map[string]string{"lastMessage": text}
	}
}

// Register indexes a newly created lead and records its text in context.
func (t *Tracker) Register(lead leads.Lead) {
	t.index.Add(lead.ID, lead.Identifiers)
	t.context.Append(lead.ConversationID, lead.RawMessage)
}

// Reindex adds a lead's current identifiers to the index without touching
// conversation context. Used after operator edits.
func (t *Tracker) Reindex(lead leads.Lead) {
	t.index.Add(lead.ID, lead.Identifiers)
}

// ClaimForReply atomically claims a lead for its own conversation. false
// means someone is already handling it and no automated reply should go out.
func (t *Tracker) ClaimForReply(leadID, conversationID string) bool {
	return t.claims.TryClaim(leadID, conversationID)
}

// Claims exposes the claim set for maintenance pruning.
func (t *Tracker) Claims() *Claims {
	return t.claims
}

func (t *Tracker) maxSimilarity(conversationID, text string) float64 {
	tokens := Tokens(text)
	best := 0.0
	for _, prev := range t.context.Recent(conversationID, SimilarityWindow) {
		if s := Jaccard(tokens, Tokens(prev)); s > best {
			best = s
		}
	}
	return best
}

func appendReason(base, extra string) string {
	if strings.TrimSpace(base) == "" {
		return extra
	}
	return base + "; " + extra
}
