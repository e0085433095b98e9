package leads

import (
	"strings"
	"time"

	"github.com/wolfman30/leadtriage/internal/extract"
)

// Status is the lead lifecycle state.
type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "InProgress"
	StatusClosed     Status = "Closed"
	StatusLost       Status = "Lost"
)

// ParseStatus accepts the canonical names case-insensitively, plus
// "in_progress"/"in progress".
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(s)))
	switch norm {
	case "new":
		return StatusNew, nil
	case "inprogress":
		return StatusInProgress, nil
	case "closed":
		return StatusClosed, nil
	case "lost":
		return StatusLost, nil
	}
	return "", ErrInvalidStatus
}

// Priority is computed once when a lead is created.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// PriorityFor maps deal size and urgency to a priority bucket.
func PriorityFor(amount float64, urgent bool) Priority {
	switch {
	case urgent || amount > 100000:
		return PriorityHigh
	case amount > 50000:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// History actions.
const (
	ActionCreated  = "Created"
	ActionUpdated  = "Updated"
	ActionFollowUp = "FollowUp"
)

// HistoryEntry is one append-only audit record on a lead.
type HistoryEntry struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	Timestamp time.Time         `json:"timestamp"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Lead is the persisted record of a detected sales lead.
type Lead struct {
	ID                string              `json:"id"`
	ConversationID    string              `json:"conversationId"`
	SourceDescription string              `json:"sourceDescription"`
	SenderLabel       string              `json:"senderLabel"`
	RawMessage        string              `json:"rawMessage"`
	PriorityCategory  Priority            `json:"priorityCategory"`
	Status            Status              `json:"status"`
	Assignee          string              `json:"assignee,omitempty"`
	Identifiers       extract.Identifiers `json:"identifiers"`
	Fields            extract.Fields      `json:"fields"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
	History           []HistoryEntry      `json:"history"`
}

func (l Lead) clone() Lead {
	out := l
	out.History = make([]HistoryEntry, len(l.History))
	for i, h := range l.History {
		out.History[i] = h
		if h.Detail != nil {
			out.History[i].Detail = make(map[string]string, len(h.Detail))
			for k, v := range h.Detail {
				out.History[i].Detail[k] = v
			}
		}
	}
	return out
}

// NewLead is the input to Store.Create.
type NewLead struct {
	ConversationID    string
	SourceDescription string
	SenderLabel       string
	RawMessage        string
	Fields            extract.Fields
}

// Patch describes an explicit or follow-up mutation. Nil pointers are left unchanged.
type Patch struct {
	Status      *Status              `json:"status,omitempty"`
	Assignee    *string              `json:"assignee,omitempty"`
	Identifiers *extract.Identifiers `json:"identifiers,omitempty"`
	Note        string               `json:"note,omitempty"`
	// Action overrides the history action; defaults to ActionUpdated.
	Action string            `json:"-"`
	Detail map[string]string `json:"-"`
}

func (p Patch) isEmpty() bool {
	return p.Status == nil && p.Assignee == nil && p.Identifiers == nil && p.Note == "" && len(p.Detail) == 0
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status         Status
	Priority       Priority
	ConversationID string
	Assignee       string
	Since          time.Time
	Limit          int
}

func (f Filter) matches(l *Lead) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Priority != "" && l.PriorityCategory != f.Priority {
		return false
	}
	if f.ConversationID != "" && l.ConversationID != f.ConversationID {
		return false
	}
	if f.Assignee != "" && !strings.EqualFold(l.Assignee, f.Assignee) {
		return false
	}
	if !f.Since.IsZero() && l.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// Stats aggregates the lead set for operator display.
type Stats struct {
	Total          int              `json:"total"`
	ByStatus       map[Status]int   `json:"byStatus"`
	ByPriority     map[Priority]int `json:"byPriority"`
	ConversionRate float64          `json:"conversionRate"`
	MessagesToday  int              `json:"messagesToday"`
}
