package events

import "time"

const (
	TypeLeadCreated  = "lead.created.v1"
	TypeLeadFollowUp = "lead.follow_up.v1"
)

// LeadEventV1 is published whenever a lead is created or receives a follow-up.
type LeadEventV1 struct {
	EventID        string            `json:"event_id"`
	Type           string            `json:"type"`
	LeadID         string            `json:"lead_id"`
	ConversationID string            `json:"conversation_id"`
	SourceMessage  string            `json:"source_message_id,omitempty"`
	Status         string            `json:"status"`
	Priority       string            `json:"priority"`
	Identifiers    map[string]string `json:"identifiers,omitempty"`
	Amount         float64           `json:"amount,omitempty"`
	Ambiguous      bool              `json:"ambiguous,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}
