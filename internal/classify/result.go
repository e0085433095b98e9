package classify

import "github.com/wolfman30/leadtriage/internal/extract"

// Priority is the flat urgency bucket attached to a classification.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Valid reports whether p is one of the three known buckets.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Source records which classifier produced a Result.
type Source string

const (
	SourceQuick  Source = "quick"
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
)

// Result is the verdict for a single message.
type Result struct {
	IsLead            bool           `json:"isLead"`
	Confidence        float64        `json:"confidence"`
	Priority          Priority       `json:"priority"`
	Fields            extract.Fields `json:"fields"`
	Reasoning         string         `json:"reasoning"`
	IsNewLead         bool           `json:"isNewLead"`
	RelatedToExisting bool           `json:"relatedToExisting"`
	Source            Source         `json:"source,omitempty"`
}
