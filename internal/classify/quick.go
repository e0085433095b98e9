package classify

import (
	"strings"

	"github.com/wolfman30/leadtriage/internal/extract"
)

// Signal weights are kept in tenths so that thresholds compare integers.
const (
	weightContact   = 3
	weightFinancial = 3
	weightLocation  = 2
	weightUrgency   = 1
	weightCustomer  = 1

	leadThreshold   = 3
	mediumThreshold = 3
	highThreshold   = 6
)

// QuickCheck classifies text locally from extracted fields alone. It is
// deterministic and is the fallback for every remote failure.
func QuickCheck(text string) Result {
	return Score(extract.Extract(text))
}

// Score turns already extracted fields into a Result.
func Score(fields extract.Fields) Result {
	points := 0
	var signals []string
	if fields.HasContact() {
		points += weightContact
		signals = append(signals, "contact")
	}
	if fields.HasFinancial() {
		points += weightFinancial
		signals = append(signals, "financial")
	}
	if fields.HasLocation() {
		points += weightLocation
		signals = append(signals, "location")
	}
	if fields.Urgency {
		points += weightUrgency
		signals = append(signals, "urgency")
	}
	if fields.CustomerType != "" {
		points += weightCustomer
		signals = append(signals, "customer-"+fields.CustomerType)
	}

	isLead := points >= leadThreshold && fields.HasStructured()

	reasoning := "no lead signals"
	if len(signals) > 0 {
		reasoning = "signals: " + strings.Join(signals, ", ")
	}
	if !isLead && len(signals) > 0 {
		reasoning += " (below lead threshold)"
	}

	return Result{
		IsLead:     isLead,
		Confidence: float64(points) / 10,
		Priority:   priorityFor(points),
		Fields:     fields,
		Reasoning:  reasoning,
		IsNewLead:  isLead,
		Source:     SourceQuick,
	}
}

func priorityFor(points int) Priority {
	switch {
	case points >= highThreshold:
		return PriorityHigh
	case points > mediumThreshold:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
