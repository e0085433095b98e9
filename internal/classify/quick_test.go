package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/leadtriage/internal/extract"
)

func TestQuickCheck_Scenario(t *testing.T) {
	res := QuickCheck("Name: Ramesh, Phone: 9876543210, Loan amount 150000, urgent")

	assert.True(t, res.IsLead)
	assert.Equal(t, PriorityHigh, res.Priority)
	assert.Equal(t, "9876543210", res.Fields.Phone)
	assert.Equal(t, 150000.0, res.Fields.Amount)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	assert.Equal(t, SourceQuick, res.Source)
}

func TestQuickCheck_Greeting(t *testing.T) {
	res := QuickCheck("Good morning team")

	assert.False(t, res.IsLead)
	assert.Equal(t, PriorityLow, res.Priority)
	assert.Zero(t, res.Confidence)
}

func TestQuickCheck_NoFieldsNeverLead(t *testing.T) {
	for _, text := range []string{"", "urgent", "urgent asap new customer", "thanks!", "see you tomorrow"} {
		res := QuickCheck(text)
		assert.False(t, res.IsLead, text)
	}
}

func TestQuickCheck_TwoSignalsHigh(t *testing.T) {
	for _, text := range []string{
		"9876543210 needs 2 lakh",
		"phone 9123456789 amount 40k",
		"email a@b.com, home loan",
	} {
		res := QuickCheck(text)
		assert.True(t, res.IsLead, text)
		assert.GreaterOrEqual(t, res.Confidence, 0.6, text)
		assert.Equal(t, PriorityHigh, res.Priority, text)
	}
}

func TestScore_Buckets(t *testing.T) {
	tests := []struct {
		name     string
		fields   extract.Fields
		lead     bool
		priority Priority
	}{
		{"contact only", extract.Fields{Phone: "9876543210"}, true, PriorityLow},
		{"location only", extract.Fields{LocationCity: "Pune"}, false, PriorityLow},
		{"location and urgency", extract.Fields{LocationCity: "Pune", Urgency: true}, true, PriorityLow},
		{"contact and urgency", extract.Fields{Phone: "9876543210", Urgency: true}, true, PriorityMedium},
		{"contact and location", extract.Fields{Phone: "9876543210", LocationCity: "Pune"}, true, PriorityMedium},
		{"urgency only", extract.Fields{Urgency: true, CustomerType: "new"}, false, PriorityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Score(tt.fields)
			assert.Equal(t, tt.lead, res.IsLead)
			assert.Equal(t, tt.priority, res.Priority)
		})
	}
}

func TestQuickCheck_CourtesyNamesNotLeads(t *testing.T) {
	for _, text := range []string{
		"Good morning Dr Mehta",
		"Thank you Mr Sharma",
		"Hi team, my name is Priya",
	} {
		res := QuickCheck(text)
		assert.False(t, res.IsLead, text)
		assert.Zero(t, res.Confidence, text)
	}
}

func TestScore_NameCountsOnlyWithLoanDetails(t *testing.T) {
	assert.False(t, Score(extract.Fields{Name: "Mehta"}).IsLead)
	assert.False(t, Score(extract.Fields{Name: "Mehta", LocationCity: "Pune"}).IsLead)

	res := Score(extract.Fields{Name: "Priya", Amount: 200000})
	assert.True(t, res.IsLead)
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
}
