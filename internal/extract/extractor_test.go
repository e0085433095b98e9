package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_LabeledLead(t *testing.T) {
	f := Extract("Name: Ramesh, Phone: 9876543210, Loan amount 150000, urgent")

	assert.Equal(t, "Ramesh", f.Name)
	assert.Equal(t, "9876543210", f.Phone)
	assert.Equal(t, 150000.0, f.Amount)
	assert.True(t, f.Urgency)
	assert.True(t, f.HasContact())
	assert.True(t, f.HasFinancial())
}

func TestExtract_Idempotent(t *testing.T) {
	inputs := []string{
		"Name: Ramesh, Phone: 9876543210, Loan amount 150000, urgent",
		"pan ABCDE1234F crm: CRM-2231 city: Pune",
		"Good morning team",
		"",
	}
	for _, in := range inputs {
		require.Equal(t, Extract(in), Extract(in), in)
	}
}

func TestExtract_Phone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"labeled", "phone: 98765 43210", "9876543210"},
		{"country code", "call +91 98765-43210 today", "9876543210"},
		{"bare", "customer 9123456789 needs a loan", "9123456789"},
		{"trunk zero", "mob 09876543210", "9876543210"},
		{"too short", "phone: 12345", ""},
		{"no phone", "hello there", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.in).Phone)
		})
	}
}

func TestExtract_Amount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"plain labeled", "loan amount 150000", 150000},
		{"k suffix", "amount: 60k", 60000},
		{"commas", "Loan amount: 1,50,000", 150000},
		{"lakh", "need 5 lakh for business", 500000},
		{"crore", "budget 1.5 cr", 15000000},
		{"rupee sign", "₹75000 required", 75000},
		{"bare number ignored", "call me at 5 pm", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Extract(tt.in).Amount, 0.001)
		})
	}
}

func TestExtract_References(t *testing.T) {
	f := Extract("Update on CRM: CRM-2231 and opp id 99812, deal #D7781")

	assert.Equal(t, "CRM-2231", f.CRMID)
	assert.Equal(t, "99812", f.OppID)
	assert.Equal(t, "D7781", f.DealID)
	assert.Equal(t, "CRM", f.RefLabel)
	assert.Equal(t, "CRM-2231", f.RefCode)
	// reference digits must not be mistaken for a phone
	assert.Empty(t, f.Phone)
}

func TestExtract_LoanReference(t *testing.T) {
	f := Extract("loan no: HL2024778 approved")

	assert.Equal(t, "HL2024778", f.DealID)
	assert.Equal(t, "LOAN", f.RefLabel)
}

func TestExtract_GovernmentID(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantID   string
		wantType string
	}{
		{"labeled pan lower", "pan: abcde1234f", "ABCDE1234F", "PAN"},
		{"bare pan", "docs ABCDE1234F attached", "ABCDE1234F", "PAN"},
		{"aadhaar", "aadhaar 1234 5678 9012", "123456789012", "AADHAAR"},
		{"passport", "passport no K1234567", "K1234567", "PASSPORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Extract(tt.in)
			assert.Equal(t, tt.wantID, f.GovernmentID)
			assert.Equal(t, tt.wantType, f.GovernmentIDType)
		})
	}
}

func TestExtract_AadhaarNotPhone(t *testing.T) {
	f := Extract("aadhaar 9876 5432 1098")
	assert.Equal(t, "987654321098", f.GovernmentID)
	assert.Empty(t, f.Phone)
}

func TestExtract_EmailLocationPurpose(t *testing.T) {
	f := Extract("Email: Priya.S@Example.com, area: Andheri West, city: Mumbai, needs home loan")

	assert.Equal(t, "priya.s@example.com", f.Email)
	assert.Equal(t, "Andheri West", f.LocationArea)
	assert.Equal(t, "Mumbai", f.LocationCity)
	assert.Equal(t, "home loan", f.Purpose)
}

func TestExtract_BareCityAndHonorific(t *testing.T) {
	f := Extract("Mr Suresh Patil from Pune, existing customer")

	assert.Equal(t, "Suresh Patil", f.Name)
	assert.Equal(t, "Pune", f.LocationCity)
	assert.Equal(t, "existing", f.CustomerType)
	assert.False(t, f.HasContact(), "a name without loan details is not contact info")
}

func TestExtract_NoFields(t *testing.T) {
	for _, in := range []string{"Good morning team", "ok thanks", "urgent", "   "} {
		f := Extract(in)
		assert.False(t, f.HasStructured(), in)
	}
}

func TestIdentifiersKeysAndMerge(t *testing.T) {
	ids := Identifiers{Phone: "9876543210", Email: "A@B.com"}
	assert.Equal(t, []string{"phone:9876543210", "email:a@b.com"}, ids.Keys())
	assert.False(t, ids.IsEmpty())
	assert.True(t, Identifiers{}.IsEmpty())

	merged, added := ids.Merge(Identifiers{Phone: "111", CRMID: "CRM-1"})
	assert.True(t, added)
	assert.Equal(t, "9876543210", merged.Phone)
	assert.Equal(t, "CRM-1", merged.CRMID)

	_, added = merged.Merge(Identifiers{Phone: "9876543210"})
	assert.False(t, added)
}

func TestFieldsMerge(t *testing.T) {
	base := Fields{Phone: "9876543210"}
	out := base.Merge(Fields{Phone: "1111111111", Amount: 5000, Urgency: true})

	assert.Equal(t, "9876543210", out.Phone)
	assert.Equal(t, 5000.0, out.Amount)
	assert.True(t, out.Urgency)
}
