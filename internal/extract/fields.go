package extract

import "strings"

// Fields is the structured partial record pulled out of a raw chat message.
// Zero values mean "not found".
type Fields struct {
	Name             string  `json:"name,omitempty"`
	Phone            string  `json:"phone,omitempty"`
	Email            string  `json:"email,omitempty"`
	GovernmentID     string  `json:"governmentId,omitempty"`
	GovernmentIDType string  `json:"governmentIdType,omitempty"`
	Amount           float64 `json:"amount,omitempty"`
	Purpose          string  `json:"purpose,omitempty"`
	LocationArea     string  `json:"locationArea,omitempty"`
	LocationCity     string  `json:"locationCity,omitempty"`
	Urgency          bool    `json:"urgency,omitempty"`
	CRMID            string  `json:"crmId,omitempty"`
	OppID            string  `json:"oppId,omitempty"`
	DealID           string  `json:"dealId,omitempty"`
	// RefLabel/RefCode hold the first CRM/OPP/DEAL/LOAN reference seen, label and code split.
	RefLabel     string `json:"refLabel,omitempty"`
	RefCode      string `json:"refCode,omitempty"`
	CustomerType string `json:"customerType,omitempty"`
}

// HasContact reports whether a reachable contact field was found. A name only
// counts next to loan details, since honorifics and introductions show up in
// ordinary chatter.
func (f Fields) HasContact() bool {
	if f.Phone != "" || f.Email != "" || f.GovernmentID != "" {
		return true
	}
	return f.Name != "" && f.HasFinancial()
}

// HasFinancial reports whether loan/amount/deal information was found.
func (f Fields) HasFinancial() bool {
	return f.Amount > 0 || f.Purpose != "" || f.CRMID != "" || f.OppID != "" || f.DealID != ""
}

// HasLocation reports whether an area or city was found.
func (f Fields) HasLocation() bool {
	return f.LocationArea != "" || f.LocationCity != ""
}

// HasStructured reports whether at least one structured field was extracted.
// Urgency and customer-type phrases are signals, not structured fields.
func (f Fields) HasStructured() bool {
	return f.HasContact() || f.HasFinancial() || f.HasLocation()
}

// Identifiers returns the subset of fields that can tie a later message to a lead.
func (f Fields) Identifiers() Identifiers {
	return Identifiers{
		Phone:        f.Phone,
		Email:        f.Email,
		GovernmentID: f.GovernmentID,
		CRMID:        f.CRMID,
		OppID:        f.OppID,
		DealID:       f.DealID,
	}
}

// Merge fills the zero-valued fields of f from other and returns the result.
func (f Fields) Merge(other Fields) Fields {
	out := f
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&out.Name, other.Name)
	fill(&out.Phone, other.Phone)
	fill(&out.Email, other.Email)
	fill(&out.GovernmentID, other.GovernmentID)
	fill(&out.GovernmentIDType, other.GovernmentIDType)
	fill(&out.Purpose, other.Purpose)
	fill(&out.LocationArea, other.LocationArea)
	fill(&out.LocationCity, other.LocationCity)
	fill(&out.CRMID, other.CRMID)
	fill(&out.OppID, other.OppID)
	fill(&out.DealID, other.DealID)
	fill(&out.RefLabel, other.RefLabel)
	fill(&out.RefCode, other.RefCode)
	fill(&out.CustomerType, other.CustomerType)
	if out.Amount <= 0 {
		out.Amount = other.Amount
	}
	out.Urgency = out.Urgency || other.Urgency
	return out
}

// Identifiers are the values indexed for deduplication.
type Identifiers struct {
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	GovernmentID string `json:"governmentId,omitempty"`
	CRMID        string `json:"crmId,omitempty"`
	OppID        string `json:"oppId,omitempty"`
	DealID       string `json:"dealId,omitempty"`
}

// IsEmpty reports whether no identifier is set.
func (i Identifiers) IsEmpty() bool {
	return len(i.Keys()) == 0
}

// Keys returns namespaced index keys ("phone:9876543210") for every non-empty
// identifier, in a fixed order: phone, email, gov, crm, opp, deal.
func (i Identifiers) Keys() []string {
	var keys []string
	add := func(ns, v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		keys = append(keys, ns+":"+strings.ToLower(v))
	}
	add("phone", i.Phone)
	add("email", i.Email)
	add("gov", i.GovernmentID)
	add("crm", i.CRMID)
	add("opp", i.OppID)
	add("deal", i.DealID)
	return keys
}

// Merge adds identifiers from other that are missing in i. added is true when
// at least one new value was taken.
func (i Identifiers) Merge(other Identifiers) (merged Identifiers, added bool) {
	merged = i
	take := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			added = true
		}
	}
	take(&merged.Phone, other.Phone)
	take(&merged.Email, other.Email)
	take(&merged.GovernmentID, other.GovernmentID)
	take(&merged.CRMID, other.CRMID)
	take(&merged.OppID, other.OppID)
	take(&merged.DealID, other.DealID)
	return merged, added
}
