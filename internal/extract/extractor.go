package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	emailRE = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

	labeledPhoneRE = regexp.MustCompile(`(?i)\b(?:phone|mobile|mob|contact|cell|ph|tel|whatsapp)(?:\s*(?:no\.?|number|num))?\s*[:\-=#]?\s*(\+?\d[\d\s\-().]{8,18}\d)`)
	barePhoneRE    = regexp.MustCompile(`(?:^|[^\d+])((?:\+?91[\s\-]?|0)?[6-9]\d{4}[\s\-]?\d{5})(?:[^\d]|$)`)

	labeledNameRE = regexp.MustCompile(`(?i)\bname\s*(?:is|[:\-=])\s*([a-z][a-z.']*(?:\s+[a-z][a-z.']*){0,3})`)
	honorificRE   = regexp.MustCompile(`(?i)\b(?:mr|mrs|ms|miss|shri|smt|dr)\.?\s+([a-z][a-z']+(?:\s+[a-z][a-z']+)?)`)

	labeledAmountRE = regexp.MustCompile(`(?i)(?:\b(?:loan\s+amount|amount|amt|loan|budget|salary|income|requirement|rs\.?|inr)|₹)\s*(?:of|is|required|needed|[:\-=])?\s*(?:rs\.?|inr|₹)?\s*(\d[\d,]*(?:\.\d+)?)\s*(k|lakhs?|lacs?|l|cr|crores?)?\b`)
	bareAmountRE    = regexp.MustCompile(`(?i)(?:^|[^\w.])(\d[\d,]*(?:\.\d+)?)\s*(k|lakhs?|lacs?|cr|crores?)\b`)

	labeledPurposeRE = regexp.MustCompile(`(?i)\bpurpose\s*[:\-=]\s*([a-z][a-z \-]{1,40})`)
	loanPurposeRE    = regexp.MustCompile(`(?i)\b(home|housing|personal|business|education|car|vehicle|auto|gold|mortgage|property|medical|two[\s\-]?wheeler|plot)\s+loan\b`)

	labeledAreaRE = regexp.MustCompile(`(?i)\b(?:location|area|address|locality|loc)\s*[:\-=]\s*([a-z0-9][a-z0-9 .'\-]{1,40})`)
	labeledCityRE = regexp.MustCompile(`(?i)\bcity\s*[:\-=]\s*([a-z][a-z .]{1,30})`)

	urgencyRE   = regexp.MustCompile(`(?i)\b(urgent|urgently|asap|immediately|emergency|jaldi|right away|today itself)\b`)
	newCustRE   = regexp.MustCompile(`(?i)\b(new\s+(?:customer|client|case|lead|enquiry|inquiry)|fresh\s+(?:case|lead|customer))\b`)
	existCustRE = regexp.MustCompile(`(?i)\b(existing\s+(?:customer|client|case)|old\s+(?:customer|client)|repeat\s+customer)\b`)

	refRE     = regexp.MustCompile(`(?i)\b(opportunity|crm|opp|deal)\b(?:\s*(?:id|no\.?|number|code))?\s*[:#\-=]?\s*([a-z0-9]+(?:-[a-z0-9]+)*)`)
	loanRefRE = regexp.MustCompile(`(?i)\b(loan|lan|application|app)\s*(?:id|no\.?|number|ref)\s*[:#\-=]?\s*([a-z0-9]+(?:-[a-z0-9]+)*)`)
)

type govPattern struct {
	kind    string
	labeled *regexp.Regexp
	bare    *regexp.Regexp
}

// govPatterns are checked labelled-first across every kind, then bare shapes.
var govPatterns = []govPattern{
	{
		kind:    "PAN",
		labeled: regexp.MustCompile(`(?i)\bpan(?:\s*(?:card|no\.?|number))?\s*[:\-=#]?\s*([a-z]{5}\d{4}[a-z])\b`),
		bare:    regexp.MustCompile(`\b([A-Z]{5}\d{4}[A-Z])\b`),
	},
	{
		kind:    "AADHAAR",
		labeled: regexp.MustCompile(`(?i)\b(?:aadhaar|aadhar|adhaar|uid)(?:\s*(?:card|no\.?|number))?\s*[:\-=#]?\s*(\d{4}[\s\-]?\d{4}[\s\-]?\d{4})\b`),
	},
	{
		kind:    "PASSPORT",
		labeled: regexp.MustCompile(`(?i)\bpassport(?:\s*(?:no\.?|number))?\s*[:\-=#]?\s*([a-z]\d{7})\b`),
	},
	{
		kind:    "VOTER",
		labeled: regexp.MustCompile(`(?i)\b(?:voter\s*id|epic)(?:\s*(?:no\.?|number))?\s*[:\-=#]?\s*([a-z]{3}\d{7})\b`),
	},
}

// knownCities is the bare-heuristic city list used when no "city:" label exists.
var knownCities = []string{
	"navi mumbai", "mumbai", "delhi", "new delhi", "bangalore", "bengaluru", "pune", "hyderabad",
	"chennai", "kolkata", "ahmedabad", "jaipur", "lucknow", "surat", "noida", "gurgaon",
	"gurugram", "thane", "indore", "nagpur", "chandigarh", "kochi", "bhopal", "vadodara",
	"nashik", "coimbatore", "visakhapatnam", "patna", "ludhiana", "agra",
}

var cityREs = buildCityREs(knownCities)

// stopWords end a free-text capture (name, area, purpose) when they appear inside it.
var stopWords = map[string]bool{
	"phone": true, "mobile": true, "mob": true, "contact": true, "email": true, "mail": true,
	"loan": true, "amount": true, "amt": true, "urgent": true, "pan": true, "aadhaar": true,
	"aadhar": true, "city": true, "area": true, "location": true, "purpose": true, "crm": true,
	"opp": true, "deal": true, "from": true, "and": true, "needs": true, "need": true,
	"wants": true, "want": true, "requires": true, "required": true, "for": true, "asap": true,
	"number": true, "no": true, "ph": true,
}

// Extract parses free text into Fields. It never panics and never errors:
// a field that cannot be matched is left empty.
func Extract(text string) (f Fields) {
	defer func() {
		if r := recover(); r != nil {
			f = Fields{}
		}
	}()

	text = strings.TrimSpace(text)
	if text == "" {
		return Fields{}
	}

	// Identifier spans are masked as they are consumed so later, looser
	// patterns (phone, amount) cannot re-read the same digits.
	work := text

	if loc := emailRE.FindStringIndex(work); loc != nil {
		f.Email = strings.ToLower(work[loc[0]:loc[1]])
		work = mask(work, loc)
	}

	f.GovernmentID, f.GovernmentIDType, work = extractGovernmentID(work)
	work = extractReferences(work, &f)
	f.Phone, work = extractPhone(work)
	f.Amount = extractAmount(work)
	f.Name = extractName(text)
	f.Purpose = extractPurpose(text)
	f.LocationArea, f.LocationCity = extractLocation(text)
	f.Urgency = urgencyRE.MatchString(text)

	switch {
	case newCustRE.MatchString(text):
		f.CustomerType = "new"
	case existCustRE.MatchString(text):
		f.CustomerType = "existing"
	}
	return f
}

func extractGovernmentID(work string) (id, kind, rest string) {
	for _, p := range govPatterns {
		if m := p.labeled.FindStringSubmatchIndex(work); m != nil {
			return normalizeGovID(work[m[2]:m[3]]), p.kind, mask(work, m[2:4])
		}
	}
	for _, p := range govPatterns {
		if p.bare == nil {
			continue
		}
		if m := p.bare.FindStringSubmatchIndex(work); m != nil {
			return normalizeGovID(work[m[2]:m[3]]), p.kind, mask(work, m[2:4])
		}
	}
	return "", "", work
}

func normalizeGovID(v string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, v))
}

func extractReferences(work string, f *Fields) string {
	for _, m := range refRE.FindAllStringSubmatchIndex(work, -1) {
		label := strings.ToLower(work[m[2]:m[3]])
		code := strings.ToUpper(work[m[4]:m[5]])
		if !validRefCode(code) {
			continue
		}
		switch label {
		case "crm":
			if f.CRMID != "" {
				continue
			}
			f.CRMID = code
			label = "CRM"
		case "opp", "opportunity":
			if f.OppID != "" {
				continue
			}
			f.OppID = code
			label = "OPP"
		case "deal":
			if f.DealID != "" {
				continue
			}
			f.DealID = code
			label = "DEAL"
		}
		if f.RefLabel == "" {
			f.RefLabel, f.RefCode = label, code
		}
		work = mask(work, m[4:6])
	}
	if f.DealID == "" {
		if m := loanRefRE.FindStringSubmatchIndex(work); m != nil {
			code := strings.ToUpper(work[m[4]:m[5]])
			if validRefCode(code) {
				f.DealID = code
				if f.RefLabel == "" {
					f.RefLabel, f.RefCode = "LOAN", code
				}
				work = mask(work, m[4:6])
			}
		}
	}
	return work
}

func validRefCode(code string) bool {
	if len(code) < 3 {
		return false
	}
	return strings.ContainsAny(code, "0123456789")
}

func extractPhone(work string) (string, string) {
	if m := labeledPhoneRE.FindStringSubmatchIndex(work); m != nil {
		if phone := NormalizePhone(work[m[2]:m[3]]); phone != "" {
			return phone, mask(work, m[2:4])
		}
	}
	if m := barePhoneRE.FindStringSubmatchIndex(work); m != nil {
		if phone := NormalizePhone(work[m[2]:m[3]]); phone != "" {
			return phone, mask(work, m[2:4])
		}
	}
	return "", work
}

// NormalizePhone strips non-digits and any country-code or trunk prefix,
// keeping the last 10 digits. Fewer than 10 digits yields "".
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return ""
	}
	return digits[len(digits)-10:]
}

func extractAmount(work string) float64 {
	if m := labeledAmountRE.FindStringSubmatch(work); m != nil {
		if v := parseAmount(m[1], m[2]); v > 0 {
			return v
		}
	}
	if m := bareAmountRE.FindStringSubmatch(work); m != nil {
		if v := parseAmount(m[1], m[2]); v > 0 {
			return v
		}
	}
	return 0
}

// parseAmount converts "1,50,000" / "150k" / "1.5 lakh" into a number.
func parseAmount(number, unit string) float64 {
	number = strings.ReplaceAll(number, ",", "")
	v, err := strconv.ParseFloat(number, 64)
	if err != nil || v <= 0 {
		return 0
	}
	switch u := strings.ToLower(unit); {
	case u == "k":
		v *= 1_000
	case u == "l" || strings.HasPrefix(u, "lakh") || strings.HasPrefix(u, "lac"):
		v *= 100_000
	case u == "cr" || strings.HasPrefix(u, "crore"):
		v *= 10_000_000
	}
	return v
}

func extractName(text string) string {
	if m := labeledNameRE.FindStringSubmatch(text); m != nil {
		if name := trimCapture(m[1]); name != "" {
			return name
		}
	}
	if m := honorificRE.FindStringSubmatch(text); m != nil {
		return trimCapture(m[1])
	}
	return ""
}

func extractPurpose(text string) string {
	if m := labeledPurposeRE.FindStringSubmatch(text); m != nil {
		if p := trimCapture(m[1]); p != "" {
			return strings.ToLower(p)
		}
	}
	if m := loanPurposeRE.FindStringSubmatch(text); m != nil {
		return strings.ToLower(strings.Join(strings.Fields(m[1]), " ")) + " loan"
	}
	return ""
}

func extractLocation(text string) (area, city string) {
	if m := labeledAreaRE.FindStringSubmatch(text); m != nil {
		area = trimCapture(m[1])
	}
	if m := labeledCityRE.FindStringSubmatch(text); m != nil {
		city = trimCapture(m[1])
	}
	if city == "" {
		for i, re := range cityREs {
			if re.MatchString(text) {
				city = titleCase(knownCities[i])
				break
			}
		}
	}
	return area, city
}

// trimCapture cuts a free-text capture at the first delimiter or stop word.
func trimCapture(s string) string {
	if i := strings.IndexAny(s, ",;|\n"); i >= 0 {
		s = s[:i]
	}
	words := strings.Fields(s)
	out := words[:0]
	for _, w := range words {
		if stopWords[strings.ToLower(strings.Trim(w, ".:"))] {
			break
		}
		out = append(out, w)
	}
	return strings.Trim(strings.Join(out, " "), " .-'")
}

func mask(s string, loc []int) string {
	if len(loc) < 2 || loc[0] < 0 || loc[1] > len(s) || loc[0] >= loc[1] {
		return s
	}
	return s[:loc[0]] + strings.Repeat(" ", loc[1]-loc[0]) + s[loc[1]:]
}

func buildCityREs(cities []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(cities))
	for _, c := range cities {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(c)+`\b`))
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
