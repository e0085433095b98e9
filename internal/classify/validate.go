package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/wolfman30/leadtriage/internal/extract"
)

// parseRemote decodes and validates a model reply. Any deviation from the
// expected object shape is reported as ErrClassificationUnavailable.
func parseRemote(raw string) (Result, error) {
	body := stripCodeFence(raw)
	if body == "" || body[0] != '{' {
		return Result{}, fmt.Errorf("%w: response is not a json object", ErrClassificationUnavailable)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	var resp remoteResponse
	if err := dec.Decode(&resp); err != nil {
		return Result{}, fmt.Errorf("%w: decode: %v", ErrClassificationUnavailable, err)
	}
	if dec.More() {
		return Result{}, fmt.Errorf("%w: trailing data after object", ErrClassificationUnavailable)
	}

	var missing []string
	if resp.IsLead == nil {
		missing = append(missing, "isLead")
	}
	if resp.Confidence == nil {
		missing = append(missing, "confidence")
	}
	if resp.Priority == nil {
		missing = append(missing, "priority")
	}
	if resp.Fields == nil {
		missing = append(missing, "fields")
	}
	if resp.Reasoning == nil {
		missing = append(missing, "reasoning")
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: missing %s", ErrClassificationUnavailable, strings.Join(missing, ", "))
	}

	conf := *resp.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return Result{}, fmt.Errorf("%w: confidence %v out of range", ErrClassificationUnavailable, conf)
	}
	priority := Priority(*resp.Priority)
	if !priority.Valid() {
		return Result{}, fmt.Errorf("%w: unknown priority %q", ErrClassificationUnavailable, *resp.Priority)
	}

	f := resp.Fields
	return Result{
		IsLead:     *resp.IsLead,
		Confidence: conf,
		Priority:   priority,
		Fields: extract.Fields{
			Name:         strings.TrimSpace(f.Name),
			Phone:        extract.NormalizePhone(f.Phone),
			Email:        strings.ToLower(strings.TrimSpace(f.Email)),
			GovernmentID: strings.ToUpper(strings.TrimSpace(f.GovernmentID)),
			Amount:       math.Max(f.Amount, 0),
			Purpose:      strings.TrimSpace(f.Purpose),
			LocationArea: strings.TrimSpace(f.LocationArea),
			LocationCity: strings.TrimSpace(f.LocationCity),
			Urgency:      f.Urgency,
			CRMID:        strings.ToUpper(strings.TrimSpace(f.CRMID)),
			OppID:        strings.ToUpper(strings.TrimSpace(f.OppID)),
			DealID:       strings.ToUpper(strings.TrimSpace(f.DealID)),
		},
		Reasoning: strings.TrimSpace(*resp.Reasoning),
		IsNewLead: *resp.IsLead,
		Source:    SourceRemote,
	}, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
