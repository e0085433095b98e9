package classify

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
)

const systemPrompt = `You triage messages posted in sales team chat groups for a lending business.
Decide whether the message is a sales lead: a prospect or customer needing a loan or
service, usually carrying contact details, an amount, a loan purpose or a location.
Greetings, chit-chat, reminders and internal coordination are not leads.

Respond with a single JSON object and nothing else, matching this schema:
%s

Rules:
- confidence is a number between 0 and 1.
- priority is "High" when the lead is urgent or the amount exceeds 100000, "Medium"
  when the amount exceeds 50000, otherwise "Low".
- fields holds only values literally present in the message; use "" or 0 when absent.
- phone is the last 10 digits only.`

const schemaName = "lead_classification"

// remoteFields mirrors extract.Fields on the wire. All keys are required so
// the strict schema can be enforced by providers that support it.
type remoteFields struct {
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	Email        string  `json:"email"`
	GovernmentID string  `json:"governmentId"`
	Amount       float64 `json:"amount"`
	Purpose      string  `json:"purpose"`
	LocationArea string  `json:"locationArea"`
	LocationCity string  `json:"locationCity"`
	Urgency      bool    `json:"urgency"`
	CRMID        string  `json:"crmId"`
	OppID        string  `json:"oppId"`
	DealID       string  `json:"dealId"`
}

// remoteResponse uses pointers so a missing key is distinguishable from a zero value.
type remoteResponse struct {
	IsLead     *bool         `json:"isLead"`
	Confidence *float64      `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	Priority   *string       `json:"priority" jsonschema:"enum=High,enum=Medium,enum=Low"`
	Fields     *remoteFields `json:"fields"`
	Reasoning  *string       `json:"reasoning"`
}

var (
	schemaOnce sync.Once
	schemaDoc  *jsonschema.Schema
	schemaJSON string
)

// responseSchema returns the JSON schema sent to providers with the request.
func responseSchema() (*jsonschema.Schema, string) {
	schemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
		}
		schemaDoc = reflector.Reflect(&remoteResponse{})
		raw, err := json.Marshal(schemaDoc)
		if err != nil {
			raw = []byte("{}")
		}
		schemaJSON = string(raw)
	})
	return schemaDoc, schemaJSON
}

// instructions is the fixed system prompt with the schema embedded.
func instructions() string {
	_, schema := responseSchema()
	return fmt.Sprintf(systemPrompt, schema)
}
