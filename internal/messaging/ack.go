package messaging

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/wolfman30/leadtriage/internal/messaging/templates"
)

// AckData feeds the lead acknowledgement template.
type AckData struct {
	SenderName string
	LeadID     string
	Name       string
	Priority   string
}

const ackTemplate = `Thanks{{if .SenderName}} {{.SenderName}}{{end}}! Lead noted{{if .Name}} for {{.Name}}{{end}} (ref {{.LeadID}}, {{.Priority}} priority). Our team will pick it up shortly.`

// AckMessage renders the acknowledgement sent into a conversation for a new lead.
func AckMessage(data AckData) (string, error) {
	if data.LeadID == "" {
		return "", fmt.Errorf("messaging: ack requires a lead id")
	}
	return templates.Renderer{}.Render("ack", ackTemplate, data)
}

// greetingReplies are varied so the bot reads less mechanical.
var greetingReplies = []string{
	"Good morning everyone! Share your leads here and we'll follow up.",
	"Hello team! Send over any enquiries and we'll take it from there.",
	"Hi all! Drop customer details here and we'll get back quickly.",
}

var greetingRE = regexp.MustCompile(`(?i)^\s*(good\s+(morning|afternoon|evening)|hello|hi|hey|namaste|gm)\b[\s,!.a-z]*$`)

// IsGreeting reports whether text is a short standalone greeting.
func IsGreeting(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || len(strings.Fields(text)) > 5 {
		return false
	}
	return greetingRE.MatchString(text)
}

// GreetingReply picks one of the greeting replies.
func GreetingReply() string {
	return greetingReplies[rand.Intn(len(greetingReplies))]
}
