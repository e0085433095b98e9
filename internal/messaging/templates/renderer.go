package templates

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Renderer renders small text templates for outbound chat and alert messages.
type Renderer struct{}

// Render compiles the provided template text with strict missing-key semantics
// and trims surrounding whitespace from the result.
func (Renderer) Render(name, tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("templates: template text required")
	}
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("templates: parse: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
