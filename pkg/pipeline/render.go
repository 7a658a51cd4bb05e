package pipeline

import (
	"fmt"
	"maps"
	"time"

	"github.com/cbroglie/mustache"
)

// GeneratedAtKey is injected into the placeholders unless the logic script set it.
const GeneratedAtKey = "generated_at"

// renderHTML substitutes placeholders into body. Rendering is logic-less and
// values are never HTML-escaped.
func renderHTML(body string, placeholders map[string]any, now time.Time) (string, error) {
	tmpl, err := mustache.ParseStringRaw(body, true)
	if err != nil {
		return "", fmt.Errorf("failed to parse html template: %w", err)
	}

	data := make(map[string]any, len(placeholders)+1)
	maps.Copy(data, placeholders)

	if _, ok := data[GeneratedAtKey]; !ok {
		data[GeneratedAtKey] = now.UTC().Format(time.RFC3339)
	}

	out, err := tmpl.Render(data)
	if err != nil {
		return "", fmt.Errorf("failed to render html template: %w", err)
	}

	return out, nil
}
