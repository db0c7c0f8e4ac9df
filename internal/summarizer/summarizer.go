package summarizer

import (
	"context"
	"strings"
)

// Input describes the payload for a summary request.
type Input struct {
	// Prompt is the full instruction text sent to the model.
	Prompt string
	// APIKey is the caller's credential for the remote endpoint.
	APIKey string
}

// Summarizer sends one prompt to a remote model and returns the summary text.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}

var fenceReplacer = strings.NewReplacer("```html", "", "```", "")

// cleanOutput strips code fences the model may add despite the prompt and
// trims surrounding whitespace. Fences are removed wherever they appear.
func cleanOutput(text string) string {
	return strings.TrimSpace(fenceReplacer.Replace(text))
}
