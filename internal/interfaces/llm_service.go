package interfaces

import "context"

// NarrativeService turns a fixed-shape prompt into generated text of bounded length.
// Auth, quota and timeout problems all surface as an error; nothing is retried.
type NarrativeService interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}
