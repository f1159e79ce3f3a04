package analyze

import "context"

// TextProvider is a pluggable text-analysis backend. Implementations return
// the raw model output; prompt construction, parsing, and retry live in the
// Analyzer.
type TextProvider interface {
	// AnalyzeText sends the prompt to the model and returns its raw response
	AnalyzeText(ctx context.Context, prompt string) (string, error)

	// Name identifies the provider in analysis records and logs
	Name() string

	// Model is the model identifier recorded with each analysis
	Model() string
}
