// Package oracle wraps the LLM backends behind one interface so the
// extractor can cascade over them: Groq first, Gemini as fallback,
// Claude as optional last resort.
package oracle

import "context"

// Request is a single extraction prompt.
type Request struct {
	System string
	User   string
}

// Oracle answers a prompt with raw model output. Implementations do
// not parse or validate the response, that is the extractor's job.
type Oracle interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}
