package generation_service

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces an answer grounded in the supplied context chunks.
// Implementations are swappable provider adapters selected by
// configuration.
type Generator interface {
	Complete(ctx context.Context, query string, contexts []string, includeCitations bool) (string, error)
}

// ServiceError wraps a transport or provider failure at the generation
// boundary.
type ServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation service (%s, HTTP %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation service (%s): %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// RateLimitedError is a distinguishable generation failure the caller may
// retry with backoff exactly once, outside the self-correction budget.
type RateLimitedError struct {
	ServiceError
}

const systemPrompt = "You are a helpful assistant that answers questions based on provided context. " +
	"Always ground your answers in the provided context and cite your sources. " +
	"If the context doesn't contain enough information to answer the question, " +
	"say so clearly rather than making up information."

// buildPrompt lays the context chunks out as numbered document blocks
// followed by the question, so the model can reference sources by number.
func buildPrompt(query string, contexts []string, includeCitations bool) string {
	var b strings.Builder
	for i, text := range contexts {
		fmt.Fprintf(&b, "[Document %d]\n%s\n\n", i+1, text)
	}

	citationInstruction := ""
	if includeCitations {
		citationInstruction = "\nWhen referencing information from the context, " +
			"cite the document number (e.g., [Document 1]). " +
			"Only use information that is explicitly stated in the provided context."
	}

	return fmt.Sprintf(`Based on the following context, answer the question.
If the answer cannot be found in the context, say so clearly.%s

Context:
%s
Question: %s

Answer:`, citationInstruction, b.String(), query)
}
