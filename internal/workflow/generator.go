package workflow

import (
	"context"

	"underwriting-service/internal/ai/gemini"
)

// Generator is the generation-service collaborator: a role-tagged prompt
// in, unstructured text out. No reply schema is guaranteed.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator serves stage prompts from the flash models behind the
// key-rotating selector.
type GeminiGenerator struct {
	Selector *gemini.GeminiClientSelector
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return gemini.SendAITextWithRetry(ctx, prompt, g.Selector)
}

// GeminiDocumentGenerator serves the document prompts (drafting,
// polishing, quote wording) from the pro models.
type GeminiDocumentGenerator struct {
	Selector *gemini.GeminiClientSelector
}

func (g *GeminiDocumentGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return gemini.SendAIDocumentWithRetry(ctx, prompt, g.Selector)
}
