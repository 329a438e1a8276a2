package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient wraps one API key's generative models. The flash model
// handles stage prompts; the pro model is kept for the heavyweight
// document work (drafting and polishing).
type GeminiClient struct {
	Client     *genai.Client
	FlashModel *genai.GenerativeModel
	ProModel   *genai.GenerativeModel
}

func NewGenAIClient(apiKey, flashModelName, proModelName string) (*GeminiClient, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client init failed: %w", err)
	}

	return &GeminiClient{
		Client:     client,
		FlashModel: client.GenerativeModel(flashModelName),
		ProModel:   client.GenerativeModel(proModelName),
	}, nil
}

// SendAIText sends a role-tagged prompt and returns the raw reply text.
// No schema is guaranteed; callers run the reply through the extractor.
func (g *GeminiClient) SendAIText(ctx context.Context, prompt string) (string, error) {
	return generateText(ctx, g.FlashModel, prompt)
}

// SendAIDocument is SendAIText on the pro model, used for policy
// document prompts where wording quality matters more than latency.
func (g *GeminiClient) SendAIDocument(ctx context.Context, prompt string) (string, error) {
	return generateText(ctx, g.ProModel, prompt)
}

func generateText(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no content returned from AI")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("response parts contain no text, received %T", resp.Candidates[0].Content.Parts[0])
	}
	return sb.String(), nil
}

// SendAITextWithRetry attempts the request with automatic failover
// across multiple clients.
func SendAITextWithRetry(ctx context.Context, prompt string, selector *GeminiClientSelector) (string, error) {
	var result string

	err := selector.TryAllClients(func(client *GeminiClient, clientIdx int) error {
		resp, err := client.SendAIText(ctx, prompt)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return "", err
	}

	return result, nil
}

// SendAIDocumentWithRetry is SendAITextWithRetry on the pro model.
func SendAIDocumentWithRetry(ctx context.Context, prompt string, selector *GeminiClientSelector) (string, error) {
	var result string

	err := selector.TryAllClients(func(client *GeminiClient, clientIdx int) error {
		resp, err := client.SendAIDocument(ctx, prompt)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return "", err
	}

	return result, nil
}
