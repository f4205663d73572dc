package papergen

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// TextGenerator is the external text-generation capability. It returns raw
// model output; the engine itself extracts structured candidates from it.
// Implementations own their transport retries and timeouts; the orchestrator
// only cares that a call can fail or come back malformed.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAITextGenerator generates question text through the OpenAI chat API.
type OpenAITextGenerator struct {
	client *openai.Client
	cfg    GenerationConfig
}

// NewOpenAITextGenerator creates a text generator backed by the OpenAI API.
func NewOpenAITextGenerator(apiKey string, cfg GenerationConfig) *OpenAITextGenerator {
	return &OpenAITextGenerator{
		client: openai.NewClient(apiKey),
		cfg:    cfg,
	}
}

// Generate sends the prompt and returns the model's raw text response.
func (g *OpenAITextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       g.cfg.TextModel,
			Temperature: g.cfg.Temperature,
			MaxTokens:   g.cfg.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("text generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in text generation response")
	}
	return resp.Choices[0].Message.Content, nil
}
