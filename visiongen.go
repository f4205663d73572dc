package papergen

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// VisionGenerator is the external vision-language capability: a prompt plus
// one or more images in, raw text out. Like TextGenerator, it is opaque and
// fallible; a failed or malformed vision response makes the cell fall back to
// text generation permanently.
type VisionGenerator interface {
	Generate(ctx context.Context, prompt string, images [][]byte) (string, error)
}

// OpenAIVisionGenerator generates diagram-based questions through the OpenAI
// chat API, attaching images as data-URL message parts.
type OpenAIVisionGenerator struct {
	client *openai.Client
	cfg    GenerationConfig
}

// NewOpenAIVisionGenerator creates a vision generator backed by the OpenAI API.
func NewOpenAIVisionGenerator(apiKey string, cfg GenerationConfig) *OpenAIVisionGenerator {
	return &OpenAIVisionGenerator{
		client: openai.NewClient(apiKey),
		cfg:    cfg,
	}
}

// Generate sends the prompt and images and returns the model's raw response.
func (g *OpenAIVisionGenerator) Generate(ctx context.Context, prompt string, images [][]byte) (string, error) {
	if len(images) == 0 {
		return "", fmt.Errorf("vision generation requires at least one image")
	}

	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
			},
		})
	}

	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       g.cfg.VisionModel,
			Temperature: g.cfg.Temperature,
			MaxTokens:   g.cfg.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: visionSystemPrompt,
				},
				{
					Role:         openai.ChatMessageRoleUser,
					MultiContent: parts,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("vision generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in vision generation response")
	}
	return resp.Choices[0].Message.Content, nil
}
