package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/uitchat/admissions-rag/internal/core/domain"
)

var errNoChoices = errors.New("model returned no choices")

// Generator answers through an OpenAI-compatible chat completions API.
type Generator struct {
	client  *openai.LLM
	modelID string
}

func NewGenerator(apiKey, baseURL, modelID string) (*Generator, error) {
	opts := []openai.Option{openai.WithModel(modelID)}
	if apiKey != "" {
		opts = append(opts, openai.WithToken(apiKey))
	} else {
		opts = append(opts, openai.WithToken("none"))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}
	return &Generator{client: client, modelID: modelID}, nil
}

func (g *Generator) ModelID() string { return g.modelID }

func (g *Generator) Complete(ctx context.Context, messages []domain.Turn, temperature float64, maxTokens int) (domain.GenerationOutcome, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.MessageContent{
			Role:  chatRole(msg.Role),
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}

	response, err := g.client.GenerateContent(ctx, content,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return domain.GenerationOutcome{}, fmt.Errorf("generate content: %w", err)
	}
	if len(response.Choices) == 0 {
		return domain.GenerationOutcome{}, errNoChoices
	}

	choice := response.Choices[0]
	return domain.GenerationOutcome{
		Answer:       strings.TrimSpace(choice.Content),
		Model:        g.modelID,
		FinishReason: choice.StopReason,
		TokensUsed: domain.TokenUsage{
			Prompt:     intFromInfo(choice.GenerationInfo, "PromptTokens"),
			Completion: intFromInfo(choice.GenerationInfo, "CompletionTokens"),
			Total:      intFromInfo(choice.GenerationInfo, "TotalTokens"),
		},
	}, nil
}

func chatRole(role string) llms.ChatMessageType {
	switch role {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
