package oracle

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// Groq talks to Groq's OpenAI-compatible chat endpoint. It is the
// primary backend: fast and free-tier friendly.
type Groq struct {
	client *openai.Client
	model  string
}

func NewGroq(apiKey, model string) *Groq {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	return &Groq{client: openai.NewClientWithConfig(cfg), model: model}
}

func (g *Groq) Name() string { return "groq" }

func (g *Groq) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: 0.1,
		MaxTokens:   2048,
	})
	if err != nil {
		return "", fmt.Errorf("groq completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("groq completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
