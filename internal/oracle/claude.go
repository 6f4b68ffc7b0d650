package oracle

import (
	"context"
	"errors"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// Claude is an optional last-resort backend. It only joins the
// cascade when an API key is configured.
type Claude struct {
	client *anthropic.Client
	model  string
}

func NewClaude(apiKey, model string) *Claude {
	return &Claude{client: anthropic.NewClient(apiKey), model: model}
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) Complete(ctx context.Context, req Request) (string, error) {
	temp := float32(0.1)
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:  anthropic.Model(c.model),
		System: req.System,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(req.User),
				},
			},
		},
		MaxTokens:   2048,
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("claude completion: %w", err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return "", errors.New("claude completion: empty response")
	}
	return *resp.Content[0].Text, nil
}
