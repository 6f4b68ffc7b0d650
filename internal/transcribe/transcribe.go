// Package transcribe turns voice messages into text via Groq's
// Whisper endpoint, which speaks the OpenAI audio API.
package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

type Transcriber struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func New(apiKey, model string, logger *slog.Logger) *Transcriber {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	return &Transcriber{client: openai.NewClientWithConfig(cfg), model: model, logger: logger}
}

// Transcribe returns the German transcript of one voice message.
// filename carries the container format, the endpoint needs it to
// pick a decoder.
func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Reader:   audio,
		FilePath: filename,
		Language: "de",
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", filename, err)
	}
	t.logger.Debug("voice message transcribed", "file", filename, "chars", len(resp.Text))
	return resp.Text, nil
}
