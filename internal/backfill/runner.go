package backfill

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/whatsorga/radar/internal/store"
)

// MessageStore is the slice of the store the runner writes to.
type MessageStore interface {
	AppendMessage(ctx context.Context, m *store.Message) (uuid.UUID, error)
}

type Runner struct {
	store  MessageStore
	logger *slog.Logger
	loc    *time.Location
}

func NewRunner(st MessageStore, logger *slog.Logger, loc *time.Location) *Runner {
	return &Runner{store: st, logger: logger, loc: loc}
}

// Run parses an export and stores every message as history. No
// extraction happens here, backfilled messages only feed the context
// window of future ones.
func (r *Runner) Run(ctx context.Context, chatID, chatName string, export io.Reader) (int, error) {
	msgs, err := ParseExport(export, r.loc)
	if err != nil {
		return 0, fmt.Errorf("parse export: %w", err)
	}

	stored := 0
	for _, m := range msgs {
		_, err := r.store.AppendMessage(ctx, &store.Message{
			ChatID:    chatID,
			ChatName:  chatName,
			Sender:    m.Sender,
			Text:      m.Text,
			Timestamp: m.Timestamp,
		})
		if err != nil {
			return stored, fmt.Errorf("store backfill message: %w", err)
		}
		stored++
	}

	r.logger.Info("chat history backfilled", "chat_id", chatID, "messages", stored)
	return stored, nil
}
