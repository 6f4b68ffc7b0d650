package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is one stored chat message. Immutable once written.
type Message struct {
	ID            uuid.UUID
	ChatID        string
	ChatName      string
	Sender        string
	Text          string // empty when audio-only and transcription failed
	Timestamp     time.Time
	IsTranscribed bool
}

func (s *Store) AppendMessage(ctx context.Context, m *Message) (uuid.UUID, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO messages (id, chat_id, chat_name, sender, text, timestamp, is_transcribed)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		m.ID, m.ChatID, m.ChatName, m.Sender, m.Text, m.Timestamp, m.IsTranscribed,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert message: %w", err)
	}
	return m.ID, nil
}

// History returns up to limit text-bearing messages of a chat strictly
// before the given timestamp, oldest first.
func (s *Store) History(ctx context.Context, chatID string, before time.Time, limit int) ([]Message, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT id, chat_id, COALESCE(chat_name, ''), sender, text, timestamp, is_transcribed
		FROM messages
		WHERE chat_id = $1 AND timestamp < $2 AND text IS NOT NULL
		ORDER BY timestamp DESC
		LIMIT $3`,
		chatID, before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.ChatName, &m.Sender, &m.Text, &m.Timestamp, &m.IsTranscribed); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	// Query returns newest-first for the LIMIT; callers want chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
