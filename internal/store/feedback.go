package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Feedback actions a reviewer can take on a termin.
const (
	FeedbackConfirmed = "confirmed"
	FeedbackRejected  = "rejected"
	FeedbackEdited    = "edited"
)

// Feedback is one immutable human review record.
type Feedback struct {
	ID         uuid.UUID
	TerminID   uuid.UUID
	Action     string
	Correction map[string]string // field -> new value, for edits
	Reason     string
	CreatedAt  time.Time
}

// FeedbackLesson is a feedback record joined with its termin, shaped for
// rendering into the extraction prompt.
type FeedbackLesson struct {
	Action     string
	Title      string
	Category   string
	Relevance  string
	Correction map[string]string
	Reason     string
}

func (s *Store) InsertFeedback(ctx context.Context, f *Feedback) (uuid.UUID, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	correction, err := json.Marshal(f.Correction)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal correction: %w", err)
	}

	_, err = s.db(ctx).Exec(ctx, `
		INSERT INTO termin_feedback (id, termin_id, action, correction, reason)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		f.ID, f.TerminID, f.Action, correction, f.Reason,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert feedback: %w", err)
	}
	return f.ID, nil
}

// RecentLessons returns the latest rejected/edited feedback joined with the
// termin it concerns, newest first. Confirmations carry no lesson.
func (s *Store) RecentLessons(ctx context.Context, limit int) ([]FeedbackLesson, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT f.action, t.title, t.category, t.relevance,
			COALESCE(f.correction, '{}'::jsonb), COALESCE(f.reason, '')
		FROM termin_feedback f
		JOIN termine t ON t.id = f.termin_id
		WHERE f.action IN ($1, $2)
		ORDER BY f.created_at DESC
		LIMIT $3`,
		FeedbackRejected, FeedbackEdited, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query feedback lessons: %w", err)
	}
	defer rows.Close()

	var lessons []FeedbackLesson
	for rows.Next() {
		var l FeedbackLesson
		var correction []byte
		if err := rows.Scan(&l.Action, &l.Title, &l.Category, &l.Relevance, &correction, &l.Reason); err != nil {
			return nil, fmt.Errorf("scan feedback lesson: %w", err)
		}
		if err := json.Unmarshal(correction, &l.Correction); err != nil {
			return nil, fmt.Errorf("unmarshal correction: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return lessons, nil
}
