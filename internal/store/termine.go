package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Lifecycle statuses of a stored termin. Cancellation and rejection are
// status transitions, never row deletions, so the audit trail survives.
const (
	StatusUnsynced  = "unsynced"
	StatusAuto      = "auto"
	StatusSuggested = "suggested"
	StatusSkipped   = "skipped"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusEdited    = "edited"
	StatusCancelled = "cancelled"
)

// Reminder is one relative alarm attached to a termin.
type Reminder struct {
	Trigger     string `json:"trigger"` // iCal duration, e.g. "-P1D", "-PT2H"
	Description string `json:"description"`
}

// Termin is a persisted appointment record.
type Termin struct {
	ID           uuid.UUID
	MessageID    uuid.UUID
	ChatID       string
	Title        string
	Datetime     time.Time
	AllDay       bool
	Participants []string
	Category     string // appointment | reminder | task
	Relevance    string // affects_me | for_me | shared | partner_only
	Confidence   float64
	Location     string
	CalDAVUID    string
	Status       string
	Reminders    []Reminder
	Reasoning    string
	CreatedAt    time.Time
}

// Active reports whether the termin still occupies its (title, day) slot
// for duplicate suppression purposes.
func (t *Termin) Active() bool {
	return t.Status != StatusCancelled && t.Status != StatusRejected
}

func (s *Store) InsertTermin(ctx context.Context, t *Termin) (uuid.UUID, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	participants, err := json.Marshal(t.Participants)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal participants: %w", err)
	}
	reminders, err := json.Marshal(t.Reminders)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal reminders: %w", err)
	}

	_, err = s.db(ctx).Exec(ctx, `
		INSERT INTO termine (id, message_id, chat_id, title, datetime, all_day, participants,
			category, relevance, confidence, location, caldav_uid, status, reminders, reasoning)
		VALUES ($1, NULLIF($2, '00000000-0000-0000-0000-000000000000'::uuid), $3, $4, $5, $6, $7,
			$8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13, $14, $15)`,
		t.ID, t.MessageID, t.ChatID, t.Title, t.Datetime, t.AllDay, participants,
		t.Category, t.Relevance, t.Confidence, t.Location, t.CalDAVUID, t.Status, reminders, t.Reasoning,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert termin: %w", err)
	}
	return t.ID, nil
}

// UpdateTermin rewrites the mutable fields of an existing termin.
func (s *Store) UpdateTermin(ctx context.Context, t *Termin) error {
	participants, err := json.Marshal(t.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	reminders, err := json.Marshal(t.Reminders)
	if err != nil {
		return fmt.Errorf("marshal reminders: %w", err)
	}

	_, err = s.db(ctx).Exec(ctx, `
		UPDATE termine
		SET title = $1, datetime = $2, all_day = $3, participants = $4, category = $5,
			relevance = $6, confidence = $7, location = NULLIF($8, ''),
			caldav_uid = NULLIF($9, ''), status = $10, reminders = $11, updated_at = now()
		WHERE id = $12`,
		t.Title, t.Datetime, t.AllDay, participants, t.Category,
		t.Relevance, t.Confidence, t.Location, t.CalDAVUID, t.Status, reminders, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update termin: %w", err)
	}
	return nil
}

func (s *Store) SetTerminStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db(ctx).Exec(ctx, `UPDATE termine SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set termin status: %w", err)
	}
	return nil
}

// SetCalDAVUID records the external calendar identifier after a sync.
func (s *Store) SetCalDAVUID(ctx context.Context, id uuid.UUID, caldavUID, status string) error {
	_, err := s.db(ctx).Exec(ctx, `
		UPDATE termine SET caldav_uid = NULLIF($1, ''), status = $2, updated_at = now() WHERE id = $3`,
		caldavUID, status, id,
	)
	if err != nil {
		return fmt.Errorf("set caldav uid: %w", err)
	}
	return nil
}

func (s *Store) GetTermin(ctx context.Context, id uuid.UUID) (*Termin, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT id, COALESCE(message_id, '00000000-0000-0000-0000-000000000000'::uuid), chat_id,
			title, datetime, all_day, COALESCE(participants, '[]'::jsonb),
			category, relevance, COALESCE(confidence, 0), COALESCE(location, ''),
			COALESCE(caldav_uid, ''), status, COALESCE(reminders, '[]'::jsonb),
			COALESCE(reasoning, ''), created_at
		FROM termine WHERE id = $1`, id)
	return scanTermin(row)
}

// QueryWindow returns all termine of a chat whose date falls inside
// [from, to], excluding the given statuses, ordered by datetime.
func (s *Store) QueryWindow(ctx context.Context, chatID string, from, to time.Time, excludeStatuses []string) ([]Termin, error) {
	if excludeStatuses == nil {
		excludeStatuses = []string{}
	}
	rows, err := s.db(ctx).Query(ctx, `
		SELECT id, COALESCE(message_id, '00000000-0000-0000-0000-000000000000'::uuid), chat_id,
			title, datetime, all_day, COALESCE(participants, '[]'::jsonb),
			category, relevance, COALESCE(confidence, 0), COALESCE(location, ''),
			COALESCE(caldav_uid, ''), status, COALESCE(reminders, '[]'::jsonb),
			COALESCE(reasoning, ''), created_at
		FROM termine
		WHERE chat_id = $1 AND datetime >= $2 AND datetime <= $3 AND NOT (status = ANY($4))
		ORDER BY datetime`,
		chatID, from, to, excludeStatuses,
	)
	if err != nil {
		return nil, fmt.Errorf("query termine window: %w", err)
	}
	defer rows.Close()
	return collectTermine(rows)
}

// ActiveOnDay returns the non-cancelled, non-rejected termine of a chat on
// the given calendar day (in day's own location).
func (s *Store) ActiveOnDay(ctx context.Context, chatID string, day time.Time) ([]Termin, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	return s.QueryWindow(ctx, chatID, start, end.Add(-time.Nanosecond), []string{StatusCancelled, StatusRejected})
}

// Upcoming returns future termine of a chat for the dashboard surface.
func (s *Store) Upcoming(ctx context.Context, chatID string, limit int) ([]Termin, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT id, COALESCE(message_id, '00000000-0000-0000-0000-000000000000'::uuid), chat_id,
			title, datetime, all_day, COALESCE(participants, '[]'::jsonb),
			category, relevance, COALESCE(confidence, 0), COALESCE(location, ''),
			COALESCE(caldav_uid, ''), status, COALESCE(reminders, '[]'::jsonb),
			COALESCE(reasoning, ''), created_at
		FROM termine
		WHERE chat_id = $1 AND datetime >= now() AND status <> $2
		ORDER BY datetime
		LIMIT $3`,
		chatID, StatusCancelled, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query upcoming termine: %w", err)
	}
	defer rows.Close()
	return collectTermine(rows)
}

// CreatedSince returns termine created after the cutoff across all
// chats, for the recurring-pattern scan.
func (s *Store) CreatedSince(ctx context.Context, since time.Time) ([]Termin, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT id, COALESCE(message_id, '00000000-0000-0000-0000-000000000000'::uuid), chat_id,
			title, datetime, all_day, COALESCE(participants, '[]'::jsonb),
			category, relevance, COALESCE(confidence, 0), COALESCE(location, ''),
			COALESCE(caldav_uid, ''), status, COALESCE(reminders, '[]'::jsonb),
			COALESCE(reasoning, ''), created_at
		FROM termine
		WHERE created_at >= $1 AND status NOT IN ($2, $3)
		ORDER BY datetime`,
		since, StatusCancelled, StatusRejected,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent termine: %w", err)
	}
	defer rows.Close()
	return collectTermine(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTermin(row rowScanner) (*Termin, error) {
	var t Termin
	var participants, reminders []byte
	err := row.Scan(&t.ID, &t.MessageID, &t.ChatID, &t.Title, &t.Datetime, &t.AllDay,
		&participants, &t.Category, &t.Relevance, &t.Confidence, &t.Location,
		&t.CalDAVUID, &t.Status, &reminders, &t.Reasoning, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan termin: %w", err)
	}
	if err := json.Unmarshal(participants, &t.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}
	if err := json.Unmarshal(reminders, &t.Reminders); err != nil {
		return nil, fmt.Errorf("unmarshal reminders: %w", err)
	}
	return &t, nil
}

func collectTermine(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Termin, error) {
	var termine []Termin
	for rows.Next() {
		t, err := scanTermin(rows)
		if err != nil {
			return nil, err
		}
		termine = append(termine, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return termine, nil
}
