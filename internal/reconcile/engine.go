package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/whatsorga/radar/internal/extract"
	"github.com/whatsorga/radar/internal/metrics"
	"github.com/whatsorga/radar/internal/store"
)

// Reconciler operations, reported per candidate.
const (
	OpCreated   = "created"
	OpUpdated   = "updated"
	OpCancelled = "cancelled"
	OpDuplicate = "duplicate"
	OpDiscarded = "discarded"
)

// TerminStore is the slice of the store the engine needs. Narrow so
// tests can fake it.
type TerminStore interface {
	InsertTermin(ctx context.Context, t *store.Termin) (uuid.UUID, error)
	UpdateTermin(ctx context.Context, t *store.Termin) error
	SetTerminStatus(ctx context.Context, id uuid.UUID, status string) error
	GetTermin(ctx context.Context, id uuid.UUID) (*store.Termin, error)
	ActiveOnDay(ctx context.Context, chatID string, day time.Time) ([]store.Termin, error)
}

// Result is one reconciliation decision. Termin is set for everything
// except discards.
type Result struct {
	Op     string
	Termin *store.Termin
}

type Engine struct {
	store  TerminStore
	logger *slog.Logger
}

func NewEngine(st TerminStore, logger *slog.Logger) *Engine {
	return &Engine{store: st, logger: logger}
}

// Apply reconciles the candidates of one message. The caller holds the
// per-chat advisory lock, so the duplicate check and insert here are
// atomic against concurrent messages of the same chat.
func (e *Engine) Apply(ctx context.Context, chatID string, messageID uuid.UUID, candidates []extract.Resolved) ([]Result, error) {
	results := make([]Result, 0, len(candidates))

	for _, c := range candidates {
		var (
			res Result
			err error
		)
		switch c.Action {
		case extract.ActionCancel:
			res, err = e.cancel(ctx, chatID, messageID, c)
		case extract.ActionUpdate:
			res, err = e.update(ctx, chatID, messageID, c)
		default:
			res, err = e.create(ctx, chatID, messageID, c)
		}
		if err != nil {
			return results, err
		}
		metrics.TermineReconciled.WithLabelValues(res.Op).Inc()
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) cancel(ctx context.Context, chatID string, messageID uuid.UUID, c extract.Resolved) (Result, error) {
	existing := e.resolveRef(ctx, c.Ref)
	if existing == nil {
		// Cancelling something we never stored is a no-op.
		e.logger.Warn("cancel with dangling reference", "chat_id", chatID, "ref", c.Ref)
		return Result{Op: OpDiscarded}, nil
	}

	if err := e.store.SetTerminStatus(ctx, existing.ID, store.StatusCancelled); err != nil {
		return Result{}, fmt.Errorf("cancel termin %s: %w", existing.ID, err)
	}
	existing.Status = store.StatusCancelled
	e.logger.Info("termin cancelled", "termin_id", existing.ID, "title", existing.Title)
	return Result{Op: OpCancelled, Termin: existing}, nil
}

func (e *Engine) update(ctx context.Context, chatID string, messageID uuid.UUID, c extract.Resolved) (Result, error) {
	existing := e.resolveRef(ctx, c.Ref)
	if existing == nil {
		// Dangling update reference: treat it as a create so the
		// information is not lost.
		e.logger.Warn("update with dangling reference, creating instead", "chat_id", chatID, "ref", c.Ref)
		return e.create(ctx, chatID, messageID, c)
	}

	if c.Title != "" {
		existing.Title = c.Title
	}
	if !c.When.IsZero() {
		existing.Datetime = c.When
		existing.AllDay = c.AllDay
	}
	if c.Location != "" {
		existing.Location = c.Location
	}
	if len(c.Participants) > 0 {
		existing.Participants = c.Participants
	}
	if c.Category != "" {
		existing.Category = c.Category
	}
	if c.Relevance != "" {
		existing.Relevance = c.Relevance
	}
	if c.Confidence > 0 {
		existing.Confidence = c.Confidence
	}
	if len(c.Reminders) > 0 {
		existing.Reminders = toReminders(c.Reminders)
	}
	if c.Reasoning != "" {
		existing.Reasoning = c.Reasoning
	}
	// Re-sync with the new data.
	existing.Status = store.StatusUnsynced

	if err := e.store.UpdateTermin(ctx, existing); err != nil {
		return Result{}, fmt.Errorf("update termin %s: %w", existing.ID, err)
	}
	e.logger.Info("termin updated", "termin_id", existing.ID, "title", existing.Title)
	return Result{Op: OpUpdated, Termin: existing}, nil
}

func (e *Engine) create(ctx context.Context, chatID string, messageID uuid.UUID, c extract.Resolved) (Result, error) {
	if c.Title == "" || c.When.IsZero() {
		return Result{Op: OpDiscarded}, nil
	}

	sameDay, err := e.store.ActiveOnDay(ctx, chatID, c.When)
	if err != nil {
		return Result{}, fmt.Errorf("duplicate check: %w", err)
	}
	for i := range sameDay {
		if SameTermin(c.Title, sameDay[i].Title) {
			e.logger.Info("duplicate termin suppressed", "title", c.Title, "existing_id", sameDay[i].ID)
			return Result{Op: OpDuplicate, Termin: &sameDay[i]}, nil
		}
	}

	t := &store.Termin{
		MessageID:    messageID,
		ChatID:       chatID,
		Title:        c.Title,
		Datetime:     c.When,
		AllDay:       c.AllDay,
		Participants: c.Participants,
		Category:     c.Category,
		Relevance:    c.Relevance,
		Confidence:   c.Confidence,
		Location:     c.Location,
		Status:       store.StatusUnsynced,
		Reminders:    toReminders(c.Reminders),
		Reasoning:    c.Reasoning,
	}
	id, err := e.store.InsertTermin(ctx, t)
	if err != nil {
		return Result{}, fmt.Errorf("insert termin: %w", err)
	}
	t.ID = id
	e.logger.Info("termin created", "termin_id", id, "title", t.Title, "datetime", t.Datetime, "confidence", t.Confidence)
	return Result{Op: OpCreated, Termin: t}, nil
}

// resolveRef loads the referenced termin, nil when the reference is
// missing, malformed or points at nothing.
func (e *Engine) resolveRef(ctx context.Context, ref string) *store.Termin {
	if ref == "" {
		return nil
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return nil
	}
	t, err := e.store.GetTermin(ctx, id)
	if err != nil {
		return nil
	}
	return t
}

func toReminders(specs []extract.ReminderSpec) []store.Reminder {
	if len(specs) == 0 {
		return nil
	}
	out := make([]store.Reminder, len(specs))
	for i, s := range specs {
		out[i] = store.Reminder{Trigger: s.Trigger, Description: s.Description}
	}
	return out
}
