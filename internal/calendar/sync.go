package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/whatsorga/radar/internal/extract"
	"github.com/whatsorga/radar/internal/metrics"
	"github.com/whatsorga/radar/internal/store"
)

// Remote is the CalDAV surface the syncer uses.
type Remote interface {
	PutEvent(ctx context.Context, calendarName, uid, ics string) error
	DeleteEvent(ctx context.Context, calendarName, uid string) error
}

// SyncStore persists sync outcomes back to the termin.
type SyncStore interface {
	SetCalDAVUID(ctx context.Context, id uuid.UUID, caldavUID, status string) error
	SetTerminStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Syncer routes termine to the two calendars: confident ones to the
// main calendar, uncertain ones to the suggestion calendar, partner
// termine nowhere. Pushes run on a small worker pool so slow CalDAV
// servers do not stall message processing.
type Syncer struct {
	remote Remote
	store  SyncStore
	logger *slog.Logger

	autoCalendar    string
	suggestCalendar string
	autoConfidence  float64
	tzid            string

	jobs chan *store.Termin
	wg   sync.WaitGroup
}

func NewSyncer(remote Remote, st SyncStore, logger *slog.Logger, autoCalendar, suggestCalendar, tzid string, autoConfidence float64, workers int) *Syncer {
	s := &Syncer{
		remote:          remote,
		store:           st,
		logger:          logger,
		autoCalendar:    autoCalendar,
		suggestCalendar: suggestCalendar,
		autoConfidence:  autoConfidence,
		tzid:            tzid,
		jobs:            make(chan *store.Termin, 64),
	}
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *Syncer) worker() {
	defer s.wg.Done()
	for t := range s.jobs {
		if err := s.Sync(context.Background(), t); err != nil {
			s.logger.Error("calendar sync failed", "termin_id", t.ID, "error", err)
		}
	}
}

// Enqueue hands a termin to the worker pool.
func (s *Syncer) Enqueue(t *store.Termin) {
	s.jobs <- t
}

// Close drains the pool. Pending pushes finish first.
func (s *Syncer) Close() {
	close(s.jobs)
	s.wg.Wait()
}

// Sync pushes one termin. The routing decision is recorded on the
// termin's status, a push failure leaves the status untouched so the
// termin stays eligible for a retry.
func (s *Syncer) Sync(ctx context.Context, t *store.Termin) error {
	if t.Status == store.StatusCancelled {
		return s.remove(ctx, t)
	}

	if t.Relevance == extract.RelevancePartnerOnly {
		if err := s.store.SetTerminStatus(ctx, t.ID, store.StatusSkipped); err != nil {
			return fmt.Errorf("mark skipped: %w", err)
		}
		metrics.CalendarSyncs.WithLabelValues(store.StatusSkipped).Inc()
		s.logger.Info("termin skipped, partner only", "termin_id", t.ID, "title", t.Title)
		return nil
	}

	target := s.suggestCalendar
	status := store.StatusSuggested
	switch {
	case t.Status == store.StatusConfirmed || t.Status == store.StatusEdited:
		// User-vetted termine always land on the main calendar,
		// whatever the original confidence was.
		target = s.autoCalendar
		status = t.Status
	case t.Confidence >= s.autoConfidence:
		target = s.autoCalendar
		status = store.StatusAuto
	}

	uid := t.CalDAVUID
	moved := uid != ""
	if uid == "" {
		uid = uuid.NewString()
	}

	ics := BuildICS(t, uid, s.tzid, t.Relevance == extract.RelevanceAffectsMe)
	if err := s.remote.PutEvent(ctx, target, uid, ics); err != nil {
		metrics.CalendarSyncs.WithLabelValues("failed").Inc()
		return fmt.Errorf("push to %q: %w", target, err)
	}

	if moved {
		// The event may have changed tiers, clear it from the other
		// calendar. Best effort, a 404 there is the normal case.
		other := s.autoCalendar
		if target == s.autoCalendar {
			other = s.suggestCalendar
		}
		if err := s.remote.DeleteEvent(ctx, other, uid); err != nil {
			s.logger.Warn("could not clear event from previous calendar", "termin_id", t.ID, "error", err)
		}
	}

	if err := s.store.SetCalDAVUID(ctx, t.ID, uid, status); err != nil {
		return fmt.Errorf("record sync: %w", err)
	}
	t.CalDAVUID = uid
	t.Status = status

	metrics.CalendarSyncs.WithLabelValues(status).Inc()
	s.logger.Info("termin synced", "termin_id", t.ID, "calendar", target, "status", status)
	return nil
}

// remove deletes the event from both calendars. The termin may have
// moved between them through feedback, so both are tried.
func (s *Syncer) remove(ctx context.Context, t *store.Termin) error {
	if t.CalDAVUID == "" {
		return nil
	}
	var firstErr error
	for _, cal := range []string{s.autoCalendar, s.suggestCalendar} {
		if err := s.remote.DeleteEvent(ctx, cal, t.CalDAVUID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		metrics.CalendarSyncs.WithLabelValues("failed").Inc()
		return fmt.Errorf("remove event: %w", firstErr)
	}
	metrics.CalendarSyncs.WithLabelValues("deleted").Inc()
	s.logger.Info("termin removed from calendar", "termin_id", t.ID)
	return nil
}
