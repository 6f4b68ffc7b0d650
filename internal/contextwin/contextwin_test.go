package contextwin

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/whatsorga/radar/internal/store"
)

type fakeSource struct {
	msgs    []store.Message
	termine []store.Termin
	lessons []store.FeedbackLesson
	fail    bool
}

func (f *fakeSource) History(ctx context.Context, chatID string, before time.Time, limit int) ([]store.Message, error) {
	if f.fail {
		return nil, errors.New("db down")
	}
	return f.msgs, nil
}

func (f *fakeSource) QueryWindow(ctx context.Context, chatID string, from, to time.Time, exclude []string) ([]store.Termin, error) {
	if f.fail {
		return nil, errors.New("db down")
	}
	return f.termine, nil
}

func (f *fakeSource) RecentLessons(ctx context.Context, limit int) ([]store.FeedbackLesson, error) {
	if f.fail {
		return nil, errors.New("db down")
	}
	return f.lessons, nil
}

var berlin = time.FixedZone("CET", 3600)

func TestBuild(t *testing.T) {
	id := uuid.New()
	src := &fakeSource{
		msgs: []store.Message{
			{Sender: "Marike", Text: "Training morgen um 16 Uhr", Timestamp: time.Date(2026, 3, 1, 14, 0, 0, 0, berlin)},
			{Sender: "Ben", Text: "ok", Timestamp: time.Date(2026, 3, 1, 14, 5, 0, 0, berlin), IsTranscribed: true},
		},
		termine: []store.Termin{
			{ID: id, Title: "Enno Training", Datetime: time.Date(2026, 3, 2, 16, 0, 0, 0, berlin),
				Category: "appointment", Relevance: "shared", Confidence: 0.9, Status: store.StatusAuto},
			{ID: uuid.New(), Title: "Wettkampf", Datetime: time.Date(2026, 3, 7, 0, 0, 0, 0, berlin), AllDay: true, Status: store.StatusSuggested},
		},
		lessons: []store.FeedbackLesson{
			{Action: store.FeedbackRejected, Title: "Altes Training", Reason: "war nur Rückblick"},
			{Action: store.FeedbackEdited, Title: "Zahnarzt", Correction: map[string]string{"datetime": "2026-03-02T10:00"}},
		},
	}

	b := NewBuilder(src, slog.Default(), berlin, 7, 60, 10, 10)
	w := b.Build(context.Background(), "chat-1", time.Date(2026, 3, 1, 15, 0, 0, 0, berlin))

	if !strings.Contains(w.History, "[01.03. 14:00] Marike: Training morgen um 16 Uhr") {
		t.Errorf("history missing formatted message:\n%s", w.History)
	}
	if !strings.Contains(w.History, "[Sprachnachricht] ok") {
		t.Errorf("transcribed message not marked:\n%s", w.History)
	}
	if !strings.Contains(w.Termine, "id="+id.String()) {
		t.Errorf("termin line missing id:\n%s", w.Termine)
	}
	if !strings.Contains(w.Termine, "appointment, shared, status=auto, confidence=0.90") {
		t.Errorf("termin line missing category/relevance/confidence:\n%s", w.Termine)
	}
	if !strings.Contains(w.Termine, "(ganztägig)") {
		t.Errorf("all-day termin not marked:\n%s", w.Termine)
	}
	if !strings.Contains(w.Feedback, "ABGELEHNT: 'Altes Training' (war nur Rückblick)") {
		t.Errorf("rejection lesson missing:\n%s", w.Feedback)
	}
	if !strings.Contains(w.Feedback, "KORRIGIERT: 'Zahnarzt': datetime->2026-03-02T10:00") {
		t.Errorf("edit lesson missing:\n%s", w.Feedback)
	}
	if len(w.Existing) != 2 {
		t.Errorf("expected structured termine to be carried, got %d", len(w.Existing))
	}
}

func TestBuildBestEffort(t *testing.T) {
	b := NewBuilder(&fakeSource{fail: true}, slog.Default(), berlin, 7, 60, 10, 10)
	w := b.Build(context.Background(), "chat-1", time.Now())

	if w.History != "" || w.Termine != "" || w.Feedback != "" {
		t.Error("failing source must leave sections empty")
	}
	if w.Dates == "" {
		t.Error("date reference must not depend on the store")
	}
}

func TestDateReference(t *testing.T) {
	// Sunday 2026-03-01.
	now := time.Date(2026, 3, 1, 15, 0, 0, 0, berlin)
	ref := DateReference(now)

	for _, want := range []string{
		"Heute ist Sonntag, der 01.03.2026.",
		"Morgen: Montag, 02.03.2026",
		"Übermorgen: Dienstag, 03.03.2026",
		"- Dienstag: 03.03.2026, danach 10.03.2026",
		"- Sonntag: 08.03.2026, danach 15.03.2026",
	} {
		if !strings.Contains(ref, want) {
			t.Errorf("date reference missing %q:\n%s", want, ref)
		}
	}
}
