package processor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/whatsorga/radar/internal/bus"
	"github.com/whatsorga/radar/internal/store"
)

var berlin = time.FixedZone("CET", 3600)

func TestApplyCorrection(t *testing.T) {
	tm := &store.Termin{
		Title:    "Enno Training",
		Datetime: time.Date(2026, 3, 2, 16, 0, 0, 0, berlin),
	}

	err := applyCorrection(tm, map[string]string{
		"datetime": "2026-03-02T10:00",
		"title":    "Enno Schwimmtraining",
		"location": "Schwimmhalle Mitte",
	}, berlin)
	if err != nil {
		t.Fatal(err)
	}

	if tm.Title != "Enno Schwimmtraining" {
		t.Errorf("title = %q", tm.Title)
	}
	if tm.Location != "Schwimmhalle Mitte" {
		t.Errorf("location = %q", tm.Location)
	}
	want := time.Date(2026, 3, 2, 10, 0, 0, 0, berlin)
	if !tm.Datetime.Equal(want) {
		t.Errorf("datetime = %v, want %v", tm.Datetime, want)
	}
	if tm.AllDay {
		t.Error("timed correction must not become all-day")
	}
}

func TestApplyCorrectionDateOnlyBecomesAllDay(t *testing.T) {
	tm := &store.Termin{Datetime: time.Date(2026, 3, 2, 16, 0, 0, 0, berlin)}

	if err := applyCorrection(tm, map[string]string{"datetime": "2026-03-07"}, berlin); err != nil {
		t.Fatal(err)
	}
	if !tm.AllDay {
		t.Error("date-only correction must become all-day")
	}
}

func TestApplyCorrectionRejectsUnknownField(t *testing.T) {
	tm := &store.Termin{}
	if err := applyCorrection(tm, map[string]string{"confidence": "1.0"}, berlin); err == nil {
		t.Error("expected error for non-editable field")
	}
	if err := applyCorrection(tm, map[string]string{"datetime": "irgendwann"}, berlin); err == nil {
		t.Error("expected error for unparseable datetime")
	}
}

func TestAudioFilename(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://bridge.local/media/abc123.ogg", "abc123.ogg"},
		{"voice.ogg", "voice.ogg"},
	}
	for _, tt := range tests {
		if got := audioFilename(tt.url); got != tt.want {
			t.Errorf("audioFilename(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestResolveTextKeepsMessageOnTranscriptionFailure(t *testing.T) {
	// No transcriber configured, so the audio fetch path must fail.
	p := &Processor{logger: slog.Default()}

	msg := &bus.IncomingMessage{ChatID: "chat-1", AudioURL: "https://example.test/voice.ogg"}
	if transcribed := p.resolveText(context.Background(), msg); transcribed {
		t.Error("expected transcribed=false when transcription fails")
	}
	if msg.Text != "" {
		t.Errorf("expected empty text, got %q", msg.Text)
	}
}

func TestResolveTextSkipsMessagesWithText(t *testing.T) {
	p := &Processor{logger: slog.Default()}

	msg := &bus.IncomingMessage{ChatID: "chat-1", AudioURL: "https://example.test/voice.ogg", Text: "schon da"}
	if transcribed := p.resolveText(context.Background(), msg); transcribed {
		t.Error("expected transcribed=false when text is already present")
	}
	if msg.Text != "schon da" {
		t.Errorf("text changed: %q", msg.Text)
	}
}
