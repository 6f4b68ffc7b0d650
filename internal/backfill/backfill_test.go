package backfill

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/whatsorga/radar/internal/store"
)

var berlin = time.FixedZone("CET", 3600)

const sampleExport = "02.03.26, 14:05 - Marike: Training morgen um 16 Uhr\n" +
	"02.03.26, 14:06 - Ben: ok, ich bring ihn hin\n" +
	"und hole ihn auch wieder ab\n" +
	"02.03.26, 14:07 - Marike: <Medien ausgeschlossen>\n" +
	"02.03.26, 14:08 - Marike: Nachrichten und Anrufe sind Ende-zu-Ende-verschlüsselt.\n" +
	"03.03.2026, 09:15 - Marike: Wettkampf am 7.3.\n"

func TestParseExport(t *testing.T) {
	msgs, err := ParseExport(strings.NewReader(sampleExport), berlin)
	if err != nil {
		t.Fatal(err)
	}

	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(msgs), msgs)
	}

	first := msgs[0]
	if first.Sender != "Marike" || first.Text != "Training morgen um 16 Uhr" {
		t.Errorf("unexpected first message: %+v", first)
	}
	want := time.Date(2026, 3, 2, 14, 5, 0, 0, berlin)
	if !first.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", first.Timestamp, want)
	}

	// Continuation line joined to the previous message.
	if !strings.Contains(msgs[1].Text, "und hole ihn auch wieder ab") {
		t.Errorf("continuation not joined: %q", msgs[1].Text)
	}

	// Four-digit year variant.
	if msgs[2].Timestamp.Year() != 2026 {
		t.Errorf("four-digit year not parsed: %v", msgs[2].Timestamp)
	}
}

func TestParseExportEnDash(t *testing.T) {
	msgs, err := ParseExport(strings.NewReader("02.03.26, 14:05 – Marike: hallo\n"), berlin)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("en dash separator not handled, got %d messages", len(msgs))
	}
}

type countingStore struct {
	msgs []*store.Message
}

func (c *countingStore) AppendMessage(ctx context.Context, m *store.Message) (uuid.UUID, error) {
	c.msgs = append(c.msgs, m)
	return uuid.New(), nil
}

func TestRunnerStoresMessages(t *testing.T) {
	cs := &countingStore{}
	r := NewRunner(cs, slog.Default(), berlin)

	n, err := r.Run(context.Background(), "chat-1", "Familie", strings.NewReader(sampleExport))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(cs.msgs) != 3 {
		t.Fatalf("expected 3 stored messages, got %d", n)
	}
	if cs.msgs[0].ChatID != "chat-1" || cs.msgs[0].ChatName != "Familie" {
		t.Errorf("chat fields not set: %+v", cs.msgs[0])
	}
}
