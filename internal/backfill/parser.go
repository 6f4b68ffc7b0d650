// Package backfill seeds the message history from a WhatsApp chat
// export so extraction has context from day one.
package backfill

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"
)

// Export lines look like "02.03.26, 14:05 - Marike: Training morgen".
// Continuation lines carry no timestamp and belong to the previous
// message.
var exportLine = regexp.MustCompile(`^(\d{1,2}\.\d{1,2}\.\d{2,4}),?\s+(\d{1,2}:\d{2})\s*[-\x{2013}]\s*([^:]+):\s*(.*)$`)

var skipMarkers = []string{
	"<Medien ausgeschlossen>",
	"Ende-zu-Ende-verschlüsselt",
	"Sicherheitsnummer",
}

// ExportMessage is one parsed chat message.
type ExportMessage struct {
	Sender    string
	Text      string
	Timestamp time.Time
}

// ParseExport reads a WhatsApp text export. System messages and media
// placeholders are dropped, multi-line messages are joined.
func ParseExport(r io.Reader, loc *time.Location) ([]ExportMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []ExportMessage
	for scanner.Scan() {
		line := strings.TrimPrefix(scanner.Text(), "\uFEFF")

		m := exportLine.FindStringSubmatch(line)
		if m == nil {
			// Continuation of the previous message.
			if len(out) > 0 && strings.TrimSpace(line) != "" {
				out[len(out)-1].Text += "\n" + line
			}
			continue
		}

		ts, err := parseTimestamp(m[1], m[2], loc)
		if err != nil {
			continue
		}
		text := m[4]
		if skip(text) {
			continue
		}
		out = append(out, ExportMessage{
			Sender:    strings.TrimSpace(m[3]),
			Text:      text,
			Timestamp: ts,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseTimestamp(date, clock string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2.1.06 15:04", "2.1.2006 15:04"} {
		if ts, err := time.ParseInLocation(layout, date+" "+clock, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errInvalidTimestamp
}

var errInvalidTimestamp = errors.New("invalid export timestamp")

func skip(text string) bool {
	for _, marker := range skipMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
