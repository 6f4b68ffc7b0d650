// Package contextwin assembles the conversation context handed to the
// extraction oracles: recent chat history, existing termine in the
// relevant window, past feedback lessons and a date reference table.
package contextwin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/whatsorga/radar/internal/store"
)

// Source is the slice of the store the builder reads from.
type Source interface {
	History(ctx context.Context, chatID string, before time.Time, limit int) ([]store.Message, error)
	QueryWindow(ctx context.Context, chatID string, from, to time.Time, excludeStatuses []string) ([]store.Termin, error)
	RecentLessons(ctx context.Context, limit int) ([]store.FeedbackLesson, error)
}

type Builder struct {
	src    Source
	logger *slog.Logger
	loc    *time.Location

	lookback      int // days before now covered by the termin window
	lookahead     int // days after now
	historyLimit  int
	feedbackLimit int
}

func NewBuilder(src Source, logger *slog.Logger, loc *time.Location, lookback, lookahead, historyLimit, feedbackLimit int) *Builder {
	return &Builder{
		src:           src,
		logger:        logger,
		loc:           loc,
		lookback:      lookback,
		lookahead:     lookahead,
		historyLimit:  historyLimit,
		feedbackLimit: feedbackLimit,
	}
}

// Window is the assembled prompt context. Every section is plain text,
// empty when nothing is available.
type Window struct {
	History  string
	Termine  string
	Feedback string
	Dates    string

	// Existing carries the structured termine behind Termine so the
	// reconciler can resolve references without a second query.
	Existing []store.Termin
}

// Build gathers all sections. Each section is best effort: a failing
// query is logged and leaves its section empty rather than aborting
// the extraction.
func (b *Builder) Build(ctx context.Context, chatID string, now time.Time) *Window {
	w := &Window{Dates: DateReference(now.In(b.loc))}

	msgs, err := b.src.History(ctx, chatID, now, b.historyLimit)
	if err != nil {
		b.logger.Warn("context history query failed", "chat_id", chatID, "error", err)
	} else {
		w.History = formatHistory(msgs, b.loc)
	}

	from := now.AddDate(0, 0, -b.lookback)
	to := now.AddDate(0, 0, b.lookahead)
	termine, err := b.src.QueryWindow(ctx, chatID, from, to, []string{store.StatusCancelled, store.StatusRejected})
	if err != nil {
		b.logger.Warn("context termin query failed", "chat_id", chatID, "error", err)
	} else {
		w.Existing = termine
		w.Termine = formatTermine(termine, b.loc)
	}

	lessons, err := b.src.RecentLessons(ctx, b.feedbackLimit)
	if err != nil {
		b.logger.Warn("context feedback query failed", "error", err)
	} else {
		w.Feedback = formatLessons(lessons)
	}

	return w
}

func formatHistory(msgs []store.Message, loc *time.Location) string {
	if len(msgs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, m := range msgs {
		text := m.Text
		if m.IsTranscribed {
			text = "[Sprachnachricht] " + text
		}
		fmt.Fprintf(&sb, "[%s] %s: %s\n", m.Timestamp.In(loc).Format("02.01. 15:04"), m.Sender, text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatTermine(termine []store.Termin, loc *time.Location) string {
	if len(termine) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, t := range termine {
		when := t.Datetime.In(loc).Format("Mon 02.01.2006 15:04")
		if t.AllDay {
			when = t.Datetime.In(loc).Format("Mon 02.01.2006") + " (ganztägig)"
		}
		fmt.Fprintf(&sb, "- id=%s | %s | %s (%s, %s, status=%s, confidence=%.2f)\n",
			t.ID, when, t.Title, t.Category, t.Relevance, t.Status, t.Confidence)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatLessons(lessons []store.FeedbackLesson) string {
	if len(lessons) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, l := range lessons {
		switch l.Action {
		case store.FeedbackRejected:
			reason := l.Reason
			if reason == "" {
				reason = "kein Grund angegeben"
			}
			fmt.Fprintf(&sb, "- ABGELEHNT: '%s' (%s)\n", l.Title, reason)
		case store.FeedbackEdited:
			var changes []string
			for _, k := range sortedKeys(l.Correction) {
				changes = append(changes, fmt.Sprintf("%s->%s", k, l.Correction[k]))
			}
			fmt.Fprintf(&sb, "- KORRIGIERT: '%s': %s\n", l.Title, strings.Join(changes, ", "))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
