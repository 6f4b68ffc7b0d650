// Package processor orchestrates the pipeline: message in, context
// assembly, oracle extraction, reconciliation, calendar sync and the
// learning hooks.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whatsorga/radar/internal/bus"
	"github.com/whatsorga/radar/internal/calendar"
	"github.com/whatsorga/radar/internal/contextwin"
	"github.com/whatsorga/radar/internal/extract"
	"github.com/whatsorga/radar/internal/metrics"
	"github.com/whatsorga/radar/internal/oracle"
	"github.com/whatsorga/radar/internal/persons"
	"github.com/whatsorga/radar/internal/reconcile"
	"github.com/whatsorga/radar/internal/store"
	"github.com/whatsorga/radar/internal/transcribe"
)

type Processor struct {
	store       *store.Store
	persons     *persons.Directory
	learner     *persons.Learner
	contextwin  *contextwin.Builder
	extractor   *extract.Extractor
	engine      *reconcile.Engine
	syncer      *calendar.Syncer
	bus         *bus.Client
	transcriber *transcribe.Transcriber // nil when no Groq key is configured
	logger      *slog.Logger

	userName    string
	partnerName string
	loc         *time.Location

	mu        sync.Mutex
	chatLocks map[string]*sync.Mutex
}

func New(
	s *store.Store,
	dir *persons.Directory,
	learner *persons.Learner,
	cw *contextwin.Builder,
	ext *extract.Extractor,
	engine *reconcile.Engine,
	syncer *calendar.Syncer,
	b *bus.Client,
	tr *transcribe.Transcriber,
	userName, partnerName string,
	loc *time.Location,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		store:       s,
		persons:     dir,
		learner:     learner,
		contextwin:  cw,
		extractor:   ext,
		engine:      engine,
		syncer:      syncer,
		bus:         b,
		transcriber: tr,
		userName:    userName,
		partnerName: partnerName,
		loc:         loc,
		logger:      logger,
		chatLocks:   make(map[string]*sync.Mutex),
	}
}

// chatLock returns the per-chat mutex that keeps messages of one chat
// in arrival order through the pipeline. Different chats proceed in
// parallel.
func (p *Processor) chatLock(chatID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.chatLocks[chatID]
	if !ok {
		m = &sync.Mutex{}
		p.chatLocks[chatID] = m
	}
	return m
}

// HandleMessageStored is the NATS handler for radar.message.stored.
func (p *Processor) HandleMessageStored(subject string, data []byte) {
	ctx := context.Background()

	var msg bus.IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Error("failed to parse message event", "error", err)
		return
	}
	if msg.ChatID == "" {
		p.logger.Error("message event without chat_id")
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	lock := p.chatLock(msg.ChatID)
	lock.Lock()
	defer lock.Unlock()

	if err := p.process(ctx, &msg); err != nil {
		metrics.MessagesProcessed.WithLabelValues("failed").Inc()
		p.logger.Error("message processing failed", "chat_id", msg.ChatID, "error", err)
	}
}

func (p *Processor) process(ctx context.Context, msg *bus.IncomingMessage) error {
	transcribed := p.resolveText(ctx, msg)

	m := &store.Message{
		ChatID:        msg.ChatID,
		ChatName:      msg.ChatName,
		Sender:        msg.Sender,
		Text:          msg.Text,
		Timestamp:     msg.Timestamp,
		IsTranscribed: transcribed,
	}
	messageID, err := p.store.AppendMessage(ctx, m)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	if msg.Text == "" || !extract.MightContainDate(msg.Text) {
		metrics.MessagesProcessed.WithLabelValues("filtered").Inc()
		return nil
	}

	window := p.contextwin.Build(ctx, msg.ChatID, msg.Timestamp)
	mentioned := p.persons.DetectMentioned(msg.Text, window.History)

	req := oracle.Request{
		System: oracle.SystemPrompt(p.userName, p.partnerName),
		User: oracle.UserPrompt(
			msg.Sender, msg.Text,
			window.Dates, window.History, window.Termine,
			persons.FormatForPrompt(mentioned), window.Feedback,
		),
	}

	candidates, backend, err := p.extractor.Extract(ctx, req)
	if err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if len(candidates) == 0 {
		metrics.MessagesProcessed.WithLabelValues("empty").Inc()
		return nil
	}

	resolved := make([]extract.Resolved, 0, len(candidates))
	for _, c := range candidates {
		r, err := extract.Normalize(c, msg.Sender, p.loc)
		if err != nil {
			p.logger.Warn("candidate dropped", "chat_id", msg.ChatID, "error", err)
			continue
		}
		resolved = append(resolved, r)
	}
	if len(resolved) == 0 {
		metrics.MessagesProcessed.WithLabelValues("empty").Inc()
		return nil
	}

	var results []reconcile.Result
	err = p.store.WithChatLock(ctx, msg.ChatID, func(ctx context.Context) error {
		var applyErr error
		results, applyErr = p.engine.Apply(ctx, msg.ChatID, messageID, resolved)
		return applyErr
	})
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	for _, res := range results {
		if res.Termin == nil {
			continue
		}
		switch res.Op {
		case reconcile.OpCreated, reconcile.OpUpdated, reconcile.OpCancelled:
			p.syncer.Enqueue(res.Termin)
			p.publishTermin(res.Op, res.Termin, backend)
		}
		if res.Op == reconcile.OpCreated {
			p.learner.LearnFromTermin(res.Termin.Title, res.Termin.Category, res.Termin.AllDay, res.Termin.Datetime)
		}
	}

	metrics.MessagesProcessed.WithLabelValues("extracted").Inc()
	p.logger.Info("message processed",
		"chat_id", msg.ChatID,
		"backend", backend,
		"candidates", len(resolved),
		"results", len(results),
	)
	return nil
}

// resolveText fills in the text of an audio-only message. A failed
// transcription is logged and leaves the text empty: the message is
// still stored once per inbound event, only extraction is skipped.
func (p *Processor) resolveText(ctx context.Context, msg *bus.IncomingMessage) bool {
	if msg.AudioURL == "" || msg.Text != "" {
		return false
	}
	text, err := p.transcribeAudio(ctx, msg.AudioURL)
	if err != nil {
		p.logger.Warn("transcription failed, storing message without text",
			"chat_id", msg.ChatID, "audio_url", msg.AudioURL, "error", err)
		return false
	}
	msg.Text = text
	return true
}

func (p *Processor) transcribeAudio(ctx context.Context, audioURL string) (string, error) {
	if p.transcriber == nil {
		return "", fmt.Errorf("no transcriber configured for %s", audioURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", fmt.Errorf("create audio request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch audio: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}

	return p.transcriber.Transcribe(ctx, resp.Body, audioFilename(audioURL))
}

func audioFilename(audioURL string) string {
	for i := len(audioURL) - 1; i >= 0; i-- {
		if audioURL[i] == '/' {
			return audioURL[i+1:]
		}
	}
	return "voice.ogg"
}

var opToSubject = map[string]string{
	reconcile.OpCreated:   bus.SubjectTerminCreated,
	reconcile.OpUpdated:   bus.SubjectTerminUpdated,
	reconcile.OpCancelled: bus.SubjectTerminCancelled,
}

func (p *Processor) publishTermin(op string, t *store.Termin, backend string) {
	if p.bus == nil {
		return
	}
	subject, ok := opToSubject[op]
	if !ok {
		return
	}
	err := p.bus.Publish(subject, bus.TerminSignal{
		TerminID:   t.ID.String(),
		ChatID:     t.ChatID,
		Title:      t.Title,
		Datetime:   t.Datetime,
		Status:     t.Status,
		Confidence: t.Confidence,
		Backend:    backend,
	})
	if err != nil {
		p.logger.Warn("failed to publish termin signal", "subject", subject, "error", err)
	}
}

// ScanRecurring runs the daily recurring-pattern detection over the
// last 90 days of termine.
func (p *Processor) ScanRecurring(ctx context.Context) {
	termine, err := p.store.CreatedSince(ctx, time.Now().AddDate(0, 0, -90))
	if err != nil {
		p.logger.Error("recurring scan query failed", "error", err)
		return
	}

	obs := make([]persons.ObservedTermin, len(termine))
	for i, t := range termine {
		obs[i] = persons.ObservedTermin{Title: t.Title, Datetime: t.Datetime.In(p.loc), AllDay: t.AllDay}
	}
	detected := p.learner.DetectRecurringPatterns(obs)
	p.logger.Info("recurring scan done", "termine", len(termine), "patterns", len(detected))
}

// HandleFeedback applies user feedback to a termin: status change,
// feedback record, calendar correction and the learning hook.
func (p *Processor) HandleFeedback(ctx context.Context, terminID uuid.UUID, action, reason string, correction map[string]string) (*store.Termin, error) {
	t, err := p.store.GetTermin(ctx, terminID)
	if err != nil {
		return nil, fmt.Errorf("load termin: %w", err)
	}

	switch action {
	case store.FeedbackConfirmed:
		t.Status = store.StatusConfirmed
	case store.FeedbackRejected:
		t.Status = store.StatusRejected
	case store.FeedbackEdited:
		if err := applyCorrection(t, correction, p.loc); err != nil {
			return nil, err
		}
		t.Status = store.StatusEdited
	default:
		return nil, fmt.Errorf("unknown feedback action %q", action)
	}

	if err := p.store.UpdateTermin(ctx, t); err != nil {
		return nil, fmt.Errorf("update termin: %w", err)
	}
	if _, err := p.store.InsertFeedback(ctx, &store.Feedback{
		TerminID:   terminID,
		Action:     action,
		Correction: correction,
		Reason:     reason,
	}); err != nil {
		return nil, fmt.Errorf("record feedback: %w", err)
	}

	switch action {
	case store.FeedbackRejected:
		// Pull the event off the calendar like a cancellation.
		removed := *t
		removed.Status = store.StatusCancelled
		p.syncer.Enqueue(&removed)
	default:
		p.syncer.Enqueue(t)
	}

	p.learner.LearnFromFeedback(t.Title, action, reason, correction)
	metrics.FeedbackRecorded.WithLabelValues(action).Inc()

	if p.bus != nil {
		if err := p.bus.Publish(bus.SubjectFeedbackRecorded, bus.FeedbackSignal{
			TerminID: terminID.String(),
			Action:   action,
		}); err != nil {
			p.logger.Warn("failed to publish feedback signal", "error", err)
		}
	}

	p.logger.Info("feedback recorded", "termin_id", terminID, "action", action)
	return t, nil
}

// applyCorrection overwrites only the fields the user actually edited.
func applyCorrection(t *store.Termin, correction map[string]string, loc *time.Location) error {
	for field, value := range correction {
		switch field {
		case "title":
			t.Title = value
		case "location":
			t.Location = value
		case "datetime":
			parsed, err := parseCorrectedDatetime(value, loc)
			if err != nil {
				return fmt.Errorf("correction datetime %q: %w", value, err)
			}
			t.Datetime = parsed.when
			t.AllDay = parsed.allDay
		case "category":
			t.Category = value
		case "relevance":
			t.Relevance = value
		default:
			return fmt.Errorf("correction field %q not editable", field)
		}
	}
	return nil
}

type correctedTime struct {
	when   time.Time
	allDay bool
}

func parseCorrectedDatetime(value string, loc *time.Location) (correctedTime, error) {
	if day, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return correctedTime{when: day, allDay: true}, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return correctedTime{when: ts}, nil
		}
	}
	return correctedTime{}, fmt.Errorf("unsupported format")
}
