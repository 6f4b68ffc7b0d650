package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects carried on the bus. Messages arrive from the bridge on
// SubjectMessageStored, the rest are emitted by the pipeline for
// downstream consumers like the dashboard.
const (
	SubjectMessageStored    = "radar.message.stored"
	SubjectTerminCreated    = "radar.termin.created"
	SubjectTerminUpdated    = "radar.termin.updated"
	SubjectTerminCancelled  = "radar.termin.cancelled"
	SubjectFeedbackRecorded = "radar.feedback.recorded"
)

// IncomingMessage is the payload the WhatsApp bridge publishes for
// every chat message. AudioURL is set for voice messages, Text is
// empty until transcription.
type IncomingMessage struct {
	ChatID    string    `json:"chat_id"`
	ChatName  string    `json:"chat_name"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	AudioURL  string    `json:"audio_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TerminSignal is published for every reconciler decision that changed
// stored state.
type TerminSignal struct {
	TerminID   string    `json:"termin_id"`
	ChatID     string    `json:"chat_id"`
	Title      string    `json:"title"`
	Datetime   time.Time `json:"datetime"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
	Backend    string    `json:"backend,omitempty"`
}

// FeedbackSignal is published when a user confirms, rejects or edits
// a termin.
type FeedbackSignal struct {
	TerminID string `json:"termin_id"`
	Action   string `json:"action"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
