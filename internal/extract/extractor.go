package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/whatsorga/radar/internal/metrics"
	"github.com/whatsorga/radar/internal/oracle"
)

// Extractor runs the oracle cascade. The first backend that returns
// parseable output wins, including a clean "no termine" answer. Only
// errors and unparseable output advance the cascade.
type Extractor struct {
	oracles []oracle.Oracle
	timeout time.Duration
	logger  *slog.Logger
}

func New(oracles []oracle.Oracle, timeout time.Duration, logger *slog.Logger) *Extractor {
	return &Extractor{oracles: oracles, timeout: timeout, logger: logger}
}

// Extract returns the candidates and the name of the backend that
// produced them. All backends failing is an error; a genuine empty
// answer is not.
func (e *Extractor) Extract(ctx context.Context, req oracle.Request) ([]Candidate, string, error) {
	var lastErr error

	for _, o := range e.oracles {
		cands, err := e.tryOne(ctx, o, req)
		if err != nil {
			lastErr = err
			e.logger.Warn("oracle failed, trying next", "backend", o.Name(), "error", err)
			continue
		}
		return cands, o.Name(), nil
	}

	if lastErr == nil {
		lastErr = errors.New("no oracles configured")
	}
	return nil, "", fmt.Errorf("all oracles failed: %w", lastErr)
}

func (e *Extractor) tryOne(ctx context.Context, o oracle.Oracle, req oracle.Request) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	raw, err := o.Complete(ctx, req)
	metrics.ExtractionDuration.WithLabelValues(o.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExtractionRequests.WithLabelValues(o.Name(), "error").Inc()
		return nil, err
	}

	cands, err := ParseResponse(raw)
	if err != nil {
		metrics.ExtractionRequests.WithLabelValues(o.Name(), "unparseable").Inc()
		metrics.ParseFailures.Inc()
		e.logger.Warn("unparseable oracle output", "backend", o.Name(), "output_len", len(raw))
		return nil, err
	}

	metrics.ExtractionRequests.WithLabelValues(o.Name(), "ok").Inc()
	return cands, nil
}
