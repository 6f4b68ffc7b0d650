package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/whatsorga/radar/internal/api"
	"github.com/whatsorga/radar/internal/backfill"
	"github.com/whatsorga/radar/internal/bus"
	"github.com/whatsorga/radar/internal/calendar"
	"github.com/whatsorga/radar/internal/config"
	"github.com/whatsorga/radar/internal/contextwin"
	"github.com/whatsorga/radar/internal/extract"
	"github.com/whatsorga/radar/internal/oracle"
	"github.com/whatsorga/radar/internal/persons"
	"github.com/whatsorga/radar/internal/processor"
	"github.com/whatsorga/radar/internal/reconcile"
	"github.com/whatsorga/radar/internal/store"
	"github.com/whatsorga/radar/internal/transcribe"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("radar starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc := cfg.Location()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready")

	// Person profiles
	dir := persons.NewDirectory(cfg.PersonsDir, slog.Default())
	if err := dir.Load(); err != nil {
		slog.Error("failed to load person profiles", "dir", cfg.PersonsDir, "error", err)
		os.Exit(1)
	}
	learner := persons.NewLearner(dir, slog.Default())
	slog.Info("person profiles loaded", "count", len(dir.All()))

	// Oracle cascade
	oracles := buildOracles(ctx, cfg)
	if len(oracles) == 0 {
		slog.Error("no oracle configured, set at least RADAR_GROQ_API_KEY")
		os.Exit(1)
	}
	ext := extract.New(oracles, cfg.OracleTimeout, slog.Default())

	// Voice transcription (optional, needs the Groq key)
	var transcriber *transcribe.Transcriber
	if cfg.GroqAPIKey != "" {
		transcriber = transcribe.New(cfg.GroqAPIKey, cfg.GroqWhisperModel, slog.Default())
	}

	// CalDAV
	if cfg.CalDAVURL == "" {
		slog.Error("RADAR_CALDAV_URL is required")
		os.Exit(1)
	}
	caldav := calendar.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVTimeout, slog.Default())
	syncer := calendar.NewSyncer(caldav, db, slog.Default(),
		cfg.CalDAVCalendar, cfg.CalDAVSuggestCalendar, cfg.Timezone,
		cfg.AutoConfidence, cfg.CalendarWorkers)
	defer syncer.Close()

	// NATS
	busClient, err := bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Processor — the main pipeline
	cw := contextwin.NewBuilder(db, slog.Default(), loc,
		cfg.ContextLookback, cfg.ContextLookahead, cfg.HistoryLimit, cfg.FeedbackLimit)
	engine := reconcile.NewEngine(db, slog.Default())
	proc := processor.New(db, dir, learner, cw, ext, engine, syncer, busClient, transcriber,
		cfg.UserName, cfg.PartnerName, loc, slog.Default())

	if err := busClient.Subscribe(bus.SubjectMessageStored, proc.HandleMessageStored); err != nil {
		slog.Error("failed to subscribe to message events", "error", err)
		os.Exit(1)
	}

	// Daily recurring-pattern scan
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@daily", func() { proc.ScanRecurring(context.Background()) }); err != nil {
		slog.Error("failed to schedule recurring scan", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP API
	runner := backfill.NewRunner(db, slog.Default(), loc)
	srv := api.NewServer(cfg.Port, cfg.APIToken, proc, db, runner, dir, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("radar ready", "port", cfg.Port, "oracles", len(oracles))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("radar stopped")
}

// buildOracles assembles the cascade in priority order from whatever
// keys are configured.
func buildOracles(ctx context.Context, cfg config.Config) []oracle.Oracle {
	var oracles []oracle.Oracle

	if cfg.GroqAPIKey != "" {
		oracles = append(oracles, oracle.NewGroq(cfg.GroqAPIKey, cfg.GroqModel))
		slog.Info("groq oracle ready", "model", cfg.GroqModel)
	}
	if cfg.GeminiAPIKey != "" {
		g, err := oracle.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("gemini oracle unavailable", "error", err)
		} else {
			oracles = append(oracles, g)
			slog.Info("gemini oracle ready", "model", cfg.GeminiModel)
		}
	}
	if cfg.AnthropicAPIKey != "" {
		oracles = append(oracles, oracle.NewClaude(cfg.AnthropicAPIKey, cfg.AnthropicModel))
		slog.Info("claude oracle ready", "model", cfg.AnthropicModel)
	}
	return oracles
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
