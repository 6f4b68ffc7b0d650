package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string
	APIToken    string

	// Extraction oracles
	GroqAPIKey       string
	GroqModel        string
	GroqWhisperModel string
	GeminiAPIKey     string
	GeminiModel      string
	AnthropicAPIKey  string
	AnthropicModel   string
	OracleTimeout    time.Duration

	// CalDAV
	CalDAVURL             string
	CalDAVUsername        string
	CalDAVPassword        string
	CalDAVCalendar        string
	CalDAVSuggestCalendar string
	CalDAVTimeout         time.Duration
	CalendarWorkers       int

	// Extraction tuning
	UserName         string
	PartnerName      string
	Timezone         string
	AutoConfidence   float64
	ContextLookback  int // days
	ContextLookahead int // days
	HistoryLimit     int
	FeedbackLimit    int

	PersonsDir string
}

func Load() Config {
	// Best-effort .env for local development; real env vars win.
	_ = godotenv.Load()

	return Config{
		Port:        envInt("RADAR_PORT", 8900),
		NatsURL:     envStr("NATS_URL", "nats://nats:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		APIToken:    envStr("RADAR_API_TOKEN", ""),

		GroqAPIKey:       envStr("RADAR_GROQ_API_KEY", ""),
		GroqModel:        envStr("RADAR_GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqWhisperModel: envStr("RADAR_GROQ_WHISPER_MODEL", "whisper-large-v3-turbo"),
		GeminiAPIKey:     envStr("RADAR_GEMINI_API_KEY", ""),
		GeminiModel:      envStr("RADAR_GEMINI_MODEL", "gemini-2.5-flash"),
		AnthropicAPIKey:  envStr("RADAR_ANTHROPIC_API_KEY", ""),
		AnthropicModel:   envStr("RADAR_ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		OracleTimeout:    envDuration("RADAR_ORACLE_TIMEOUT", 30*time.Second),

		CalDAVURL:             envStr("RADAR_CALDAV_URL", ""),
		CalDAVUsername:        envStr("RADAR_CALDAV_USERNAME", ""),
		CalDAVPassword:        envStr("RADAR_CALDAV_PASSWORD", ""),
		CalDAVCalendar:        envStr("RADAR_CALDAV_CALENDAR", "WhatsOrga"),
		CalDAVSuggestCalendar: envStr("RADAR_CALDAV_SUGGEST_CALENDAR", "WhatsOrga ?"),
		CalDAVTimeout:         envDuration("RADAR_CALDAV_TIMEOUT", 15*time.Second),
		CalendarWorkers:       envInt("RADAR_CALENDAR_WORKERS", 2),

		UserName:         envStr("RADAR_USER_NAME", "Ben"),
		PartnerName:      envStr("RADAR_PARTNER_NAME", "Marike"),
		Timezone:         envStr("RADAR_TIMEZONE", "Europe/Berlin"),
		AutoConfidence:   envFloat("RADAR_AUTO_CONFIDENCE", 0.8),
		ContextLookback:  envInt("RADAR_CONTEXT_LOOKBACK_DAYS", 7),
		ContextLookahead: envInt("RADAR_CONTEXT_LOOKAHEAD_DAYS", 60),
		HistoryLimit:     envInt("RADAR_HISTORY_LIMIT", 10),
		FeedbackLimit:    envInt("RADAR_FEEDBACK_LIMIT", 10),

		PersonsDir: envStr("RADAR_PERSONS_DIR", "data/persons"),
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
