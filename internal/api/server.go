package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whatsorga/radar/internal/store"
)

// Pipeline is the feedback entry point into the processor.
type Pipeline interface {
	HandleFeedback(ctx context.Context, terminID uuid.UUID, action, reason string, correction map[string]string) (*store.Termin, error)
}

// TerminReader serves the dashboard queries.
type TerminReader interface {
	Upcoming(ctx context.Context, chatID string, limit int) ([]store.Termin, error)
}

// Bootstrapper seeds chat history from an export upload.
type Bootstrapper interface {
	Run(ctx context.Context, chatID, chatName string, export io.Reader) (int, error)
}

// ProfileReloader refreshes the person profiles from disk.
type ProfileReloader interface {
	Reload() error
}

type Server struct {
	router   *chi.Mux
	port     int
	logger   *slog.Logger
	pipeline Pipeline
	termine  TerminReader
	backfill Bootstrapper
	profiles ProfileReloader
}

func NewServer(port int, apiToken string, pipeline Pipeline, termine TerminReader, backfill Bootstrapper, profiles ProfileReloader, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		logger:   logger,
		pipeline: pipeline,
		termine:  termine,
		backfill: backfill,
		profiles: profiles,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/radar/status", s.status)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(bearerAuth(apiToken))
		r.Get("/termine/{chatID}", s.listTermine)
		r.Post("/termine/{id}/feedback", s.recordFeedback)
		r.Post("/context/init", s.initContext)
		r.Post("/persons/reload", s.reloadProfiles)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// bearerAuth rejects requests without the configured token. An empty
// token disables auth, for local runs.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
				if got != token {
					writeError(w, http.StatusUnauthorized, "invalid token")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "radar",
		"status":  "running",
	})
}

func (s *Server) listTermine(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	termine, err := s.termine.Upcoming(r.Context(), chatID, limit)
	if err != nil {
		s.logger.Error("termine query failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chat_id": chatID,
		"termine": termine,
		"count":   len(termine),
	})
}

// FeedbackRequest is the body of POST /api/v1/termine/{id}/feedback.
type FeedbackRequest struct {
	Action     string            `json:"action"` // confirmed, rejected, edited
	Reason     string            `json:"reason,omitempty"`
	Correction map[string]string `json:"correction,omitempty"`
}

func (s *Server) recordFeedback(w http.ResponseWriter, r *http.Request) {
	terminID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid termin id")
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	switch req.Action {
	case store.FeedbackConfirmed, store.FeedbackRejected:
	case store.FeedbackEdited:
		if len(req.Correction) == 0 {
			writeError(w, http.StatusBadRequest, "edited feedback needs a correction")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	t, err := s.pipeline.HandleFeedback(r.Context(), terminID, req.Action, req.Reason, req.Correction)
	if err != nil {
		s.logger.Error("feedback failed", "termin_id", terminID, "error", err)
		writeError(w, http.StatusInternalServerError, "feedback failed")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// InitContextRequest carries a raw WhatsApp export for backfill.
type InitContextRequest struct {
	ChatID   string `json:"chat_id"`
	ChatName string `json:"chat_name"`
	Export   string `json:"export"`
}

func (s *Server) initContext(w http.ResponseWriter, r *http.Request) {
	var req InitContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ChatID == "" || req.Export == "" {
		writeError(w, http.StatusBadRequest, "chat_id and export are required")
		return
	}

	n, err := s.backfill.Run(r.Context(), req.ChatID, req.ChatName, strings.NewReader(req.Export))
	if err != nil {
		s.logger.Error("backfill failed", "chat_id", req.ChatID, "error", err)
		writeError(w, http.StatusInternalServerError, "backfill failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chat_id": req.ChatID, "stored": n})
}

func (s *Server) reloadProfiles(w http.ResponseWriter, r *http.Request) {
	if err := s.profiles.Reload(); err != nil {
		s.logger.Error("profile reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
