package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ABHI-11949/avatar/internal/config"
	"github.com/ABHI-11949/avatar/internal/events"
	"github.com/ABHI-11949/avatar/internal/gateway"
	"github.com/ABHI-11949/avatar/internal/heygen"
	"github.com/ABHI-11949/avatar/internal/observability"
)

// History reads the session journal.
type History interface {
	History(ctx context.Context, sessionID string, limit int) ([]events.Event, error)
}

type Server struct {
	cfg      config.Config
	gateway  *gateway.Service
	hub      *events.Hub
	history  History
	metrics  *observability.Metrics
	logger   *slog.Logger
	cors     corsPolicy
	upgrader websocket.Upgrader
}

func New(
	cfg config.Config,
	gw *gateway.Service,
	hub *events.Hub,
	history History,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*Server, error) {
	policy, err := newCORSPolicy(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		gateway: gw,
		hub:     hub,
		history: history,
		metrics: metrics,
		logger:  observability.WithComponent(logger, "httpapi"),
		cors:    policy,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				// Non-browser clients often omit Origin. Allow them.
				return true
			}
			return s.cors.allows(origin, r)
		},
	}
	return s, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(observability.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(s.cors.middleware(s.logger))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/api/avatar", func(r chi.Router) {
		r.Post("/create-session", s.handleCreateSession)
		r.Post("/speak", s.handleSpeak)
		r.Post("/stop", s.handleStop)
		r.Get("/sessions/{session_id}", s.handleGetSession)
		r.Get("/sessions/{session_id}/history", s.handleSessionHistory)
		r.Get("/sessions/{session_id}/events", s.handleSessionEvents)
		r.Get("/list-avatars", s.handleListAvatars)
		r.Get("/provider-latency", s.handleProviderLatency)
	})

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "HeyGen Avatar API",
		"status":  "running",
		"docs":    "/docs",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func (s *Server) handleProviderLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.RecentProviderLatency())
}

// requestID propagates X-Request-Id or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(observability.ContextWithRequestID(r.Context(), id)))
	})
}

type errorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Detail: message, Code: code})
}

// respondCommandError maps gateway and provider failures onto HTTP statuses.
func (s *Server) respondCommandError(w http.ResponseWriter, r *http.Request, err error) {
	var ge *gateway.Error
	if errors.As(err, &ge) {
		switch ge.Kind {
		case gateway.KindValidation:
			respondError(w, http.StatusBadRequest, "validation_error", ge.Message)
		case gateway.KindNotFound:
			respondError(w, http.StatusNotFound, "session_not_found", ge.Message)
		default:
			respondError(w, http.StatusBadRequest, "upstream_rejected", ge.Message)
		}
		return
	}

	if ue, ok := heygen.AsUpstreamError(err); ok {
		observability.LoggerFor(r.Context(), s.logger).Warn("provider call failed",
			"path", r.URL.Path,
			"status", ue.Status,
			"error", err,
		)
		if ue.Transport() {
			respondError(w, http.StatusInternalServerError, "upstream_error", ue.Detail)
			return
		}
		respondError(w, ue.Status, "upstream_error", "HeyGen API error: "+ue.Detail)
		return
	}

	observability.LoggerFor(r.Context(), s.logger).Error("command failed", "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
}
