// Package http exposes the moderation engine as a JSON API. Requests are
// validated against the embedded OpenAPI document before reaching a handler.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/warden"
	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/confirm"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/notify"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed openapi.yaml
var rawSpec []byte

// Engine is the part of warden.Engine the API drives.
type Engine interface {
	GuildConfig(guildID string) domain.GuildConfig
	SetMaxWarns(ctx context.Context, guildID string, n int) (domain.GuildConfig, error)
	Warn(ctx context.Context, guildID, userID string) (domain.WarnResult, error)
	WarnCount(ctx context.Context, guildID, userID string) (int, error)
	ClearWarns(ctx context.Context, guildID, userID string) error
	Moderate(ctx context.Context, req warden.ModerateRequest) (warden.ModerateResult, error)
	OpenReplaceChannel(ctx context.Context, req warden.ReplaceRequest) (*warden.Replacement, error)
	Purge(ctx context.Context, req domain.PurgeRequest) (domain.PurgeResult, error)
	OpenConfirmation(ctx context.Context, req confirm.Request) (domain.Session, error)
	OpenNotification(ctx context.Context, req notify.Request) (domain.Session, error)
	Session(id string) (domain.Session, error)
	Sessions() []domain.Session
	Await(ctx context.Context, id string) (domain.SessionState, error)
	Resolve(ctx context.Context, id, actorID string, choice domain.Choice) (warden.Resolution, error)
}

var _ Engine = (*warden.Engine)(nil)

// Server holds the handler dependencies.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams shares a StreamManager whose Hooks were given to the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetrics serves the gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	s := &Server{Engine: engine, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	validate, err := newValidator(rawSpec, s.logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(validate)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)

	r.Route("/guilds/{guildID}", func(r chi.Router) {
		r.Get("/config", s.GetGuildConfig)
		r.Put("/config", s.PutGuildConfig)
		r.Post("/warns", s.WarnUser)
		r.Get("/warns/{userID}", s.GetWarnCount)
		r.Delete("/warns/{userID}", s.ClearWarns)
		r.Post("/actions", s.Moderate)
		r.Post("/channels/{channelID}/replace", s.ReplaceChannel)
	})
	r.Post("/channels/{channelID}/purge", s.PurgeMessages)
	r.Post("/confirmations", s.OpenConfirmation)
	r.Post("/notifications", s.OpenNotification)
	r.Get("/sessions", s.ListSessions)
	r.Get("/sessions/{sessionID}", s.GetSession)
	r.Post("/sessions/{sessionID}/resolve", s.ResolveSession)

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidChoice):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrTargetNotFound),
		errors.Is(err, domain.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsContextError(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidRequest, err)
	}
	return nil
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "warden-http",
		"version": strings.TrimSpace(warden.Version),
	})
}
