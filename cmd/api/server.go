package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"autilance/auth"
	"autilance/dispute"
	"autilance/metrics"
)

type disputeService interface {
	View(ctx context.Context, disputeID string, p auth.Principal) (dispute.Detail, error)
	Apply(ctx context.Context, disputeID string, action dispute.Action, p auth.Principal) (dispute.Detail, error)
	List(ctx context.Context, filters dispute.Filters, p auth.Principal) (dispute.ListResult, error)
}

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	Authenticate(ctx context.Context, token string) (auth.Principal, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Server bundles the HTTP handlers and the services they call into.
type Server struct {
	disputes       disputeService
	auth           authService
	db             pinger
	metrics        *metrics.Registry
	log            zerolog.Logger
	requestTimeout time.Duration
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-ID"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.RealIP)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if s.requestTimeout > 0 {
			r.Use(middleware.Timeout(s.requestTimeout))
		}
		r.Use(s.session)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Get("/disputes", s.handleListDisputes)
		r.Get("/dispute/{id}", s.handleGetDispute)
		r.Patch("/dispute/{id}", s.handlePatchDispute)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// recoverer turns a handler panic into the generic 500 body.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().Interface("panic", rec).Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, msgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
