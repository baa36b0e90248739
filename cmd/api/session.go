package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"autilance/auth"
)

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

// session resolves the bearer token, when present, into a Principal stored on
// the request context. Requests without a token pass through anonymous; each
// handler decides whether a session is required.
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}

		principal, err := s.auth.Authenticate(r.Context(), strings.TrimSpace(token))
		if errors.Is(err, auth.ErrInvalidToken) {
			hlog.FromRequest(r).Debug().Err(err).Msg("rejected session token")
			writeError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("resolve session")
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyPrincipal, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(auth.Principal)
	if !ok || p.ID == "" {
		return auth.Principal{}, false
	}
	return p, true
}
