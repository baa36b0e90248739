package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"autilance/auth"
	"autilance/dispute"
)

const (
	msgUnauthenticated   = "Unauthorized"
	msgForbiddenView     = "Forbidden"
	msgModeratorRequired = "Unauthorized - Moderator access required"
	msgNotFound          = "Dispute not found"
	msgInvalidAction     = "Invalid action"
	msgInvalidBody       = "Invalid request body"
	msgAlreadyEscalated  = "Dispute is already escalated"
	msgResolved          = "Cannot escalate a resolved dispute"
	msgClosed            = "Cannot escalate a closed dispute"
	msgInternal          = "Internal server error"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthenticated)
		return
	}

	detail, err := s.disputes.View(r.Context(), chi.URLParam(r, "id"), principal)
	if err != nil {
		s.writeDisputeError(w, r, err, msgForbiddenView)
		return
	}

	writeJSON(w, http.StatusOK, toDisputeDetailResponse(detail))
}

type patchDisputeRequest struct {
	Action string `json:"action"`
}

func (s *Server) handlePatchDispute(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthenticated)
		return
	}

	var req patchDisputeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	action, err := dispute.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidAction)
		return
	}

	detail, err := s.disputes.Apply(r.Context(), chi.URLParam(r, "id"), action, principal)
	if err != nil {
		s.writeDisputeError(w, r, err, msgModeratorRequired)
		return
	}

	writeJSON(w, http.StatusOK, toDisputeDetailResponse(detail))
}

func (s *Server) handleListDisputes(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthenticated)
		return
	}

	query := r.URL.Query()
	filters := dispute.Filters{Status: dispute.Status(strings.TrimSpace(query.Get("status")))}
	var err error
	if filters.Page, err = optionalInt(query.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	if filters.PageSize, err = optionalInt(query.Get("pageSize")); err != nil {
		writeError(w, http.StatusBadRequest, "pageSize must be a positive integer")
		return
	}

	result, err := s.disputes.List(r.Context(), filters, principal)
	if err != nil {
		if errors.Is(err, dispute.ErrInvalidFilter) {
			writeError(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		s.writeDisputeError(w, r, err, msgModeratorRequired)
		return
	}

	items := make([]disputeResponse, 0, len(result.Items))
	for _, rec := range result.Items {
		items = append(items, toDisputeResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": result.Total,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	user, err := s.auth.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrMissingFields):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "Email already registered")
		default:
			hlog.FromRequest(r).Error().Err(err).Msg("register user")
			writeError(w, http.StatusInternalServerError, msgInternal)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(*user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	result, err := s.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("login")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: formatTime(result.ExpiresAt),
		User:      toUserResponse(result.User),
	})
}

// writeDisputeError maps workflow errors onto status codes. forbidden is the
// 403 message, which differs between viewing and moderating.
func (s *Server) writeDisputeError(w http.ResponseWriter, r *http.Request, err error, forbidden string) {
	switch {
	case errors.Is(err, dispute.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, msgUnauthenticated)
	case errors.Is(err, dispute.ErrUnauthorized):
		writeError(w, http.StatusForbidden, forbidden)
	case errors.Is(err, dispute.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, dispute.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, msgInvalidAction)
	case errors.Is(err, dispute.ErrAlreadyEscalated):
		writeError(w, http.StatusBadRequest, msgAlreadyEscalated)
	case errors.Is(err, dispute.ErrDisputeResolved):
		writeError(w, http.StatusBadRequest, msgResolved)
	case errors.Is(err, dispute.ErrDisputeClosed):
		writeError(w, http.StatusBadRequest, msgClosed)
	case errors.Is(err, dispute.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "Invalid status transition")
	default:
		hlog.FromRequest(r).Error().Err(err).
			Str("dispute_id", chi.URLParam(r, "id")).
			Msg("dispute request failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
