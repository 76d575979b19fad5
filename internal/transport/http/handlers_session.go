package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sevasetu/internal/conversation"
	"sevasetu/pkg/platform/sentinel"
)

type startSessionRequest struct {
	UserID   string `json:"user_id"`
	Language string `json:"language"`
}

type startSessionResponse struct {
	SessionID string             `json:"session_id"`
	Phase     conversation.Phase `json:"phase"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid request body", sentinel.ErrValidation))
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}
	state, err := h.sessions.Start(r.Context(), req.UserID, req.Language)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, startSessionResponse{SessionID: state.SessionID, Phase: state.Phase})
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var input conversation.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid request body", sentinel.ErrValidation))
		return
	}
	outcome, err := h.sessions.Advance(r.Context(), sessionID, input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	state, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Abandon(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type escalateRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleEscalate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req escalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid request body", sentinel.ErrValidation))
		return
	}
	c, err := h.sessions.EscalateSession(r.Context(), sessionID, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.DeleteSessionData(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
