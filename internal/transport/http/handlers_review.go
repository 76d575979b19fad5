package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sevasetu/internal/review"
	"sevasetu/pkg/platform/sentinel"
)

type dequeueRequest struct {
	ReviewerID string `json:"reviewer_id"`
}

func (h *Handler) handleDequeueNext(w http.ResponseWriter, r *http.Request) {
	var req dequeueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid request body", sentinel.ErrValidation))
		return
	}
	c, err := h.reviews.DequeueNext(r.Context(), req.ReviewerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type pendingCase struct {
	review.Case
	AgeSeconds int64 `json:"age_seconds"`
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	cases, err := h.reviews.PendingCases(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	now := time.Now()
	out := make([]pendingCase, 0, len(cases))
	for _, c := range cases {
		out = append(out, pendingCase{Case: c, AgeSeconds: int64(c.Age(now).Seconds())})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSubmitDecision(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	var d review.Decision
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid decision body", sentinel.ErrValidation))
		return
	}
	if err := h.reviews.SubmitDecision(r.Context(), caseID, d); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
