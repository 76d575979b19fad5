// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services without embedding business logic so transport concerns remain
// isolated; language rendering and document output belong to the external
// explanation layer.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sevasetu/internal/conversation"
	"sevasetu/internal/review"
	"sevasetu/internal/scheme"
	"sevasetu/pkg/platform/sentinel"
)

// Handler bundles the domain services the HTTP surface fronts.
type Handler struct {
	sessions *conversation.Service
	schemes  scheme.Store
	reviews  *review.Service
	logger   *zap.Logger
}

func NewHandler(sessions *conversation.Service, schemes scheme.Store, reviews *review.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, schemes: schemes, reviews: reviews, logger: logger}
}

// NewRouter wires all public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Post("/sessions", h.handleStartSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Post("/sessions/{sessionID}/advance", h.handleAdvance)
	r.Post("/sessions/{sessionID}/abandon", h.handleAbandon)
	r.Post("/sessions/{sessionID}/escalate", h.handleEscalate)
	r.Delete("/sessions/{sessionID}", h.handleDeleteSession)

	r.Get("/schemes", h.handleListSchemes)
	r.Put("/schemes/{schemeID}/versions", h.handlePutVersion)
	r.Get("/schemes/{schemeID}/versions/{version}", h.handleGetVersion)

	r.Post("/review/next", h.handleDequeueNext)
	r.Get("/review/pending", h.handleListPending)
	r.Post("/review/{caseID}/decision", h.handleSubmitDecision)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes sentinel translation to HTTP responses so every
// handler returns the same JSON error envelope.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sentinel.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, sentinel.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, sentinel.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, sentinel.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
