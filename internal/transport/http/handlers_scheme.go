package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sevasetu/internal/scheme"
	"sevasetu/pkg/platform/sentinel"
)

func (h *Handler) handleListSchemes(w http.ResponseWriter, r *http.Request) {
	versions, err := h.schemes.ListActive(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *Handler) handlePutVersion(w http.ResponseWriter, r *http.Request) {
	schemeID := chi.URLParam(r, "schemeID")
	var rules scheme.RuleSet
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid rule set body", sentinel.ErrValidation))
		return
	}
	version, err := h.schemes.PutNewVersion(r.Context(), schemeID, rules)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func (h *Handler) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	schemeID := chi.URLParam(r, "schemeID")
	n, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: version must be an integer", sentinel.ErrValidation))
		return
	}
	version, err := h.schemes.GetVersion(r.Context(), schemeID, n)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}
