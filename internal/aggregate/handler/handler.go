// Package handler exposes the category metrics operations.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sealedger/internal/aggregate/service"
	"sealedger/pkg/platform/httputil"
)

type Handler struct {
	aggregator *service.Service
}

func New(aggregator *service.Service) *Handler {
	return &Handler{aggregator: aggregator}
}

// MountAdmin attaches the owner-only recomputation route, flat under /admin
// like the rest of the admin surface.
func (h *Handler) MountAdmin(r chi.Router) {
	r.Post("/metrics/{category}", h.calculate)
}

// MountInspector attaches disclosure routes requiring an authenticated
// caller.
func (h *Handler) MountInspector(r chi.Router) {
	r.Get("/categories/{category}/metrics/totals", h.discloseTotals)
}

// MountPublic attaches the plaintext projections.
func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/categories/{category}/metrics", h.get)
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	entry, err := h.aggregator.CalculateCategoryMetrics(r.Context(), category)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	has, err := h.aggregator.HasCategoryMetrics(r.Context(), category)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !has {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"category":    category,
			"has_metrics": false,
		})
		return
	}
	entry, err := h.aggregator.GetCategoryMetrics(r.Context(), category)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) discloseTotals(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	total, passed, err := h.aggregator.DiscloseTotals(r.Context(), category)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"total":    total,
		"passed":   passed,
	})
}
