// Package handler exposes the registry and admin-control operations.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sealedger/internal/registry/service"
	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
	"sealedger/pkg/platform/httputil"
)

type Handler struct {
	registry *service.Service
}

func New(registry *service.Service) *Handler {
	return &Handler{registry: registry}
}

// MountAdmin attaches the owner-only routes. The router must already carry
// the admin-token middleware.
func (h *Handler) MountAdmin(r chi.Router) {
	r.Post("/inspectors", h.authorizeInspector)
	r.Delete("/inspectors/{address}", h.revokeInspector)
	r.Post("/pause", h.pause)
	r.Post("/unpause", h.unpause)
}

// MountPublic attaches unauthenticated projections.
func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/stats", h.stats)
	r.Get("/inspectors/{address}", h.inspectorStatus)
}

type authorizeRequest struct {
	Address string `json:"address"`
}

func (h *Handler) authorizeInspector(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if err := h.registry.AuthorizeInspector(r.Context(), id.Address(req.Address)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"address": req.Address})
}

func (h *Handler) revokeInspector(w http.ResponseWriter, r *http.Request) {
	addr := id.Address(chi.URLParam(r, "address"))
	if err := h.registry.RevokeInspector(r.Context(), addr); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Pause(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (h *Handler) unpause(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Unpause(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) inspectorStatus(w http.ResponseWriter, r *http.Request) {
	addr := id.Address(chi.URLParam(r, "address"))
	authorized, err := h.registry.IsAuthorized(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"address":    addr.String(),
		"authorized": authorized,
	})
}
