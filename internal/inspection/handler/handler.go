// Package handler exposes the ledger's record, verify and read operations.
package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sealedger/internal/inspection/service"
	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
	"sealedger/pkg/platform/httputil"
)

type Handler struct {
	ledger *service.Service
}

func New(ledger *service.Service) *Handler {
	return &Handler{ledger: ledger}
}

// MountInspector attaches routes requiring an authenticated caller.
func (h *Handler) MountInspector(r chi.Router) {
	r.Post("/inspections", h.recordInspection)
	r.Post("/inspections/{id}/verify", h.verifyInspection)
	r.Get("/inspections/{id}/values/{field}", h.discloseValue)
}

// MountPublic attaches the plaintext projections.
func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/inspections/{id}", h.getInspection)
	r.Get("/inspectors/{address}/inspections", h.inspectorInspections)
	r.Get("/inspectors/{address}/inspections/count", h.inspectorHistoryCount)
}

// sealedField is the wire form of an externally encrypted input.
type sealedField struct {
	Ciphertext string `json:"ciphertext"` // base64
	Proof      string `json:"proof"`      // base64
}

type recordRequest struct {
	QualityScore uint8  `json:"quality_score"`
	DefectCount  uint8  `json:"defect_count"`
	BatchNumber  uint32 `json:"batch_number"`
	Category     string `json:"category"`

	Sealed *struct {
		QualityScore sealedField `json:"quality_score"`
		DefectCount  sealedField `json:"defect_count"`
		BatchNumber  sealedField `json:"batch_number"`
	} `json:"sealed,omitempty"`
}

func (h *Handler) recordInspection(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	input := service.RecordInput{
		QualityScore: req.QualityScore,
		DefectCount:  req.DefectCount,
		BatchNumber:  req.BatchNumber,
		Category:     req.Category,
	}
	if req.Sealed != nil {
		sealed := &service.SealedRecordInput{}
		for _, f := range []struct {
			src sealedField
			dst *service.SealedInput
		}{
			{req.Sealed.QualityScore, &sealed.QualityScore},
			{req.Sealed.DefectCount, &sealed.DefectCount},
			{req.Sealed.BatchNumber, &sealed.BatchNumber},
		} {
			ct, err := base64.StdEncoding.DecodeString(f.src.Ciphertext)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "ciphertext must be base64"))
				return
			}
			proof, err := base64.StdEncoding.DecodeString(f.src.Proof)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "proof must be base64"))
				return
			}
			f.dst.Ciphertext = ct
			f.dst.Proof = proof
		}
		input.Sealed = sealed
	}

	rec, err := h.ledger.RecordInspection(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec.Info())
}

func (h *Handler) verifyInspection(w http.ResponseWriter, r *http.Request) {
	recID, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, err := h.ledger.VerifyInspection(r.Context(), recID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec.Info())
}

func (h *Handler) getInspection(w http.ResponseWriter, r *http.Request) {
	recID, ok := parseID(w, r)
	if !ok {
		return
	}
	info, err := h.ledger.GetInspectionInfo(r.Context(), recID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) discloseValue(w http.ResponseWriter, r *http.Request) {
	recID, ok := parseID(w, r)
	if !ok {
		return
	}
	field := service.ValueField(chi.URLParam(r, "field"))
	value, err := h.ledger.DiscloseValue(r.Context(), recID, field)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"id":    uint64(recID),
		"field": string(field),
		"value": value,
	})
}

func (h *Handler) inspectorInspections(w http.ResponseWriter, r *http.Request) {
	addr := id.Address(chi.URLParam(r, "address"))
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	ids, err := h.ledger.InspectorInspections(r.Context(), addr, offset, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"address":     addr.String(),
		"inspections": ids,
	})
}

func (h *Handler) inspectorHistoryCount(w http.ResponseWriter, r *http.Request) {
	addr := id.Address(chi.URLParam(r, "address"))
	count, err := h.ledger.InspectorHistoryCount(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"address": addr.String(),
		"count":   count,
	})
}

func parseID(w http.ResponseWriter, r *http.Request) (id.InspectionID, bool) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "inspection id must be a non-negative integer"))
		return 0, false
	}
	return id.InspectionID(n), true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1 // surfaces as a validation error in the service
	}
	return n
}
