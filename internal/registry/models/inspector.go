package models

import (
	"time"

	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
)

// Inspector is a registry entry: a principal allowed to submit and verify
// inspection records.
//
// Invariants:
//   - Address is non-zero and immutable after construction
//   - Authorized toggles only through the owner-gated service operations
//   - the owner is authorized at genesis and behaves like any inspector
type Inspector struct {
	Address      id.Address `json:"address"`
	Authorized   bool       `json:"authorized"`
	AuthorizedAt time.Time  `json:"authorized_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func NewInspector(addr id.Address, now time.Time) (*Inspector, error) {
	if addr.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "inspector address cannot be zero")
	}
	return &Inspector{
		Address:      addr,
		Authorized:   true,
		AuthorizedAt: now,
		UpdatedAt:    now,
	}, nil
}

// ContractStats is the plaintext projection of global ledger state.
type ContractStats struct {
	Owner           id.Address `json:"owner"`
	Paused          bool       `json:"paused"`
	InspectionCount uint64     `json:"inspection_count"`
}
