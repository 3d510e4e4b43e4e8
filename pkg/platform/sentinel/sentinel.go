package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about stored resources, not validation
// failures:
// - ErrNotFound: entity does not exist in the store
// - ErrConflict: a uniqueness or state constraint was violated on write
// - ErrOutOfRange: an index or offset addresses past the stored population
// - ErrInvalidState: entity in wrong state for the requested mutation
// - ErrUnavailable: backing store temporarily unreachable
//
// For input validation (bad address, empty category), use pkg/domain-errors
// directly in the service layer.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrOutOfRange   = errors.New("out of range")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
