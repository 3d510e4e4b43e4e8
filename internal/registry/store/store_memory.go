package store

import (
	"context"
	"sync"

	"sealedger/internal/registry/models"
	id "sealedger/pkg/domain"
	"sealedger/pkg/platform/sentinel"
)

// InMemory keeps inspector authorization in a process-local map.
// All writes happen under one mutex, matching the serialized-mutation
// contract the ledger operations assume.
type InMemory struct {
	mu         sync.RWMutex
	inspectors map[id.Address]*models.Inspector
}

func NewInMemory() *InMemory {
	return &InMemory{inspectors: make(map[id.Address]*models.Inspector)}
}

// Authorize inserts or re-enables an entry. Returns sentinel.ErrConflict if
// the address is already authorized.
func (s *InMemory) Authorize(_ context.Context, inspector *models.Inspector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.inspectors[inspector.Address]; ok && existing.Authorized {
		return sentinel.ErrConflict
	}
	cp := *inspector
	s.inspectors[inspector.Address] = &cp
	return nil
}

// Revoke disables an entry. Returns sentinel.ErrInvalidState if the address
// is not currently authorized.
func (s *InMemory) Revoke(_ context.Context, addr id.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.inspectors[addr]
	if !ok || !existing.Authorized {
		return sentinel.ErrInvalidState
	}
	existing.Authorized = false
	return nil
}

// IsAuthorized reports the current authorization bit for addr.
func (s *InMemory) IsAuthorized(_ context.Context, addr id.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing, ok := s.inspectors[addr]
	return ok && existing.Authorized, nil
}

// Find returns the entry for addr, or sentinel.ErrNotFound.
func (s *InMemory) Find(_ context.Context, addr id.Address) (*models.Inspector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing, ok := s.inspectors[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *existing
	return &cp, nil
}
