package store

import (
	"context"
	"sync"

	"sealedger/internal/aggregate/models"
	"sealedger/pkg/platform/sentinel"
)

// InMemory keeps category metrics in a process-local map.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]*models.CategoryMetrics
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]*models.CategoryMetrics)}
}

// Put replaces the entry for the metric's category.
func (s *InMemory) Put(_ context.Context, m *models.CategoryMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.entries[m.Category] = &cp
	return nil
}

// Delete removes the entry for category. Deleting an absent entry is a no-op.
func (s *InMemory) Delete(_ context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, category)
	return nil
}

// Get returns the entry for category, or sentinel.ErrNotFound.
func (s *InMemory) Get(_ context.Context, category string) (*models.CategoryMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.entries[category]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// Has reports whether a computed entry with matches exists for category.
func (s *InMemory) Has(_ context.Context, category string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.entries[category]
	return ok && m.HasMetrics, nil
}
