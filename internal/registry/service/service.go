// Package service implements the inspector registry and the admin control
// surface: owner-gated authorization, pause/unpause, and contract stats.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"sealedger/internal/registry/metrics"
	"sealedger/internal/registry/models"
	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
	"sealedger/pkg/platform/audit"
	"sealedger/pkg/platform/sentinel"
	"sealedger/pkg/requestcontext"
)

// InspectorStore persists registry entries.
type InspectorStore interface {
	Authorize(ctx context.Context, inspector *models.Inspector) error
	Revoke(ctx context.Context, addr id.Address) error
	IsAuthorized(ctx context.Context, addr id.Address) (bool, error)
	Find(ctx context.Context, addr id.Address) (*models.Inspector, error)
}

// InspectionCounter exposes the ledger's monotonic record count for stats.
type InspectionCounter interface {
	Count(ctx context.Context) (uint64, error)
}

// EventRecorder appends to the audit log. Emission is fail-closed: if the
// recorder errors, the operation errors.
type EventRecorder interface {
	Append(ctx context.Context, event audit.Event) error
}

// Service is the registry and admin-control core. The owner is fixed at
// construction and authorized as an inspector at genesis.
//
// The paused flag is togglable and queryable but is deliberately NOT
// consulted by record/verify/aggregate operations; see DESIGN.md.
type Service struct {
	owner      id.Address
	inspectors InspectorStore
	counter    InspectionCounter
	recorder   EventRecorder
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu     sync.RWMutex
	paused bool
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder EventRecorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithInspectionCounter(c InspectionCounter) Option {
	return func(s *Service) { s.counter = c }
}

// New constructs the registry around its owner and authorizes the owner at
// genesis. A zero owner address is a configuration error.
func New(owner id.Address, inspectors InspectorStore, opts ...Option) (*Service, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner address cannot be zero")
	}
	s := &Service{owner: owner, inspectors: inspectors, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	genesis, err := models.NewInspector(owner, requestcontext.Now(context.Background()))
	if err != nil {
		return nil, err
	}
	if err := s.inspectors.Authorize(context.Background(), genesis); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed owner authorization")
	}
	return s, nil
}

// Owner returns the immutable owner address.
func (s *Service) Owner() id.Address { return s.owner }

func (s *Service) requireOwner(ctx context.Context) error {
	if requestcontext.Caller(ctx) != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the ledger owner")
	}
	return nil
}

// AuthorizeInspector grants addr submission and verification rights.
// Owner-only. Fails on a zero address or an already-authorized one.
func (s *Service) AuthorizeInspector(ctx context.Context, addr id.Address) error {
	if err := s.requireOwner(ctx); err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	inspector, err := models.NewInspector(addr, now)
	if err != nil {
		return err
	}
	if err := s.inspectors.Authorize(ctx, inspector); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "inspector already authorized")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to authorize inspector")
	}
	if err := s.record(ctx, audit.Event{
		Action:    audit.ActionInspectorAuthorized,
		Timestamp: now,
		Actor:     s.owner,
		Subject:   addr,
	}); err != nil {
		// Undo the grant so an unlogged authorization is never in effect.
		if undoErr := s.inspectors.Revoke(ctx, addr); undoErr != nil {
			s.logger.ErrorContext(ctx, "failed to undo authorization after audit failure",
				"address", addr.String(), "error", undoErr)
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.InspectorsAuthorized.Inc()
	}
	s.logger.InfoContext(ctx, "inspector authorized", "address", addr.String())
	return nil
}

// RevokeInspector removes addr's rights. Owner-only. Fails if addr is not
// currently authorized.
func (s *Service) RevokeInspector(ctx context.Context, addr id.Address) error {
	if err := s.requireOwner(ctx); err != nil {
		return err
	}
	prior, err := s.inspectors.Find(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeConflict, "inspector is not authorized")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load inspector")
	}
	if err := s.inspectors.Revoke(ctx, addr); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeConflict, "inspector is not authorized")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke inspector")
	}
	if err := s.record(ctx, audit.Event{
		Action:    audit.ActionInspectorRevoked,
		Timestamp: requestcontext.Now(ctx),
		Actor:     s.owner,
		Subject:   addr,
	}); err != nil {
		// Reinstate the entry so an unlogged revocation is never in effect.
		if undoErr := s.inspectors.Authorize(ctx, prior); undoErr != nil {
			s.logger.ErrorContext(ctx, "failed to undo revocation after audit failure",
				"address", addr.String(), "error", undoErr)
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.InspectorsRevoked.Inc()
	}
	s.logger.InfoContext(ctx, "inspector revoked", "address", addr.String())
	return nil
}

// IsAuthorized reports whether addr may submit and verify records.
func (s *Service) IsAuthorized(ctx context.Context, addr id.Address) (bool, error) {
	return s.inspectors.IsAuthorized(ctx, addr)
}

// Pause sets the global paused flag. Owner-only.
func (s *Service) Pause(ctx context.Context) error {
	return s.setPaused(ctx, true, audit.ActionLedgerPaused)
}

// Unpause clears the global paused flag. Owner-only.
func (s *Service) Unpause(ctx context.Context) error {
	return s.setPaused(ctx, false, audit.ActionLedgerUnpaused)
}

func (s *Service) setPaused(ctx context.Context, paused bool, action audit.Action) error {
	if err := s.requireOwner(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	prev := s.paused
	s.paused = paused
	s.mu.Unlock()
	if err := s.record(ctx, audit.Event{
		Action:    action,
		Timestamp: requestcontext.Now(ctx),
		Actor:     s.owner,
	}); err != nil {
		s.mu.Lock()
		s.paused = prev
		s.mu.Unlock()
		return err
	}
	if s.metrics != nil {
		s.metrics.PauseToggles.Inc()
	}
	s.logger.InfoContext(ctx, "pause flag toggled", "paused", paused)
	return nil
}

// Paused reports the flag's current value.
func (s *Service) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// Stats returns the plaintext contract state projection. Readable by anyone.
func (s *Service) Stats(ctx context.Context) (*models.ContractStats, error) {
	var count uint64
	if s.counter != nil {
		c, err := s.counter.Count(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count inspections")
		}
		count = c
	}
	return &models.ContractStats{
		Owner:           s.owner,
		Paused:          s.Paused(),
		InspectionCount: count,
	}, nil
}

func (s *Service) record(ctx context.Context, event audit.Event) error {
	if s.recorder == nil {
		return nil
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.recorder.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
	}
	return nil
}
