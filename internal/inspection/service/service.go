// Package service implements the inspection ledger and its verification
// engine: appending records with sealed values, the one-way verified
// transition, and the read-only projections.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"sealedger/internal/confidential"
	"sealedger/internal/inspection/metrics"
	"sealedger/internal/inspection/models"
	id "sealedger/pkg/domain"
	"sealedger/pkg/platform/audit"
)

// RecordStore persists inspection records and the per-submitter index.
type RecordStore interface {
	Append(ctx context.Context, build func(next id.InspectionID) (*models.InspectionRecord, error)) (*models.InspectionRecord, error)
	Get(ctx context.Context, recID id.InspectionID) (*models.InspectionRecord, error)
	Count(ctx context.Context) (uint64, error)
	Execute(ctx context.Context, recID id.InspectionID,
		validate func(*models.InspectionRecord) error,
		mutate func(*models.InspectionRecord) error) (*models.InspectionRecord, error)
	CountBySubmitter(ctx context.Context, addr id.Address) (int, error)
	ListBySubmitter(ctx context.Context, addr id.Address, offset, limit int) ([]id.InspectionID, error)
	ForEach(ctx context.Context, visit func(*models.InspectionRecord) error) error
}

// Registry answers whether a caller is an authorized inspector.
type Registry interface {
	IsAuthorized(ctx context.Context, addr id.Address) (bool, error)
}

// EventRecorder appends to the audit log, fail-closed.
type EventRecorder interface {
	Append(ctx context.Context, event audit.Event) error
}

// Service is the ledger core.
type Service struct {
	records  RecordStore
	registry Registry
	values   *confidential.Store
	recorder EventRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
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

// New constructs the ledger service.
func New(records RecordStore, registry Registry, values *confidential.Store, opts ...Option) *Service {
	s := &Service{
		records:  records,
		registry: registry,
		values:   values,
		logger:   slog.Default(),
		tracer:   otel.Tracer("sealedger/inspection"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Count exposes the monotonic record counter (registry stats use this).
func (s *Service) Count(ctx context.Context) (uint64, error) {
	return s.records.Count(ctx)
}
