// Package service computes encrypted per-category statistics by scanning the
// ledger homomorphically: matching happens on cleartext categories, counting
// happens on sealed values, and no individual quality score is ever opened.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"sealedger/internal/aggregate/metrics"
	"sealedger/internal/aggregate/models"
	"sealedger/internal/confidential"
	inspmodels "sealedger/internal/inspection/models"
	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
	"sealedger/pkg/platform/audit"
	"sealedger/pkg/platform/sentinel"
	"sealedger/pkg/requestcontext"
)

// MetricsStore persists the per-category aggregates.
type MetricsStore interface {
	Put(ctx context.Context, m *models.CategoryMetrics) error
	Delete(ctx context.Context, category string) error
	Get(ctx context.Context, category string) (*models.CategoryMetrics, error)
	Has(ctx context.Context, category string) (bool, error)
}

// LedgerScanner walks the record population in id order.
type LedgerScanner interface {
	ForEach(ctx context.Context, visit func(*inspmodels.InspectionRecord) error) error
}

// Ownership exposes the immutable owner address for the owner-only gate.
type Ownership interface {
	Owner() id.Address
}

// EventRecorder appends to the audit log, fail-closed.
type EventRecorder interface {
	Append(ctx context.Context, event audit.Event) error
}

// Service is the metrics aggregator.
type Service struct {
	records   LedgerScanner
	values    *confidential.Store
	store     MetricsStore
	ownership Ownership
	recorder  EventRecorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	// group collapses concurrent recomputations of the same category; the
	// scan is idempotent so sharing one result is safe.
	group singleflight.Group
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

// New constructs the aggregator.
func New(records LedgerScanner, values *confidential.Store, store MetricsStore, ownership Ownership, opts ...Option) *Service {
	s := &Service{
		records:   records,
		values:    values,
		store:     store,
		ownership: ownership,
		logger:    slog.Default(),
		tracer:    otel.Tracer("sealedger/aggregate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CalculateCategoryMetrics recomputes the aggregate for one category.
//
// Owner-only. The scan is O(n) in total record count — a deliberate
// limitation carried over from the reference behavior. A category with no
// matching records yields hasMetrics=false and zero accumulators, not an
// error. A successful recomputation fully overwrites the prior entry and is
// idempotent when the ledger has not grown in between.
func (s *Service) CalculateCategoryMetrics(ctx context.Context, category string) (*models.CategoryMetrics, error) {
	caller := requestcontext.Caller(ctx)
	if caller != s.ownership.Owner() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not the ledger owner")
	}

	result, err, _ := s.group.Do(category, func() (any, error) {
		return s.recompute(ctx, category)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.CategoryMetrics), nil
}

func (s *Service) recompute(ctx context.Context, category string) (*models.CategoryMetrics, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "aggregate.CalculateCategoryMetrics")
	defer span.End()
	span.SetAttributes(attribute.String("category", category))

	owner := s.ownership.Owner()

	// Encrypted accumulators and constants; all arithmetic stays sealed.
	total, err := s.mintAccumulator(0)
	if err != nil {
		return nil, err
	}
	passed, err := s.mintAccumulator(0)
	if err != nil {
		return nil, err
	}
	one, err := s.mintAccumulator(1)
	if err != nil {
		return nil, err
	}
	zero, err := s.mintAccumulator(0)
	if err != nil {
		return nil, err
	}

	matched := 0
	scanned := 0
	err = s.records.ForEach(ctx, func(rec *inspmodels.InspectionRecord) error {
		scanned++
		if rec.Category != category {
			return nil
		}
		matched++
		if total, err = s.values.Add(total, one); err != nil {
			return err
		}
		passedCheck, err := s.values.GreaterOrEqual(rec.QualityScore, models.PassThreshold)
		if err != nil {
			return err
		}
		increment, err := s.values.Select(passedCheck, one, zero)
		if err != nil {
			return err
		}
		passed, err = s.values.Add(passed, increment)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "category scan failed")
	}

	now := requestcontext.Now(ctx)
	entry := &models.CategoryMetrics{
		Category:          category,
		ComputedAt:        now,
		RecordsConsidered: matched,
	}
	if matched > 0 {
		// The final aggregates may be opened by the owner later; individual
		// scores were never opened along the way.
		if err := s.values.GrantDisclosure(total, owner); err != nil {
			return nil, err
		}
		if err := s.values.GrantDisclosure(passed, owner); err != nil {
			return nil, err
		}
		entry.HasMetrics = true
		entry.Total = total
		entry.Passed = passed
	}
	// Snapshot the prior entry so a failed event append can put it back: a
	// recomputation either lands with its event or is not observable at all.
	prior, err := s.store.Get(ctx, category)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load prior category metrics")
	}
	if err := s.store.Put(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store category metrics")
	}

	if err := s.record(ctx, audit.Event{
		Action:            audit.ActionMetricsUpdated,
		Timestamp:         now,
		Actor:             owner,
		Category:          category,
		RecordsConsidered: matched,
	}); err != nil {
		s.restore(ctx, category, prior)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Recomputations.Inc()
		s.metrics.RecordsScanned.Add(float64(scanned))
		s.metrics.ObserveRecompute(start)
	}
	s.logger.InfoContext(ctx, "category metrics recomputed",
		"category", category, "matched", matched, "scanned", scanned)
	return entry, nil
}

// restore reinstates the pre-recompute entry after a failed event append.
func (s *Service) restore(ctx context.Context, category string, prior *models.CategoryMetrics) {
	var err error
	if prior != nil {
		err = s.store.Put(ctx, prior)
	} else {
		err = s.store.Delete(ctx, category)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to restore category metrics after audit failure",
			"category", category, "error", err)
	}
}

func (s *Service) mintAccumulator(v uint64) (confidential.Handle, error) {
	h, err := s.values.Mint(v, confidential.Width32)
	if err != nil {
		return confidential.NilHandle, err
	}
	if err := s.values.AllowComputation(h); err != nil {
		return confidential.NilHandle, err
	}
	return h, nil
}

// HasCategoryMetrics is a pure projection: does a computed entry with
// matches exist for category. Readable by anyone.
func (s *Service) HasCategoryMetrics(ctx context.Context, category string) (bool, error) {
	has, err := s.store.Has(ctx, category)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check category metrics")
	}
	return has, nil
}

// GetCategoryMetrics returns the stored entry for category.
func (s *Service) GetCategoryMetrics(ctx context.Context, category string) (*models.CategoryMetrics, error) {
	m, err := s.store.Get(ctx, category)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no metrics for category")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load category metrics")
	}
	return m, nil
}

// DiscloseTotals opens the aggregate counters for the calling principal,
// provided they hold disclosure-capability on both values.
func (s *Service) DiscloseTotals(ctx context.Context, category string) (total, passed uint64, err error) {
	m, err := s.GetCategoryMetrics(ctx, category)
	if err != nil {
		return 0, 0, err
	}
	if !m.HasMetrics {
		return 0, 0, dErrors.New(dErrors.CodeNotFound, "no metrics for category")
	}
	caller := requestcontext.Caller(ctx)
	if total, err = s.values.Disclose(m.Total, caller); err != nil {
		return 0, 0, err
	}
	if passed, err = s.values.Disclose(m.Passed, caller); err != nil {
		return 0, 0, err
	}
	return total, passed, nil
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
