package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	aggstore "sealedger/internal/aggregate/store"
	"sealedger/internal/confidential"
	inspservice "sealedger/internal/inspection/service"
	inspstore "sealedger/internal/inspection/store"
	registryservice "sealedger/internal/registry/service"
	registrystore "sealedger/internal/registry/store"
	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
	"sealedger/pkg/platform/audit"
	auditmem "sealedger/pkg/platform/audit/store/memory"
	"sealedger/pkg/requestcontext"
)

const (
	owner      = id.Address("0xffff000000000000000000000000000000000001")
	inspectorA = id.Address("0x1111000000000000000000000000000000000002")
	inspectorB = id.Address("0x2222000000000000000000000000000000000003")
)

// failingRecorder simulates an unavailable audit sink.
type failingRecorder struct{}

func (failingRecorder) Append(context.Context, audit.Event) error {
	return errors.New("audit sink unavailable")
}

type AggregateSuite struct {
	suite.Suite
	values   *confidential.Store
	registry *registryservice.Service
	ledger   *inspservice.Service
	records  *inspstore.InMemory
	store    *aggstore.InMemory
	service  *Service
	events   *auditmem.InMemoryStore
}

func (s *AggregateSuite) SetupTest() {
	engine, err := confidential.NewSealedEngine(bytes.Repeat([]byte{0x42}, 32))
	s.Require().NoError(err)
	s.values = confidential.NewStore(engine)
	s.events = auditmem.NewInMemoryStore()

	s.registry, err = registryservice.New(owner, registrystore.NewInMemory())
	s.Require().NoError(err)
	ownerCtx := requestcontext.WithCaller(context.Background(), owner)
	s.Require().NoError(s.registry.AuthorizeInspector(ownerCtx, inspectorA))
	s.Require().NoError(s.registry.AuthorizeInspector(ownerCtx, inspectorB))

	s.records = inspstore.NewInMemory()
	s.store = aggstore.NewInMemory()
	s.ledger = inspservice.New(s.records, s.registry, s.values)
	s.service = New(s.records, s.values, s.store, s.registry, WithRecorder(s.events))
}

func TestAggregateSuite(t *testing.T) {
	suite.Run(t, new(AggregateSuite))
}

func (s *AggregateSuite) as(caller id.Address) context.Context {
	return requestcontext.WithCaller(context.Background(), caller)
}

func (s *AggregateSuite) submit(caller id.Address, score uint8, category string) {
	_, err := s.ledger.RecordInspection(s.as(caller), inspservice.RecordInput{
		QualityScore: score,
		DefectCount:  1,
		BatchNumber:  42,
		Category:     category,
	})
	s.Require().NoError(err)
}

func (s *AggregateSuite) TestCategoryAggregation() {
	s.submit(inspectorA, 85, "electronics")
	s.submit(inspectorB, 75, "electronics")
	s.submit(inspectorA, 95, "electronics")
	s.submit(inspectorB, 50, "textiles")

	m, err := s.service.CalculateCategoryMetrics(s.as(owner), "electronics")
	s.Require().NoError(err)

	s.True(m.HasMetrics)
	s.Equal(3, m.RecordsConsidered)

	s.Run("owner opens the aggregate counters", func() {
		total, passed, err := s.service.DiscloseTotals(s.as(owner), "electronics")
		s.Require().NoError(err)
		s.Equal(uint64(3), total)
		s.Equal(uint64(3), passed, "all three scores meet the pass threshold of 70")
	})

	s.Run("non-owners cannot open them", func() {
		_, _, err := s.service.DiscloseTotals(s.as(inspectorA), "electronics")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("recomputation emits an event with the match count", func() {
		events, err := s.events.List(context.Background())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionMetricsUpdated, events[0].Action)
		s.Equal("electronics", events[0].Category)
		s.Equal(3, events[0].RecordsConsidered)
	})
}

func (s *AggregateSuite) TestPassThresholdBoundary() {
	s.submit(inspectorA, 70, "textiles")
	s.submit(inspectorB, 69, "textiles")

	_, err := s.service.CalculateCategoryMetrics(s.as(owner), "textiles")
	s.Require().NoError(err)

	total, passed, err := s.service.DiscloseTotals(s.as(owner), "textiles")
	s.Require().NoError(err)
	s.Equal(uint64(2), total)
	s.Equal(uint64(1), passed, "a score of exactly 70 passes, 69 does not")
}

func (s *AggregateSuite) TestOwnerOnlyRecomputation() {
	_, err := s.service.CalculateCategoryMetrics(s.as(inspectorA), "electronics")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *AggregateSuite) TestEmptyCategory() {
	m, err := s.service.CalculateCategoryMetrics(s.as(owner), "furniture")
	s.Require().NoError(err)
	s.False(m.HasMetrics)
	s.Zero(m.RecordsConsidered)

	has, err := s.service.HasCategoryMetrics(context.Background(), "furniture")
	s.Require().NoError(err)
	s.False(has, "an entry with no matches does not count as computed metrics")

	_, _, err = s.service.DiscloseTotals(s.as(owner), "furniture")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AggregateSuite) TestUncomputedCategory() {
	has, err := s.service.HasCategoryMetrics(context.Background(), "electronics")
	s.Require().NoError(err)
	s.False(has)

	_, err = s.service.GetCategoryMetrics(context.Background(), "electronics")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AggregateSuite) TestRecomputationOverwrites() {
	s.submit(inspectorA, 85, "electronics")

	_, err := s.service.CalculateCategoryMetrics(s.as(owner), "electronics")
	s.Require().NoError(err)
	total, _, err := s.service.DiscloseTotals(s.as(owner), "electronics")
	s.Require().NoError(err)
	s.Equal(uint64(1), total)

	s.submit(inspectorB, 60, "electronics")

	_, err = s.service.CalculateCategoryMetrics(s.as(owner), "electronics")
	s.Require().NoError(err)
	total, passed, err := s.service.DiscloseTotals(s.as(owner), "electronics")
	s.Require().NoError(err)
	s.Equal(uint64(2), total, "recomputation reflects the grown ledger")
	s.Equal(uint64(1), passed)

	s.Run("idempotent when the ledger has not grown", func() {
		_, err := s.service.CalculateCategoryMetrics(s.as(owner), "electronics")
		s.Require().NoError(err)
		again, againPassed, err := s.service.DiscloseTotals(s.as(owner), "electronics")
		s.Require().NoError(err)
		s.Equal(total, again)
		s.Equal(passed, againPassed)
	})
}

// TestFailedAuditLeavesMetricsUnchanged pins the all-or-nothing commit
// contract: a recomputation whose event never landed is not observable.
func (s *AggregateSuite) TestFailedAuditLeavesMetricsUnchanged() {
	s.submit(inspectorA, 85, "electronics")
	broken := New(s.records, s.values, s.store, s.registry, WithRecorder(failingRecorder{}))

	s.Run("a failed first computation leaves no entry behind", func() {
		_, err := broken.CalculateCategoryMetrics(s.as(owner), "electronics")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		has, err := s.service.HasCategoryMetrics(context.Background(), "electronics")
		s.Require().NoError(err)
		s.False(has)

		_, err = s.service.GetCategoryMetrics(context.Background(), "electronics")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("a failed recompute restores the prior entry", func() {
		prior, err := s.service.CalculateCategoryMetrics(s.as(owner), "electronics")
		s.Require().NoError(err)

		s.submit(inspectorB, 60, "electronics")
		_, err = broken.CalculateCategoryMetrics(s.as(owner), "electronics")
		s.Require().Error(err)

		current, err := s.service.GetCategoryMetrics(context.Background(), "electronics")
		s.Require().NoError(err)
		s.Equal(prior.RecordsConsidered, current.RecordsConsidered)
		s.Equal(prior.Total, current.Total)
		s.Equal(prior.Passed, current.Passed)
	})
}

// TestRecomputationProceedsWhilePaused pins the reference behavior: the
// paused flag does not gate recomputation.
func (s *AggregateSuite) TestRecomputationProceedsWhilePaused() {
	s.submit(inspectorA, 85, "electronics")
	s.Require().NoError(s.registry.Pause(s.as(owner)))
	s.Require().True(s.registry.Paused())

	m, err := s.service.CalculateCategoryMetrics(s.as(owner), "electronics")
	s.Require().NoError(err)
	s.True(m.HasMetrics)
}

func (s *AggregateSuite) TestIndividualScoresStaySealed() {
	s.submit(inspectorA, 85, "electronics")

	_, err := s.service.CalculateCategoryMetrics(s.as(owner), "electronics")
	s.Require().NoError(err)

	// The owner can open aggregates but holds no capability on the record's
	// own score.
	rec, err := s.ledger.GetInspectionInfo(context.Background(), id.InspectionID(0))
	s.Require().NoError(err)
	s.Equal(inspectorA, rec.Submitter)

	_, err = s.ledger.DiscloseValue(s.as(owner), id.InspectionID(0), inspservice.FieldQualityScore)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
