package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sealedger/internal/inspection/models"
	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
	"sealedger/pkg/platform/sentinel"
)

const (
	submitterA = id.Address("0x1111000000000000000000000000000000000001")
	submitterB = id.Address("0x2222000000000000000000000000000000000002")
)

type LedgerStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *LedgerStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestLedgerStoreSuite(t *testing.T) {
	suite.Run(t, new(LedgerStoreSuite))
}

func (s *LedgerStoreSuite) append(submitter id.Address, category string) *models.InspectionRecord {
	rec, err := s.store.Append(s.ctx, func(next id.InspectionID) (*models.InspectionRecord, error) {
		return models.NewInspectionRecord(next, submitter, category, time.Now().UTC())
	})
	s.Require().NoError(err)
	return rec
}

// TestSequentialIDs verifies ids are assigned densely from zero.
func (s *LedgerStoreSuite) TestSequentialIDs() {
	for i := 0; i < 5; i++ {
		rec := s.append(submitterA, "electronics")
		s.Equal(id.InspectionID(i), rec.ID)
	}

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(5), count)
}

// TestFailedBuildLeavesNoTrace verifies a build error consumes no id.
func (s *LedgerStoreSuite) TestFailedBuildLeavesNoTrace() {
	s.append(submitterA, "electronics")

	_, err := s.store.Append(s.ctx, func(id.InspectionID) (*models.InspectionRecord, error) {
		return nil, dErrors.New(dErrors.CodeValidation, "bad input")
	})
	s.Require().Error(err)

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1), count)

	rec := s.append(submitterB, "textiles")
	s.Equal(id.InspectionID(1), rec.ID, "next append reuses the id the failed build never consumed")
}

// TestGet verifies lookups and the out-of-range sentinel.
func (s *LedgerStoreSuite) TestGet() {
	rec := s.append(submitterA, "electronics")

	found, err := s.store.Get(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(rec.Submitter, found.Submitter)

	_, err = s.store.Get(s.ctx, id.InspectionID(99))
	s.Require().ErrorIs(err, sentinel.ErrOutOfRange)
}

// TestExecute verifies validate-then-mutate atomicity.
func (s *LedgerStoreSuite) TestExecute() {
	rec := s.append(submitterA, "electronics")

	s.Run("validation failure leaves the record untouched", func() {
		_, err := s.store.Execute(s.ctx, rec.ID,
			func(*models.InspectionRecord) error {
				return dErrors.New(dErrors.CodeConflict, "nope")
			},
			func(r *models.InspectionRecord) error { r.Verified = true; return nil },
		)
		s.Require().Error(err)

		found, err := s.store.Get(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.False(found.Verified)
	})

	s.Run("mutation failure rolls its own changes back", func() {
		_, err := s.store.Execute(s.ctx, rec.ID,
			func(*models.InspectionRecord) error { return nil },
			func(r *models.InspectionRecord) error {
				r.ApplyVerification(submitterB)
				return dErrors.New(dErrors.CodeInternal, "sink down")
			},
		)
		s.Require().Error(err)

		found, err := s.store.Get(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.False(found.Verified)
		s.True(found.Verifier.IsZero())
	})

	s.Run("mutation persists", func() {
		updated, err := s.store.Execute(s.ctx, rec.ID,
			func(*models.InspectionRecord) error { return nil },
			func(r *models.InspectionRecord) error { r.ApplyVerification(submitterB); return nil },
		)
		s.Require().NoError(err)
		s.True(updated.Verified)

		found, err := s.store.Get(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.True(found.Verified)
		s.Equal(submitterB, found.Verifier)
	})

	s.Run("unknown id is out of range", func() {
		_, err := s.store.Execute(s.ctx, id.InspectionID(99),
			func(*models.InspectionRecord) error { return nil },
			func(*models.InspectionRecord) error { return nil },
		)
		s.Require().ErrorIs(err, sentinel.ErrOutOfRange)
	})
}

// TestSubmitterIndex verifies the per-submitter id index and its pagination.
func (s *LedgerStoreSuite) TestSubmitterIndex() {
	for i := 0; i < 3; i++ {
		s.append(submitterA, "electronics")
	}
	s.append(submitterB, "textiles")

	countA, err := s.store.CountBySubmitter(s.ctx, submitterA)
	s.Require().NoError(err)
	s.Equal(3, countA)

	s.Run("full listing", func() {
		ids, err := s.store.ListBySubmitter(s.ctx, submitterA, 0, 10)
		s.Require().NoError(err)
		s.Equal([]id.InspectionID{0, 1, 2}, ids)
	})

	s.Run("window in the middle", func() {
		ids, err := s.store.ListBySubmitter(s.ctx, submitterA, 1, 1)
		s.Require().NoError(err)
		s.Equal([]id.InspectionID{1}, ids)
	})

	s.Run("limit clamps at the end", func() {
		ids, err := s.store.ListBySubmitter(s.ctx, submitterA, 2, 10)
		s.Require().NoError(err)
		s.Equal([]id.InspectionID{2}, ids)
	})

	s.Run("offset at count yields an empty page", func() {
		ids, err := s.store.ListBySubmitter(s.ctx, submitterA, 3, 10)
		s.Require().NoError(err)
		s.Empty(ids)
	})

	s.Run("offset past count is out of range", func() {
		_, err := s.store.ListBySubmitter(s.ctx, submitterA, 4, 10)
		s.Require().ErrorIs(err, sentinel.ErrOutOfRange)
	})
}

// TestForEach verifies ordered iteration.
func (s *LedgerStoreSuite) TestForEach() {
	s.append(submitterA, "electronics")
	s.append(submitterB, "textiles")

	var seen []id.InspectionID
	err := s.store.ForEach(s.ctx, func(rec *models.InspectionRecord) error {
		seen = append(seen, rec.ID)
		return nil
	})
	s.Require().NoError(err)
	s.Equal([]id.InspectionID{0, 1}, seen)
}
