//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sealedger/internal/confidential"
	"sealedger/internal/inspection/models"
	"sealedger/internal/inspection/store"
	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
	"sealedger/pkg/platform/sentinel"
	"sealedger/pkg/testutil/containers"
)

const (
	submitterA = id.Address("0x1111000000000000000000000000000000000001")
	submitterB = id.Address("0x2222000000000000000000000000000000000002")
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresLedgerSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "inspections"))
}

func (s *PostgresLedgerSuite) append(submitter id.Address, category string) *models.InspectionRecord {
	rec, err := s.store.Append(context.Background(), func(next id.InspectionID) (*models.InspectionRecord, error) {
		r, err := models.NewInspectionRecord(next, submitter, category, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		r.QualityScore = confidential.Handle(fmt.Sprintf("score-%d", next))
		r.DefectCount = confidential.Handle(fmt.Sprintf("defects-%d", next))
		r.BatchNumber = confidential.Handle(fmt.Sprintf("batch-%d", next))
		return r, nil
	})
	s.Require().NoError(err)
	return rec
}

func (s *PostgresLedgerSuite) TestAppendAndGetRoundTrip() {
	ctx := context.Background()
	rec := s.append(submitterA, "electronics")
	s.Equal(id.InspectionID(0), rec.ID)

	found, err := s.store.Get(ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(rec.Submitter, found.Submitter)
	s.Equal(rec.Category, found.Category)
	s.Equal(rec.QualityScore, found.QualityScore)
	s.Equal(rec.Digest, found.Digest)
	s.False(found.Verified)

	_, err = s.store.Get(ctx, id.InspectionID(7))
	s.ErrorIs(err, sentinel.ErrOutOfRange)
}

// TestConcurrentAppendsStaySequential verifies the locking transaction keeps
// ids dense under concurrent appends.
func (s *PostgresLedgerSuite) TestConcurrentAppendsStaySequential() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.append(submitterA, "electronics")
		}()
	}
	wg.Wait()

	count, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(goroutines), count)

	seen := make(map[id.InspectionID]bool)
	err = s.store.ForEach(ctx, func(rec *models.InspectionRecord) error {
		seen[rec.ID] = true
		return nil
	})
	s.Require().NoError(err)
	for i := 0; i < goroutines; i++ {
		s.True(seen[id.InspectionID(i)], "id %d must exist", i)
	}
}

func (s *PostgresLedgerSuite) TestExecuteVerifyTransition() {
	ctx := context.Background()
	rec := s.append(submitterA, "electronics")

	s.Run("mutate error rolls the transaction back", func() {
		_, err := s.store.Execute(ctx, rec.ID,
			func(r *models.InspectionRecord) error { return r.CanVerify(submitterB) },
			func(r *models.InspectionRecord) error {
				r.ApplyVerification(submitterB)
				return dErrors.New(dErrors.CodeInternal, "sink down")
			},
		)
		s.Require().Error(err)

		found, err := s.store.Get(ctx, rec.ID)
		s.Require().NoError(err)
		s.False(found.Verified)
	})

	updated, err := s.store.Execute(ctx, rec.ID,
		func(r *models.InspectionRecord) error { return r.CanVerify(submitterB) },
		func(r *models.InspectionRecord) error { r.ApplyVerification(submitterB); return nil },
	)
	s.Require().NoError(err)
	s.True(updated.Verified)
	s.Equal(submitterB, updated.Verifier)

	found, err := s.store.Get(ctx, rec.ID)
	s.Require().NoError(err)
	s.True(found.Verified)

	s.Run("second verification fails and changes nothing", func() {
		_, err := s.store.Execute(ctx, rec.ID,
			func(r *models.InspectionRecord) error { return r.CanVerify(submitterB) },
			func(r *models.InspectionRecord) error { r.ApplyVerification(submitterB); return nil },
		)
		s.Require().Error(err)

		found, err := s.store.Get(ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(submitterB, found.Verifier)
	})
}

func (s *PostgresLedgerSuite) TestSubmitterIndex() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.append(submitterA, "electronics")
	}
	s.append(submitterB, "textiles")

	count, err := s.store.CountBySubmitter(ctx, submitterA)
	s.Require().NoError(err)
	s.Equal(3, count)

	ids, err := s.store.ListBySubmitter(ctx, submitterA, 1, 5)
	s.Require().NoError(err)
	s.Equal([]id.InspectionID{1, 2}, ids)

	_, err = s.store.ListBySubmitter(ctx, submitterA, 4, 1)
	s.ErrorIs(err, sentinel.ErrOutOfRange)
}
