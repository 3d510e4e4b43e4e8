//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sealedger/internal/registry/models"
	"sealedger/internal/registry/store"
	id "sealedger/pkg/domain"
	"sealedger/pkg/platform/sentinel"
	"sealedger/pkg/testutil/containers"
)

const (
	alice = id.Address("0x1111000000000000000000000000000000000001")
	bob   = id.Address("0x2222000000000000000000000000000000000002")
)

type PostgresRegistrySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresRegistrySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRegistrySuite))
}

func (s *PostgresRegistrySuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresRegistrySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "inspectors"))
}

func (s *PostgresRegistrySuite) newInspector(addr id.Address) *models.Inspector {
	inspector, err := models.NewInspector(addr, time.Now().UTC())
	s.Require().NoError(err)
	return inspector
}

func (s *PostgresRegistrySuite) TestAuthorizeRevokeRoundTrip() {
	ctx := context.Background()

	s.Require().NoError(s.store.Authorize(ctx, s.newInspector(alice)))

	ok, err := s.store.IsAuthorized(ctx, alice)
	s.Require().NoError(err)
	s.True(ok)

	found, err := s.store.Find(ctx, alice)
	s.Require().NoError(err)
	s.True(found.Authorized)
	s.Equal(alice, found.Address)

	s.Require().NoError(s.store.Revoke(ctx, alice))
	ok, err = s.store.IsAuthorized(ctx, alice)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.store.Authorize(ctx, s.newInspector(alice)), "re-authorization after revoke")
}

func (s *PostgresRegistrySuite) TestStateGuards() {
	ctx := context.Background()
	s.Require().NoError(s.store.Authorize(ctx, s.newInspector(alice)))

	s.ErrorIs(s.store.Authorize(ctx, s.newInspector(alice)), sentinel.ErrConflict)
	s.ErrorIs(s.store.Revoke(ctx, bob), sentinel.ErrInvalidState)

	_, err := s.store.Find(ctx, bob)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentAuthorize verifies the guarded upsert admits exactly one of
// many racing authorization attempts.
func (s *PostgresRegistrySuite) TestConcurrentAuthorize() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Authorize(ctx, s.newInspector(alice))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load(), "exactly one authorize should win")
	s.Equal(int32(goroutines-1), conflicts.Load())
}
