package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sealedger/internal/registry/models"
	id "sealedger/pkg/domain"
	"sealedger/pkg/platform/sentinel"
)

type InspectorStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *InspectorStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestInspectorStoreSuite(t *testing.T) {
	suite.Run(t, new(InspectorStoreSuite))
}

func (s *InspectorStoreSuite) newInspector(addr id.Address) *models.Inspector {
	inspector, err := models.NewInspector(addr, time.Now().UTC())
	s.Require().NoError(err)
	return inspector
}

const (
	alice = id.Address("0x1111000000000000000000000000000000000001")
	bob   = id.Address("0x2222000000000000000000000000000000000002")
)

// TestAuthorizeAndLookups verifies authorization state round-trips.
func (s *InspectorStoreSuite) TestAuthorizeAndLookups() {
	s.Run("authorizes and finds inspector", func() {
		s.Require().NoError(s.store.Authorize(s.ctx, s.newInspector(alice)))

		ok, err := s.store.IsAuthorized(s.ctx, alice)
		s.Require().NoError(err)
		s.True(ok)

		found, err := s.store.Find(s.ctx, alice)
		s.Require().NoError(err)
		s.True(found.Authorized)
	})

	s.Run("unknown address is not authorized", func() {
		ok, err := s.store.IsAuthorized(s.ctx, bob)
		s.Require().NoError(err)
		s.False(ok)

		_, err = s.store.Find(s.ctx, bob)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestAuthorizeConflicts verifies double-authorization is rejected.
func (s *InspectorStoreSuite) TestAuthorizeConflicts() {
	s.Require().NoError(s.store.Authorize(s.ctx, s.newInspector(alice)))

	err := s.store.Authorize(s.ctx, s.newInspector(alice))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

// TestRevoke verifies the revoke state transitions.
func (s *InspectorStoreSuite) TestRevoke() {
	s.Run("revokes an authorized inspector", func() {
		s.Require().NoError(s.store.Authorize(s.ctx, s.newInspector(alice)))
		s.Require().NoError(s.store.Revoke(s.ctx, alice))

		ok, err := s.store.IsAuthorized(s.ctx, alice)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("rejects revoking an unknown inspector", func() {
		err := s.store.Revoke(s.ctx, bob)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("rejects revoking twice", func() {
		err := s.store.Revoke(s.ctx, alice)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("re-authorization after revoke succeeds", func() {
		s.Require().NoError(s.store.Authorize(s.ctx, s.newInspector(alice)))

		ok, err := s.store.IsAuthorized(s.ctx, alice)
		s.Require().NoError(err)
		s.True(ok)
	})
}
