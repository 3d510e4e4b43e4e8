package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"sealedger/internal/registry/store"
	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
	"sealedger/pkg/platform/audit"
	auditmem "sealedger/pkg/platform/audit/store/memory"
	"sealedger/pkg/requestcontext"
)

const (
	owner     = id.Address("0xffff000000000000000000000000000000000001")
	inspector = id.Address("0x1111000000000000000000000000000000000002")
	outsider  = id.Address("0x2222000000000000000000000000000000000003")
)

type countStub struct{ n uint64 }

func (c *countStub) Count(context.Context) (uint64, error) { return c.n, nil }

type RegistrySuite struct {
	suite.Suite
	service *Service
	events  *auditmem.InMemoryStore
	counter *countStub

	ownerCtx    context.Context
	outsiderCtx context.Context
}

func (s *RegistrySuite) SetupTest() {
	s.events = auditmem.NewInMemoryStore()
	s.counter = &countStub{}

	var err error
	s.service, err = New(owner, store.NewInMemory(),
		WithRecorder(s.events),
		WithInspectionCounter(s.counter),
	)
	s.Require().NoError(err)

	s.ownerCtx = requestcontext.WithCaller(context.Background(), owner)
	s.outsiderCtx = requestcontext.WithCaller(context.Background(), outsider)
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) TestOwnerIsAuthorizedAtGenesis() {
	ok, err := s.service.IsAuthorized(context.Background(), owner)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *RegistrySuite) TestConstructionRejectsZeroOwner() {
	_, err := New(id.ZeroAddress, store.NewInMemory())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RegistrySuite) TestAuthorizeInspector() {
	s.Run("owner authorizes a new inspector", func() {
		s.Require().NoError(s.service.AuthorizeInspector(s.ownerCtx, inspector))

		ok, err := s.service.IsAuthorized(context.Background(), inspector)
		s.Require().NoError(err)
		s.True(ok)

		events, err := s.events.List(context.Background())
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(audit.ActionInspectorAuthorized, last.Action)
		s.Equal(inspector, last.Subject)
	})

	s.Run("rejects double authorization", func() {
		err := s.service.AuthorizeInspector(s.ownerCtx, inspector)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects non-owner caller", func() {
		err := s.service.AuthorizeInspector(s.outsiderCtx, outsider)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects the zero address", func() {
		err := s.service.AuthorizeInspector(s.ownerCtx, id.ZeroAddress)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistrySuite) TestRevokeInspector() {
	s.Require().NoError(s.service.AuthorizeInspector(s.ownerCtx, inspector))

	s.Run("rejects non-owner caller", func() {
		err := s.service.RevokeInspector(s.outsiderCtx, inspector)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("owner revokes", func() {
		s.Require().NoError(s.service.RevokeInspector(s.ownerCtx, inspector))

		ok, err := s.service.IsAuthorized(context.Background(), inspector)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("rejects revoking an already-revoked inspector", func() {
		err := s.service.RevokeInspector(s.ownerCtx, inspector)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *RegistrySuite) TestPauseToggling() {
	s.False(s.service.Paused())

	s.Run("rejects non-owner caller", func() {
		err := s.service.Pause(s.outsiderCtx)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.False(s.service.Paused())
	})

	s.Run("owner pauses and unpauses", func() {
		s.Require().NoError(s.service.Pause(s.ownerCtx))
		s.True(s.service.Paused())

		s.Require().NoError(s.service.Unpause(s.ownerCtx))
		s.False(s.service.Paused())
	})

	s.Run("toggles are audited", func() {
		events, err := s.events.ListByActor(context.Background(), owner.String())
		s.Require().NoError(err)

		var actions []audit.Action
		for _, e := range events {
			actions = append(actions, e.Action)
		}
		s.Contains(actions, audit.ActionLedgerPaused)
		s.Contains(actions, audit.ActionLedgerUnpaused)
	})
}

// failingRecorder simulates an unavailable audit sink.
type failingRecorder struct{}

func (failingRecorder) Append(context.Context, audit.Event) error {
	return errors.New("audit sink unavailable")
}

// TestFailedAuditRollsBack pins the all-or-nothing commit contract: an
// operation whose event never landed leaves no state change behind.
func (s *RegistrySuite) TestFailedAuditRollsBack() {
	shared := store.NewInMemory()
	healthy, err := New(owner, shared, WithRecorder(s.events))
	s.Require().NoError(err)
	broken, err := New(owner, shared, WithRecorder(failingRecorder{}))
	s.Require().NoError(err)

	s.Run("authorization", func() {
		s.Require().Error(broken.AuthorizeInspector(s.ownerCtx, inspector))

		ok, err := shared.IsAuthorized(context.Background(), inspector)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("revocation", func() {
		s.Require().NoError(healthy.AuthorizeInspector(s.ownerCtx, inspector))
		s.Require().Error(broken.RevokeInspector(s.ownerCtx, inspector))

		ok, err := shared.IsAuthorized(context.Background(), inspector)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("pause toggle", func() {
		s.Require().Error(broken.Pause(s.ownerCtx))
		s.False(broken.Paused())
	})
}

// TestAdminOperationsProceedWhilePaused pins the reference behavior: the
// paused flag gates nothing, not even the admin surface that sets it.
func (s *RegistrySuite) TestAdminOperationsProceedWhilePaused() {
	s.Require().NoError(s.service.Pause(s.ownerCtx))
	s.Require().True(s.service.Paused())

	s.Require().NoError(s.service.AuthorizeInspector(s.ownerCtx, inspector))
	ok, err := s.service.IsAuthorized(context.Background(), inspector)
	s.Require().NoError(err)
	s.True(ok)

	s.Require().NoError(s.service.RevokeInspector(s.ownerCtx, inspector))
}

func (s *RegistrySuite) TestStats() {
	s.counter.n = 7
	s.Require().NoError(s.service.Pause(s.ownerCtx))

	stats, err := s.service.Stats(context.Background())
	s.Require().NoError(err)
	s.Equal(owner, stats.Owner)
	s.True(stats.Paused)
	s.Equal(uint64(7), stats.InspectionCount)
}
