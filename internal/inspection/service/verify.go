package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"sealedger/internal/inspection/models"
	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
	"sealedger/pkg/platform/audit"
	"sealedger/pkg/platform/sentinel"
	"sealedger/pkg/requestcontext"
)

// VerifyInspection marks a record as cross-checked by a second inspector.
//
// Preconditions, checked in this order: the id addresses an existing record;
// the caller is an authorized inspector; the record is not already verified;
// the caller is not the record's submitter. Verified is terminal — there is
// no un-verify.
//
// The check order is observable: callers relying on which error surfaces
// first get exactly this sequence.
func (s *Service) VerifyInspection(ctx context.Context, recID id.InspectionID) (*models.InspectionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.VerifyInspection")
	defer span.End()
	span.SetAttributes(attribute.Int64("inspection.id", int64(recID)))

	caller := requestcontext.Caller(ctx)

	// Existence is checked before authorization, so probing an invalid id
	// reports out-of-range even to strangers.
	count, err := s.records.Count(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count inspections")
	}
	if uint64(recID) >= count {
		return nil, dErrors.New(dErrors.CodeOutOfRange, "invalid inspection id")
	}

	authorized, err := s.registry.IsAuthorized(ctx, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check inspector authorization")
	}
	if !authorized {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not an authorized inspector")
	}

	rec, err := s.records.Execute(ctx, recID,
		func(r *models.InspectionRecord) error {
			return r.CanVerify(caller)
		},
		func(r *models.InspectionRecord) error {
			r.ApplyVerification(caller)
			// Emitted inside the store's critical section; a failing audit
			// sink rolls the transition back.
			return s.record(ctx, audit.Event{
				Action:        audit.ActionInspectionVerified,
				Timestamp:     requestcontext.Now(ctx),
				Actor:         caller,
				Subject:       r.Submitter,
				Category:      r.Category,
				InspectionID:  r.ID,
				HasInspection: true,
			})
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrOutOfRange) {
			return nil, dErrors.New(dErrors.CodeOutOfRange, "invalid inspection id")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.InspectionsVerified.Inc()
	}
	s.logger.InfoContext(ctx, "inspection verified",
		"id", uint64(rec.ID), "verifier", caller.String())
	return rec, nil
}
