package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"sealedger/internal/confidential"
	"sealedger/internal/inspection/models"
	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
	"sealedger/pkg/platform/audit"
	"sealedger/pkg/platform/sentinel"
	"sealedger/pkg/requestcontext"
)

// SealedInput carries an externally encrypted field and its correctness
// proof. Submitters that encrypt client-side use this instead of plaintext.
type SealedInput struct {
	Ciphertext []byte
	Proof      []byte
}

// RecordInput is a recordInspection submission. Either the plaintext fields
// are set, or Sealed carries all three encrypted inputs; the two paths end
// in identical record and permission state.
type RecordInput struct {
	QualityScore uint8
	DefectCount  uint8
	BatchNumber  uint32
	Category     string

	Sealed *SealedRecordInput
}

// SealedRecordInput is the already-encrypted submission variant.
type SealedRecordInput struct {
	QualityScore SealedInput
	DefectCount  SealedInput
	BatchNumber  SealedInput
}

// RecordInspection appends a new record.
//
// Preconditions, in order: caller is an authorized inspector; quality score
// is at most 100; category is non-empty. Any failure aborts with no state
// change. On success the three values are sealed with computation-capability
// for the ledger and disclosure-capability for the caller, the record lands
// with the next sequential id, and a "recorded" event is appended.
func (s *Service) RecordInspection(ctx context.Context, input RecordInput) (*models.InspectionRecord, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ledger.RecordInspection")
	defer span.End()

	caller := requestcontext.Caller(ctx)
	authorized, err := s.registry.IsAuthorized(ctx, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check inspector authorization")
	}
	if !authorized {
		s.reject()
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not an authorized inspector")
	}

	score, defects, batch, err := s.admitValues(ctx, caller, input)
	if err != nil {
		s.reject()
		return nil, err
	}
	if input.Category == "" {
		s.reject()
		return nil, dErrors.New(dErrors.CodeValidation, "category is required")
	}

	now := requestcontext.Now(ctx)
	rec, err := s.records.Append(ctx, func(next id.InspectionID) (*models.InspectionRecord, error) {
		r, err := models.NewInspectionRecord(next, caller, input.Category, now)
		if err != nil {
			return nil, err
		}
		r.QualityScore = score
		r.DefectCount = defects
		r.BatchNumber = batch
		// The event is appended inside the store's critical section: a
		// failing audit sink aborts the append, so the record and its event
		// commit together or not at all.
		if err := s.record(ctx, audit.Event{
			Action:        audit.ActionInspectionRecorded,
			Timestamp:     now,
			Actor:         caller,
			Category:      r.Category,
			InspectionID:  r.ID,
			HasInspection: true,
		}); err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("inspection.id", int64(rec.ID)))
	if s.metrics != nil {
		s.metrics.InspectionsRecorded.Inc()
		s.metrics.ObserveRecord(start)
	}
	s.logger.InfoContext(ctx, "inspection recorded",
		"id", uint64(rec.ID), "submitter", caller.String(), "category", rec.Category)
	return rec, nil
}

// admitValues turns the submission into three sealed handles. The plaintext
// path validates the score bound directly; the sealed path verifies each
// proof and evaluates the bound inside the engine, so no plaintext score is
// ever materialized in the core. Both paths grant the same capabilities.
func (s *Service) admitValues(ctx context.Context, caller id.Address, input RecordInput) (score, defects, batch confidential.Handle, err error) {
	if input.Sealed == nil {
		if input.QualityScore > models.MaxQualityScore {
			return "", "", "", dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("quality score %d exceeds maximum %d", input.QualityScore, models.MaxQualityScore))
		}
		if score, err = s.values.MintGranted(uint64(input.QualityScore), confidential.Width8, caller); err != nil {
			return "", "", "", err
		}
		if defects, err = s.values.MintGranted(uint64(input.DefectCount), confidential.Width8, caller); err != nil {
			return "", "", "", err
		}
		if batch, err = s.values.MintGranted(uint64(input.BatchNumber), confidential.Width32, caller); err != nil {
			return "", "", "", err
		}
		return score, defects, batch, nil
	}

	sealed := input.Sealed
	score, err = s.values.AdmitExternal(sealed.QualityScore.Ciphertext, sealed.QualityScore.Proof, confidential.Width8, caller)
	if err != nil {
		return "", "", "", err
	}
	within, err := s.scoreWithinBound(score)
	if err != nil {
		return "", "", "", err
	}
	if !within {
		return "", "", "", dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("quality score exceeds maximum %d", models.MaxQualityScore))
	}
	if defects, err = s.values.AdmitExternal(sealed.DefectCount.Ciphertext, sealed.DefectCount.Proof, confidential.Width8, caller); err != nil {
		return "", "", "", err
	}
	if batch, err = s.values.AdmitExternal(sealed.BatchNumber.Ciphertext, sealed.BatchNumber.Proof, confidential.Width32, caller); err != nil {
		return "", "", "", err
	}
	return score, defects, batch, nil
}

// scoreWithinBound evaluates score <= MaxQualityScore as an encrypted
// comparison. Only the boolean leaves the engine; the score does not.
func (s *Service) scoreWithinBound(score confidential.Handle) (bool, error) {
	over, err := s.values.GreaterOrEqual(score, models.MaxQualityScore+1)
	if err != nil {
		return false, err
	}
	// The predicate itself is disclosed to the ledger: aborting on it makes
	// the outcome public anyway.
	flag, err := s.values.DisclosePredicate(over)
	if err != nil {
		return false, err
	}
	return flag == 0, nil
}

// GetInspectionInfo returns the plaintext projection of a record.
func (s *Service) GetInspectionInfo(ctx context.Context, recID id.InspectionID) (*models.InspectionInfo, error) {
	rec, err := s.records.Get(ctx, recID)
	if err != nil {
		if errors.Is(err, sentinel.ErrOutOfRange) {
			return nil, dErrors.New(dErrors.CodeOutOfRange, "invalid inspection id")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load inspection")
	}
	return rec.Info(), nil
}

// InspectorHistoryCount returns the size of a submitter's id index.
func (s *Service) InspectorHistoryCount(ctx context.Context, addr id.Address) (int, error) {
	count, err := s.records.CountBySubmitter(ctx, addr)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count inspector history")
	}
	return count, nil
}

// InspectorInspections pages through a submitter's id index. An offset past
// the count is an out-of-range error; a generous limit is clamped silently.
func (s *Service) InspectorInspections(ctx context.Context, addr id.Address, offset, limit int) ([]id.InspectionID, error) {
	if offset < 0 || limit < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "offset and limit must be non-negative")
	}
	ids, err := s.records.ListBySubmitter(ctx, addr, offset, limit)
	if err != nil {
		if errors.Is(err, sentinel.ErrOutOfRange) {
			return nil, dErrors.New(dErrors.CodeOutOfRange, "offset exceeds inspector history")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list inspector history")
	}
	return ids, nil
}

// ValueField names one of the record's encrypted fields.
type ValueField string

const (
	FieldQualityScore ValueField = "quality_score"
	FieldDefectCount  ValueField = "defect_count"
	FieldBatchNumber  ValueField = "batch_number"
)

// DiscloseValue recovers the plaintext of one encrypted field for the
// calling principal, provided they hold disclosure-capability on it. This
// models the external decryption support path; nothing on the record
// mutation paths calls it.
func (s *Service) DiscloseValue(ctx context.Context, recID id.InspectionID, field ValueField) (uint64, error) {
	rec, err := s.records.Get(ctx, recID)
	if err != nil {
		if errors.Is(err, sentinel.ErrOutOfRange) {
			return 0, dErrors.New(dErrors.CodeOutOfRange, "invalid inspection id")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load inspection")
	}
	var h confidential.Handle
	switch field {
	case FieldQualityScore:
		h = rec.QualityScore
	case FieldDefectCount:
		h = rec.DefectCount
	case FieldBatchNumber:
		h = rec.BatchNumber
	default:
		return 0, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown value field %q", field))
	}
	return s.values.Disclose(h, requestcontext.Caller(ctx))
}

func (s *Service) reject() {
	if s.metrics != nil {
		s.metrics.RejectedSubmissions.Inc()
	}
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
