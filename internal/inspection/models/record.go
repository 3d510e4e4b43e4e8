package models

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"sealedger/internal/confidential"
	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
)

// MaxQualityScore is the inclusive upper bound for a quality score.
const MaxQualityScore = 100

// InspectionRecord is the ledger's aggregate root.
//
// Invariants:
//   - ID is sequential from 0, assigned at creation, immutable
//   - Submitter, Category, Timestamp and Digest are immutable
//   - Verified transitions false → true exactly once; Verifier is set in
//     the same step and never changes afterwards
//   - records are never deleted
//
// The three value handles point at encrypted integers in the confidential
// store; their plaintext never appears on this struct.
type InspectionRecord struct {
	ID        id.InspectionID `json:"id"`
	Submitter id.Address      `json:"submitter"`
	Category  string          `json:"category"`
	Timestamp time.Time       `json:"timestamp"`
	Verified  bool            `json:"verified"`
	Verifier  id.Address      `json:"verifier,omitempty"`

	QualityScore confidential.Handle `json:"-"`
	DefectCount  confidential.Handle `json:"-"`
	BatchNumber  confidential.Handle `json:"-"`

	Digest []byte `json:"digest"`
}

// NewInspectionRecord builds a record with its integrity digest. The caller
// supplies the id the store assigned; value handles are attached separately
// because minting happens before the record lands.
func NewInspectionRecord(recID id.InspectionID, submitter id.Address, category string, ts time.Time) (*InspectionRecord, error) {
	if submitter.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "submitter address cannot be zero")
	}
	if category == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "category is required")
	}
	return &InspectionRecord{
		ID:        recID,
		Submitter: submitter,
		Category:  category,
		Timestamp: ts,
		Digest:    ComputeDigest(recID, submitter, category, ts),
	}, nil
}

// ComputeDigest hashes the plaintext-visible identity of a record. Anyone
// holding the visible fields can recompute and compare it.
func ComputeDigest(recID id.InspectionID, submitter id.Address, category string, ts time.Time) []byte {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(recID))
	h.Write(buf[:])
	h.Write([]byte(submitter))
	h.Write([]byte(category))
	binary.BigEndian.PutUint64(buf[:], uint64(ts.UTC().UnixNano()))
	h.Write(buf[:])
	return h.Sum(nil)
}

// CanVerify checks the verification preconditions that depend on record
// state: not yet verified, and the verifier is not the submitter. Existence
// and registry checks happen before this in the service.
func (r *InspectionRecord) CanVerify(verifier id.Address) error {
	if r.Verified {
		return dErrors.New(dErrors.CodeConflict, "inspection already verified")
	}
	if verifier == r.Submitter {
		return dErrors.New(dErrors.CodeSelfReference, "inspectors cannot verify their own inspections")
	}
	return nil
}

// ApplyVerification marks the record verified. Call CanVerify first.
func (r *InspectionRecord) ApplyVerification(verifier id.Address) {
	r.Verified = true
	r.Verifier = verifier
}

// InspectionInfo is the plaintext-visible projection served to readers.
type InspectionInfo struct {
	ID        id.InspectionID `json:"id"`
	Submitter id.Address      `json:"submitter"`
	Category  string          `json:"category"`
	Timestamp time.Time       `json:"timestamp"`
	Verified  bool            `json:"verified"`
	Verifier  id.Address      `json:"verifier,omitempty"`
	Digest    string          `json:"digest"`
}

// Info projects the record's visible fields.
func (r *InspectionRecord) Info() *InspectionInfo {
	return &InspectionInfo{
		ID:        r.ID,
		Submitter: r.Submitter,
		Category:  r.Category,
		Timestamp: r.Timestamp,
		Verified:  r.Verified,
		Verifier:  r.Verifier,
		Digest:    hex.EncodeToString(r.Digest),
	}
}
