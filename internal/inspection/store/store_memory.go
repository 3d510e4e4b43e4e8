package store

import (
	"context"
	"sync"

	"sealedger/internal/inspection/models"
	id "sealedger/pkg/domain"
	"sealedger/pkg/platform/sentinel"
)

// InMemory holds the ledger as an arena of records indexed by sequential id
// plus a per-submitter id index. One mutex serializes every write, which is
// the whole concurrency story: operations are atomic units against a
// globally ordered state.
type InMemory struct {
	mu          sync.RWMutex
	records     []*models.InspectionRecord
	bySubmitter map[id.Address][]id.InspectionID
}

func NewInMemory() *InMemory {
	return &InMemory{bySubmitter: make(map[id.Address][]id.InspectionID)}
}

// Append assigns the next sequential id, hands it to build, and commits the
// resulting record in the same critical section. Ids therefore never gap,
// repeat, or land out of order, and the digest can cover the assigned id.
func (s *InMemory) Append(_ context.Context, build func(next id.InspectionID) (*models.InspectionRecord, error)) (*models.InspectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := id.InspectionID(len(s.records))
	rec, err := build(next)
	if err != nil {
		return nil, err
	}
	s.records = append(s.records, rec)
	s.bySubmitter[rec.Submitter] = append(s.bySubmitter[rec.Submitter], rec.ID)
	cp := *rec
	return &cp, nil
}

// Get returns a copy of the record, or sentinel.ErrOutOfRange.
func (s *InMemory) Get(_ context.Context, recID id.InspectionID) (*models.InspectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if uint64(recID) >= uint64(len(s.records)) {
		return nil, sentinel.ErrOutOfRange
	}
	cp := *s.records[recID]
	return &cp, nil
}

// Count returns the number of records ever appended.
func (s *InMemory) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.records)), nil
}

// Execute runs validate then mutate on the record under the write lock, so
// precondition and state change are one atomic step. Both callbacks work on
// a scratch copy that is committed only when they succeed: an error from
// either leaves the stored record untouched.
func (s *InMemory) Execute(_ context.Context, recID id.InspectionID,
	validate func(*models.InspectionRecord) error,
	mutate func(*models.InspectionRecord) error,
) (*models.InspectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(recID) >= uint64(len(s.records)) {
		return nil, sentinel.ErrOutOfRange
	}
	cp := *s.records[recID]
	if err := validate(&cp); err != nil {
		return nil, err
	}
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	*s.records[recID] = cp
	out := cp
	return &out, nil
}

// CountBySubmitter returns the size of the submitter's id index.
func (s *InMemory) CountBySubmitter(_ context.Context, addr id.Address) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySubmitter[addr]), nil
}

// ListBySubmitter slices the submitter's id index. offset > count is
// sentinel.ErrOutOfRange; a limit past the end is clamped, never an error.
func (s *InMemory) ListBySubmitter(_ context.Context, addr id.Address, offset, limit int) ([]id.InspectionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.bySubmitter[addr]
	if offset > len(ids) {
		return nil, sentinel.ErrOutOfRange
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	return append([]id.InspectionID{}, ids[offset:end]...), nil
}

// ForEach visits every record in id order under the read lock. The visitor
// must not retain the record pointer past the call.
func (s *InMemory) ForEach(_ context.Context, visit func(*models.InspectionRecord) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if err := visit(rec); err != nil {
			return err
		}
	}
	return nil
}
