// Package confidential wraps opaque encrypted integers and enforces the
// dual-permission discipline over them.
//
// Every value carries two kinds of capability, both monotonic:
//
//   - computation-capability: a single boolean saying the ledger itself may
//     feed the value into further encrypted operations;
//   - disclosure-capability: the set of principals that may ever recover the
//     plaintext.
//
// There is no revocation primitive. Narrowing who can see a value means
// minting a fresh value and abandoning the old handle.
package confidential

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	id "sealedger/pkg/domain"
	dErrors "sealedger/pkg/domain-errors"
)

// BitWidth is the fixed size of an encrypted integer.
type BitWidth uint8

const (
	Width8  BitWidth = 8
	Width16 BitWidth = 16
	Width32 BitWidth = 32
	Width64 BitWidth = 64
)

// Valid reports whether the width is one of the supported sizes.
func (w BitWidth) Valid() bool {
	switch w {
	case Width8, Width16, Width32, Width64:
		return true
	}
	return false
}

// Max returns the largest value representable at this width.
func (w BitWidth) Max() uint64 {
	if w == Width64 {
		return ^uint64(0)
	}
	return (uint64(1) << w) - 1
}

// Handle references a stored encrypted value. Handles are opaque and
// generational: homomorphic results and re-grants always get new handles.
type Handle string

// NilHandle is the absent handle.
const NilHandle Handle = ""

type entry struct {
	ct             Ciphertext
	computeAllowed bool
	predicate      bool
	disclosure     map[id.Address]struct{}
}

// Store owns the encrypted values and their permission state. All methods
// are safe for concurrent use; permission changes and reads of the same
// handle are serialized under one mutex so grants are never half-visible.
type Store struct {
	mu     sync.RWMutex
	engine Engine
	values map[Handle]*entry
}

// NewStore builds a value store over the given engine.
func NewStore(engine Engine) *Store {
	return &Store{engine: engine, values: make(map[Handle]*entry)}
}

// Mint seals a server-side plaintext into a new value with no capabilities
// granted yet. Callers on the trusted path normally use MintGranted instead.
func (s *Store) Mint(plaintext uint64, width BitWidth) (Handle, error) {
	ct, err := s.engine.Seal(plaintext, width)
	if err != nil {
		return NilHandle, err
	}
	return s.put(ct), nil
}

// MintGranted seals a plaintext and, in the same critical section, sets the
// ledger's computation-capability and the holder's disclosure-capability.
// This is the invariant the record path relies on: a freshly minted value is
// never observable without both grants in place.
func (s *Store) MintGranted(plaintext uint64, width BitWidth, holder id.Address) (Handle, error) {
	ct, err := s.engine.Seal(plaintext, width)
	if err != nil {
		return NilHandle, err
	}
	return s.putGranted(ct, holder), nil
}

// AdmitExternal verifies an externally encrypted input against its proof and
// stores it with the same grants MintGranted applies, so both submission
// paths converge on identical permission state.
func (s *Store) AdmitExternal(ciphertext, proof []byte, width BitWidth, holder id.Address) (Handle, error) {
	ct, err := s.engine.VerifyExternal(ciphertext, proof, width)
	if err != nil {
		return NilHandle, err
	}
	return s.putGranted(ct, holder), nil
}

func (s *Store) put(ct Ciphertext) Handle {
	h := Handle(uuid.NewString())
	s.mu.Lock()
	s.values[h] = &entry{ct: ct, disclosure: make(map[id.Address]struct{})}
	s.mu.Unlock()
	return h
}

func (s *Store) putGranted(ct Ciphertext, holder id.Address) Handle {
	h := Handle(uuid.NewString())
	e := &entry{ct: ct, computeAllowed: true, disclosure: make(map[id.Address]struct{})}
	if !holder.IsZero() {
		e.disclosure[holder] = struct{}{}
	}
	s.mu.Lock()
	s.values[h] = e
	s.mu.Unlock()
	return h
}

// AllowComputation grants the ledger computation-capability on the value.
// Grants only accumulate; there is no way to take this back.
func (s *Store) AllowComputation(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[h]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown value handle %s", h))
	}
	e.computeAllowed = true
	return nil
}

// GrantDisclosure adds addr to the value's disclosure set. Monotonic.
func (s *Store) GrantDisclosure(h Handle, addr id.Address) error {
	if addr.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "cannot grant disclosure to the zero address")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[h]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown value handle %s", h))
	}
	e.disclosure[addr] = struct{}{}
	return nil
}

// CanCompute reports whether the ledger holds computation-capability.
func (s *Store) CanCompute(h Handle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.values[h]
	return ok && e.computeAllowed
}

// CanDisclose reports whether addr holds disclosure-capability on the value.
func (s *Store) CanDisclose(h Handle, addr id.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.values[h]
	if !ok {
		return false
	}
	_, granted := e.disclosure[addr]
	return granted
}

// Width returns the bit width of the stored value.
func (s *Store) Width(h Handle) (BitWidth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.values[h]
	if !ok {
		return 0, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown value handle %s", h))
	}
	return e.ct.Width, nil
}

// ciphertext fetches the raw ciphertext for an operand, enforcing the
// computation-capability gate every homomorphic operation goes through.
func (s *Store) ciphertext(h Handle) (Ciphertext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.values[h]
	if !ok {
		return Ciphertext{}, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown value handle %s", h))
	}
	if !e.computeAllowed {
		return Ciphertext{}, dErrors.New(dErrors.CodeUnauthorized,
			"ledger lacks computation-capability on value")
	}
	return e.ct, nil
}

// Add stores Enc(a+b). The result is a fresh handle with
// computation-capability set (it was derived by the ledger) and an empty
// disclosure set.
func (s *Store) Add(a, b Handle) (Handle, error) {
	ca, err := s.ciphertext(a)
	if err != nil {
		return NilHandle, err
	}
	cb, err := s.ciphertext(b)
	if err != nil {
		return NilHandle, err
	}
	ct, err := s.engine.Add(ca, cb)
	if err != nil {
		return NilHandle, err
	}
	return s.putDerived(ct, false), nil
}

// GreaterOrEqual stores an encrypted boolean for value >= threshold. The
// result is tagged as a predicate; only such tagged values may be opened
// through DisclosePredicate.
func (s *Store) GreaterOrEqual(h Handle, threshold uint64) (Handle, error) {
	c, err := s.ciphertext(h)
	if err != nil {
		return NilHandle, err
	}
	ct, err := s.engine.GreaterOrEqual(c, threshold)
	if err != nil {
		return NilHandle, err
	}
	return s.putDerived(ct, true), nil
}

// Select stores ifTrue or ifFalse according to the encrypted condition,
// without revealing which arm was taken.
func (s *Store) Select(cond, ifTrue, ifFalse Handle) (Handle, error) {
	cc, err := s.ciphertext(cond)
	if err != nil {
		return NilHandle, err
	}
	ct, err := s.ciphertext(ifTrue)
	if err != nil {
		return NilHandle, err
	}
	cf, err := s.ciphertext(ifFalse)
	if err != nil {
		return NilHandle, err
	}
	out, err := s.engine.Select(cc, ct, cf)
	if err != nil {
		return NilHandle, err
	}
	return s.putDerived(out, false), nil
}

func (s *Store) putDerived(ct Ciphertext, predicate bool) Handle {
	h := Handle(uuid.NewString())
	s.mu.Lock()
	s.values[h] = &entry{ct: ct, computeAllowed: true, predicate: predicate, disclosure: make(map[id.Address]struct{})}
	s.mu.Unlock()
	return h
}

// DisclosePredicate opens a derived encrypted boolean to the ledger itself.
// Only comparison results may be opened: an operation that aborts or proceeds
// on the predicate makes its value public regardless, so opening it leaks
// nothing beyond the operation's own outcome. Values minted or admitted
// directly are never predicates, whatever their width.
func (s *Store) DisclosePredicate(h Handle) (uint64, error) {
	s.mu.RLock()
	e, ok := s.values[h]
	if !ok {
		s.mu.RUnlock()
		return 0, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown value handle %s", h))
	}
	if !e.computeAllowed {
		s.mu.RUnlock()
		return 0, dErrors.New(dErrors.CodeUnauthorized,
			"ledger lacks computation-capability on value")
	}
	if !e.predicate {
		s.mu.RUnlock()
		return 0, dErrors.New(dErrors.CodeValidation, "predicate disclosure is limited to comparison results")
	}
	ct := e.ct
	s.mu.RUnlock()
	return s.engine.Open(ct)
}

// Disclose recovers the plaintext for a viewer holding disclosure-capability.
// This models the off-core decryption support path; the hot paths never call
// it.
func (s *Store) Disclose(h Handle, viewer id.Address) (uint64, error) {
	s.mu.RLock()
	e, ok := s.values[h]
	if !ok {
		s.mu.RUnlock()
		return 0, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown value handle %s", h))
	}
	if _, granted := e.disclosure[viewer]; !granted {
		s.mu.RUnlock()
		return 0, dErrors.New(dErrors.CodeUnauthorized,
			fmt.Sprintf("%s lacks disclosure-capability on value", viewer))
	}
	ct := e.ct
	s.mu.RUnlock()
	return s.engine.Open(ct)
}
