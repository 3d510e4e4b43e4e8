package domain

import "strings"

// Address identifies a principal: the ledger owner, an inspector, or an
// external viewer holding disclosure rights. Addresses are opaque to the
// core; we only care about equality and the zero value.
type Address string

// ZeroAddress is the canonical "no principal" value. Supplying it where a
// real principal is required is a validation error.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is absent or the canonical zero value.
func (a Address) IsZero() bool {
	if a == "" || a == ZeroAddress {
		return true
	}
	// Tolerate zero addresses written without the 0x prefix or in mixed case.
	s := strings.TrimPrefix(strings.ToLower(string(a)), "0x")
	return s != "" && strings.Trim(s, "0") == ""
}

// InspectionID is assigned sequentially from 0 by the ledger and matches the
// record's position in the arena. IDs are never reused or reordered.
type InspectionID uint64
