package models

import (
	"time"

	"sealedger/internal/confidential"
)

// PassThreshold is the quality score at or above which a record counts as
// passed.
const PassThreshold = 70

// CategoryMetrics is the per-category aggregate. Total and Passed stay
// encrypted; recomputation replaces the whole entry, it is never updated
// incrementally.
type CategoryMetrics struct {
	Category   string    `json:"category"`
	HasMetrics bool      `json:"has_metrics"`
	ComputedAt time.Time `json:"computed_at"`

	// Total and Passed are handles into the confidential store. They are
	// empty while HasMetrics is false.
	Total  confidential.Handle `json:"total,omitempty"`
	Passed confidential.Handle `json:"passed,omitempty"`

	// RecordsConsidered is the plaintext count of records that matched the
	// category during the scan. The match happens on cleartext categories,
	// so this count is not confidential even though it equals Total.
	RecordsConsidered int `json:"records_considered"`
}
