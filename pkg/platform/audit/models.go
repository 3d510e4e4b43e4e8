// Package audit defines the ledger's externally observable event log.
//
// Every mutating operation appends exactly one event. The log is append-only
// and is the system's single audit surface: there is no other export of
// stored state. Emission is fail-closed — if the event cannot be persisted,
// the operation that produced it must not commit.
package audit

import (
	"context"
	"time"

	id "sealedger/pkg/domain"
)

// Action names the operation that produced an event.
type Action string

const (
	ActionInspectorAuthorized Action = "inspector_authorized"
	ActionInspectorRevoked    Action = "inspector_revoked"
	ActionInspectionRecorded  Action = "inspection_recorded"
	ActionInspectionVerified  Action = "inspection_verified"
	ActionMetricsUpdated      Action = "category_metrics_updated"
	ActionLedgerPaused        Action = "ledger_paused"
	ActionLedgerUnpaused      Action = "ledger_unpaused"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and publishers can fan out.
//
// Only plaintext-visible facts belong here. Encrypted field contents never
// appear in the log; InspectionID and Category are the finest granularity.
type Event struct {
	Action    Action
	Timestamp time.Time
	Actor     id.Address // principal that performed the operation
	Subject   id.Address // principal the operation acted on, if any
	Category  string     // inspection category, for recorded/metrics events

	// InspectionID is meaningful only when HasInspection is true; id 0 is a
	// valid record.
	InspectionID  id.InspectionID
	HasInspection bool

	// RecordsConsidered carries the scan size for metrics events.
	RecordsConsidered int

	RequestID string
}

// Store persists events as an append-only log.
type Store interface {
	Append(ctx context.Context, event Event) error
}
