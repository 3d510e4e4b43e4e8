package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "sealedger/pkg/platform/audit"
)

// Store persists audit events in PostgreSQL. The table is insert-only;
// nothing in the system updates or deletes rows once written.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema returns the DDL for the audit log table. Callers apply it during
// migration; the store itself never creates tables.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS audit_events (
    id                 UUID PRIMARY KEY,
    action             TEXT        NOT NULL,
    occurred_at        TIMESTAMPTZ NOT NULL,
    actor              TEXT        NOT NULL,
    subject            TEXT        NOT NULL DEFAULT '',
    category           TEXT        NOT NULL DEFAULT '',
    inspection_id      BIGINT,
    records_considered INT         NOT NULL DEFAULT 0,
    request_id         TEXT        NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_actor_idx ON audit_events (actor, occurred_at);
`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	var inspectionID sql.NullInt64
	if event.HasInspection {
		inspectionID = sql.NullInt64{Int64: int64(event.InspectionID), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, action, occurred_at, actor, subject, category, inspection_id, records_considered, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New(), string(event.Action), event.Timestamp,
		event.Actor.String(), event.Subject.String(), event.Category,
		inspectionID, event.RecordsConsidered, event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
