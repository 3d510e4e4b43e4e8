package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sealedger/internal/confidential"
	"sealedger/internal/inspection/models"
	id "sealedger/pkg/domain"
	"sealedger/pkg/platform/sentinel"
)

// Postgres persists the ledger in PostgreSQL. Sequential id assignment and
// the verify state transition run inside transactions that lock the touched
// rows, preserving the serialized-mutation contract under a concurrent host.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema returns the DDL for the inspections table. The id is assigned by
// the application inside a locking transaction rather than by a sequence so
// ids always equal the append position, with no gaps on rollback.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS inspections (
    id            BIGINT PRIMARY KEY,
    submitter     TEXT        NOT NULL,
    category      TEXT        NOT NULL,
    recorded_at   TIMESTAMPTZ NOT NULL,
    verified      BOOLEAN     NOT NULL DEFAULT FALSE,
    verifier      TEXT        NOT NULL DEFAULT '',
    quality_score TEXT        NOT NULL,
    defect_count  TEXT        NOT NULL,
    batch_number  TEXT        NOT NULL,
    digest        BYTEA       NOT NULL
);
CREATE INDEX IF NOT EXISTS inspections_submitter_idx ON inspections (submitter, id);
CREATE INDEX IF NOT EXISTS inspections_category_idx ON inspections (category);
`
}

func (s *Postgres) Append(ctx context.Context, build func(next id.InspectionID) (*models.InspectionRecord, error)) (*models.InspectionRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize appends so the assigned id always equals the row count.
	if _, err := tx.ExecContext(ctx, `LOCK TABLE inspections IN EXCLUSIVE MODE`); err != nil {
		return nil, fmt.Errorf("lock inspections: %w", err)
	}
	var count uint64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM inspections`).Scan(&count); err != nil {
		return nil, fmt.Errorf("count inspections: %w", err)
	}
	rec, err := build(id.InspectionID(count))
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO inspections
			(id, submitter, category, recorded_at, verified, verifier, quality_score, defect_count, batch_number, digest)
		VALUES ($1, $2, $3, $4, FALSE, '', $5, $6, $7, $8)`,
		uint64(rec.ID), rec.Submitter.String(), rec.Category, rec.Timestamp,
		string(rec.QualityScore), string(rec.DefectCount), string(rec.BatchNumber), rec.Digest,
	)
	if err != nil {
		return nil, fmt.Errorf("insert inspection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	cp := *rec
	return &cp, nil
}

func (s *Postgres) Get(ctx context.Context, recID id.InspectionID) (*models.InspectionRecord, error) {
	return scanRecord(s.db.QueryRowContext(ctx, `
		SELECT id, submitter, category, recorded_at, verified, verifier,
		       quality_score, defect_count, batch_number, digest
		FROM inspections WHERE id = $1`, uint64(recID)))
}

func (s *Postgres) Count(ctx context.Context) (uint64, error) {
	var count uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inspections`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count inspections: %w", err)
	}
	return count, nil
}

func (s *Postgres) Execute(ctx context.Context, recID id.InspectionID,
	validate func(*models.InspectionRecord) error,
	mutate func(*models.InspectionRecord) error,
) (*models.InspectionRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT id, submitter, category, recorded_at, verified, verifier,
		       quality_score, defect_count, batch_number, digest
		FROM inspections WHERE id = $1 FOR UPDATE`, uint64(recID)))
	if err != nil {
		return nil, err
	}
	if err := validate(rec); err != nil {
		return nil, err
	}
	// A mutate error rolls the transaction back, row lock included.
	if err := mutate(rec); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE inspections SET verified = $2, verifier = $3 WHERE id = $1`,
		uint64(rec.ID), rec.Verified, rec.Verifier.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("update inspection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute: %w", err)
	}
	return rec, nil
}

func (s *Postgres) CountBySubmitter(ctx context.Context, addr id.Address) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inspections WHERE submitter = $1`, addr.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by submitter: %w", err)
	}
	return count, nil
}

func (s *Postgres) ListBySubmitter(ctx context.Context, addr id.Address, offset, limit int) ([]id.InspectionID, error) {
	count, err := s.CountBySubmitter(ctx, addr)
	if err != nil {
		return nil, err
	}
	if offset > count {
		return nil, sentinel.ErrOutOfRange
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM inspections WHERE submitter = $1
		ORDER BY id OFFSET $2 LIMIT $3`,
		addr.String(), offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list by submitter: %w", err)
	}
	defer rows.Close()
	ids := []id.InspectionID{}
	for rows.Next() {
		var raw uint64
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id.InspectionID(raw))
	}
	return ids, rows.Err()
}

func (s *Postgres) ForEach(ctx context.Context, visit func(*models.InspectionRecord) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submitter, category, recorded_at, verified, verifier,
		       quality_score, defect_count, batch_number, digest
		FROM inspections ORDER BY id`)
	if err != nil {
		return fmt.Errorf("scan inspections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return err
		}
		if err := visit(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInto(scanner rowScanner) (*models.InspectionRecord, error) {
	var rec models.InspectionRecord
	var rawID uint64
	var submitter, verifier, score, defects, batch string
	err := scanner.Scan(&rawID, &submitter, &rec.Category, &rec.Timestamp,
		&rec.Verified, &verifier, &score, &defects, &batch, &rec.Digest)
	if err != nil {
		return nil, err
	}
	rec.ID = id.InspectionID(rawID)
	rec.Submitter = id.Address(submitter)
	rec.Verifier = id.Address(verifier)
	rec.QualityScore = confidential.Handle(score)
	rec.DefectCount = confidential.Handle(defects)
	rec.BatchNumber = confidential.Handle(batch)
	return &rec, nil
}

func scanRecord(row *sql.Row) (*models.InspectionRecord, error) {
	rec, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrOutOfRange
	}
	if err != nil {
		return nil, fmt.Errorf("scan inspection: %w", err)
	}
	return rec, nil
}

func scanRecordRows(rows *sql.Rows) (*models.InspectionRecord, error) {
	rec, err := scanInto(rows)
	if err != nil {
		return nil, fmt.Errorf("scan inspection: %w", err)
	}
	return rec, nil
}
