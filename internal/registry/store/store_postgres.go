package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sealedger/internal/registry/models"
	id "sealedger/pkg/domain"
	"sealedger/pkg/platform/sentinel"
)

// Postgres persists inspector authorization in PostgreSQL. The authorized
// bit is flipped with guarded UPDATEs so concurrent owner calls keep the
// same already-authorized / not-authorized semantics as the memory store.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema returns the DDL for the inspectors table.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS inspectors (
    address       TEXT PRIMARY KEY,
    authorized    BOOLEAN     NOT NULL,
    authorized_at TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
`
}

func (s *Postgres) Authorize(ctx context.Context, inspector *models.Inspector) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO inspectors (address, authorized, authorized_at, updated_at)
		VALUES ($1, TRUE, $2, $3)
		ON CONFLICT (address) DO UPDATE
			SET authorized = TRUE, updated_at = EXCLUDED.updated_at
			WHERE inspectors.authorized = FALSE`,
		inspector.Address.String(), inspector.AuthorizedAt, inspector.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("authorize inspector: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("authorize inspector: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) Revoke(ctx context.Context, addr id.Address) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE inspectors SET authorized = FALSE, updated_at = NOW()
		WHERE address = $1 AND authorized = TRUE`,
		addr.String(),
	)
	if err != nil {
		return fmt.Errorf("revoke inspector: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke inspector: %w", err)
	}
	if n == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) IsAuthorized(ctx context.Context, addr id.Address) (bool, error) {
	var authorized bool
	err := s.db.QueryRowContext(ctx,
		`SELECT authorized FROM inspectors WHERE address = $1`, addr.String(),
	).Scan(&authorized)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup inspector: %w", err)
	}
	return authorized, nil
}

func (s *Postgres) Find(ctx context.Context, addr id.Address) (*models.Inspector, error) {
	var ins models.Inspector
	var address string
	err := s.db.QueryRowContext(ctx, `
		SELECT address, authorized, authorized_at, updated_at
		FROM inspectors WHERE address = $1`, addr.String(),
	).Scan(&address, &ins.Authorized, &ins.AuthorizedAt, &ins.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find inspector: %w", err)
	}
	ins.Address = id.Address(address)
	return &ins, nil
}
