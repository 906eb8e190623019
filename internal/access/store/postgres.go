package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "healthexchange/pkg/domain"
)

// Postgres persists the consent table in access_grants. ON CONFLICT keeps Add
// idempotent inside the database rather than with a read-modify-write.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Add(ctx context.Context, patient id.ShortID, grantee id.Principal, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO access_grants (patient_short_id, grantee, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (patient_short_id, grantee) DO NOTHING`,
		int32(patient), uuid.UUID(grantee), at,
	)
	if err != nil {
		return false, fmt.Errorf("add grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add grant: %w", err)
	}
	return n > 0, nil
}

func (s *Postgres) Remove(ctx context.Context, patient id.ShortID, grantee id.Principal) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM access_grants WHERE patient_short_id = $1 AND grantee = $2`,
		int32(patient), uuid.UUID(grantee),
	)
	if err != nil {
		return false, fmt.Errorf("remove grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove grant: %w", err)
	}
	return n > 0, nil
}

func (s *Postgres) Has(ctx context.Context, patient id.ShortID, grantee id.Principal) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM access_grants WHERE patient_short_id = $1 AND grantee = $2`,
		int32(patient), uuid.UUID(grantee),
	).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check grant: %w", err)
	}
	return true, nil
}

func (s *Postgres) ListGrantees(ctx context.Context, patient id.ShortID) ([]id.Principal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT grantee FROM access_grants
		WHERE patient_short_id = $1
		ORDER BY granted_at, grantee`, int32(patient))
	if err != nil {
		return nil, fmt.Errorf("list grantees: %w", err)
	}
	defer rows.Close()

	var out []id.Principal
	for rows.Next() {
		var grantee uuid.UUID
		if err := rows.Scan(&grantee); err != nil {
			return nil, fmt.Errorf("scan grantee: %w", err)
		}
		out = append(out, id.Principal(grantee))
	}
	return out, rows.Err()
}

func (s *Postgres) ListPatients(ctx context.Context, grantee id.Principal) ([]id.ShortID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_short_id FROM access_grants
		WHERE grantee = $1
		ORDER BY patient_short_id`, uuid.UUID(grantee))
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var out []id.ShortID
	for rows.Next() {
		var patient int32
		if err := rows.Scan(&patient); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, id.ShortID(patient))
	}
	return out, rows.Err()
}
