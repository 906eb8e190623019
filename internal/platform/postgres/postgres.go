// Package postgres opens the shared database handle and owns the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx database/sql driver
)

// Open connects via the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// schema is idempotent so EnsureSchema can run on every startup. Records and
// audit rows are append-only by construction; nothing here issues UPDATE or
// DELETE on them.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    principal   UUID PRIMARY KEY,
    short_id    INTEGER NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    email       TEXT NOT NULL,
    phone       TEXT NOT NULL,
    location    TEXT NOT NULL,
    credential  TEXT NOT NULL,
    role        TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS access_grants (
    patient_short_id INTEGER NOT NULL,
    grantee          UUID NOT NULL,
    granted_at       TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (patient_short_id, grantee)
);
CREATE INDEX IF NOT EXISTS access_grants_grantee_idx ON access_grants (grantee);

CREATE TABLE IF NOT EXISTS reports (
    id               BIGSERIAL PRIMARY KEY,
    patient_short_id INTEGER NOT NULL,
    content_ref      TEXT NOT NULL,
    description      TEXT NOT NULL,
    uploader         UUID NOT NULL,
    uploaded_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS reports_patient_idx ON reports (patient_short_id, id);

CREATE TABLE IF NOT EXISTS audit_outbox (
    id               UUID PRIMARY KEY,
    kind             TEXT NOT NULL,
    actor            UUID NOT NULL,
    subject_short_id INTEGER NOT NULL,
    related_short_id INTEGER,
    payload          JSONB NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL,
    published_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS audit_outbox_unpublished_idx
    ON audit_outbox (created_at) WHERE published_at IS NULL;
`

// EnsureSchema creates the tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
