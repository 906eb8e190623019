package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"healthexchange/internal/records/models"
	id "healthexchange/pkg/domain"
)

// Postgres persists reports append-only; the serial primary key fixes upload
// order.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, patient id.ShortID, report models.Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (patient_short_id, content_ref, description, uploader, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		int32(patient), report.ContentRef, report.Description,
		uuid.UUID(report.Uploader), report.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("append report: %w", err)
	}
	return nil
}

func (s *Postgres) ListByPatient(ctx context.Context, patient id.ShortID) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_ref, description, uploader, uploaded_at
		FROM reports WHERE patient_short_id = $1 ORDER BY id`, int32(patient))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		var (
			report   models.Report
			uploader uuid.UUID
		)
		if err := rows.Scan(&report.ContentRef, &report.Description, &uploader, &report.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		report.Uploader = id.Principal(uploader)
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
