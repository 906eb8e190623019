package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "healthexchange/pkg/domain"
)

// PostgresStore implements Store using the transactional outbox pattern.
// Events land in the audit_outbox table; the Relay publishes them to Kafka
// and marks them published. List queries read the outbox directly so the
// trail is queryable before (and independent of) relay progress.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// Event for deserialization by downstream consumers.
type outboxPayload struct {
	ID             string `json:"ID"`
	Kind           string `json:"Kind"`
	Actor          string `json:"Actor"`
	SubjectShortID int32  `json:"SubjectShortID"`
	RelatedShortID int32  `json:"RelatedShortID,omitempty"`
	ContentRef     string `json:"ContentRef,omitempty"`
	Timestamp      string `json:"Timestamp"`
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	payload, err := json.Marshal(outboxPayload{
		ID:             event.ID.String(),
		Kind:           string(event.Kind),
		Actor:          event.Actor.String(),
		SubjectShortID: int32(event.SubjectShortID),
		RelatedShortID: int32(event.RelatedShortID),
		ContentRef:     event.ContentRef,
		Timestamp:      event.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	var related sql.NullInt32
	if !event.RelatedShortID.IsZero() {
		related = sql.NullInt32{Int32: int32(event.RelatedShortID), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_outbox (id, kind, actor, subject_short_id, related_short_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, string(event.Kind), uuid.UUID(event.Actor), int32(event.SubjectShortID),
		related, payload, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actor id.Principal) ([]Event, error) {
	return s.list(ctx, `
		SELECT id, kind, actor, subject_short_id, related_short_id, payload, created_at
		FROM audit_outbox WHERE actor = $1 ORDER BY created_at, id`, uuid.UUID(actor))
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject id.ShortID) ([]Event, error) {
	return s.list(ctx, `
		SELECT id, kind, actor, subject_short_id, related_short_id, payload, created_at
		FROM audit_outbox WHERE subject_short_id = $1 ORDER BY created_at, id`, int32(subject))
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event   Event
			actor   uuid.UUID
			subject int32
			related sql.NullInt32
			payload []byte
		)
		if err := rows.Scan(&event.ID, &event.Kind, &actor, &subject, &related, &payload, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Actor = id.Principal(actor)
		event.SubjectShortID = id.ShortID(subject)
		if related.Valid {
			event.RelatedShortID = id.ShortID(related.Int32)
		}
		var body outboxPayload
		if err := json.Unmarshal(payload, &body); err == nil {
			event.ContentRef = body.ContentRef
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// NextUnpublished returns up to limit events awaiting relay, oldest first.
func (s *PostgresStore) NextUnpublished(ctx context.Context, limit int) ([]OutboxRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished audit events: %w", err)
	}
	defer rows.Close()

	var out []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.ID, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MarkPublished stamps a relayed row so it is never re-sent.
func (s *PostgresStore) MarkPublished(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = $2 WHERE id = $1 AND published_at IS NULL`,
		eventID, at,
	)
	if err != nil {
		return fmt.Errorf("mark audit event published: %w", err)
	}
	return nil
}

// OutboxRow is one pending relay item.
type OutboxRow struct {
	ID      uuid.UUID
	Payload []byte
}
