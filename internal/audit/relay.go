package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RecordPublisher is the broker surface the relay needs.
type RecordPublisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// OutboxSource is implemented by PostgresStore.
type OutboxSource interface {
	NextUnpublished(ctx context.Context, limit int) ([]OutboxRow, error)
	MarkPublished(ctx context.Context, eventID uuid.UUID, at time.Time) error
}

// Relay moves outbox rows to the broker. Events are published oldest-first
// and marked per row, so a crash mid-batch re-sends at most the unmarked
// tail: delivery is at-least-once, consumers deduplicate on event ID.
type Relay struct {
	source    OutboxSource
	publisher RecordPublisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewRelay(source OutboxSource, publisher RecordPublisher, logger *slog.Logger, interval time.Duration) *Relay {
	return &Relay{
		source:    source,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: 100,
	}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.logger.Error("audit relay pass failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of pending rows. Exposed for tests and for a
// final flush during shutdown.
func (r *Relay) Drain(ctx context.Context) error {
	rows, err := r.source.NextUnpublished(ctx, r.batchSize)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := r.publisher.Publish(ctx, []byte(row.ID.String()), row.Payload); err != nil {
			// Stop the batch; the row stays unpublished and is retried
			// next pass, preserving order.
			return err
		}
		if err := r.source.MarkPublished(ctx, row.ID, time.Now()); err != nil {
			return err
		}
	}
	return nil
}
