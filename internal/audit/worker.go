package audit

import (
	"context"
	"log/slog"
	"time"
)

// Worker drains an async publisher's inbox into the store. It keeps
// background persistence testable without wiring queue implementations.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run consumes until the context is cancelled or the inbox closes. Append
// failures are logged and the event dropped; audit persistence never takes
// the serving path down. On cancellation the events already buffered are
// flushed before returning, so a graceful shutdown loses nothing.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.append(ctx, event)
		}
	}
}

// flush persists whatever is buffered at shutdown. It never blocks on the
// inbox: producers are already gone once the context is cancelled.
func (w *Worker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event, ok := <-w.inbox:
			if !ok {
				return
			}
			w.append(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.Error("failed to persist audit event",
			"kind", event.Kind,
			"event_id", event.ID,
			"error", err,
		)
	}
}
