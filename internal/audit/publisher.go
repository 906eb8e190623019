package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "healthexchange/pkg/domain"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. By default
// Emit writes synchronously; WithAsyncBuffer switches to a buffered channel
// drained by a Worker.
type Publisher struct {
	store Store
	inbox chan Event
	done  chan struct{}
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer makes Emit enqueue instead of writing inline. A Worker must
// be running against the same publisher for events to reach the store.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records one event. A zero timestamp is stamped with the current time
// and a missing ID is assigned, so call sites stay terse.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox != nil {
		select {
		case p.inbox <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.store.Append(ctx, event)
}

// ListByActor returns the trail for one actor.
func (p *Publisher) ListByActor(ctx context.Context, actor id.Principal) ([]Event, error) {
	return p.store.ListByActor(ctx, actor)
}

// ListBySubject returns the trail for one patient number.
func (p *Publisher) ListBySubject(ctx context.Context, subject id.ShortID) ([]Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Inbox exposes the async channel for the Worker. Nil in sync mode.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

// Close stops accepting async events.
func (p *Publisher) Close() {
	select {
	case <-p.done:
	default:
		close(p.done)
		if p.inbox != nil {
			close(p.inbox)
		}
	}
}
