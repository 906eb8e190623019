package audit

import (
	"context"

	id "healthexchange/pkg/domain"
)

// Store persists the append-only trail. Implementations never mutate or
// delete an appended event.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actor id.Principal) ([]Event, error)
	ListBySubject(ctx context.Context, subject id.ShortID) ([]Event, error)
}
