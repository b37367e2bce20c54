package ports

import (
	"context"
	"time"

	"EditorialPlanner/internal/domain"
)

// Clock abstracts "now" for staleness and premature-publish checks so
// tests can pin time.
type Clock interface {
	Now() time.Time
}

// PublicationStore reads publication and slot-grid configuration. The
// engine treats it as read-only during allocation.
type PublicationStore interface {
	GetPublication(ctx context.Context, slug string) (*domain.Publication, error)
	ListActivePublications(ctx context.Context) ([]domain.Publication, error)
	ListSlots(ctx context.Context, publicationID string) ([]domain.CalendarSlot, error)
}

// RoutingTx is the subset of routing-store operations that execute
// inside one atomic unit. A reader must never observe a status change
// without its paired queue mutation.
type RoutingTx interface {
	GetRouting(ctx context.Context, id string) (*domain.IdeaRouting, error)

	// TransitionRouting applies patch iff the routing is still in the
	// `from` status (compare-and-swap). A routing that moved on fails
	// with a *domain.TransitionError; a missing routing with
	// domain.ErrNotFound.
	TransitionRouting(ctx context.Context, id string, from domain.Status, patch domain.RoutingPatch) error

	CreateQueueEntry(ctx context.Context, entry *domain.EvergreenQueueEntry) error

	// PullQueueEntry stamps and removes an entry from the active queue,
	// conditional on it not having been pulled already. A lost race
	// fails with domain.ErrConflict.
	PullQueueEntry(ctx context.Context, entryID string, pulledAt time.Time, forDate *time.Time, reason string) error

	// PullQueueEntryForRouting pulls the routing's active entry, if any.
	// No active entry fails with domain.ErrNotFound.
	PullQueueEntryForRouting(ctx context.Context, routingID string, pulledAt time.Time, reason string) error
}

// RoutingStore persists idea routings and their evergreen queue
// projection. Single operations are atomic on their own; multi-row
// units run through Atomically.
type RoutingStore interface {
	RoutingTx

	CreateRouting(ctx context.Context, r *domain.IdeaRouting) error
	GetRoutingByIdea(ctx context.Context, ideaID string) (*domain.IdeaRouting, error)

	// ListQueue returns the active (unpulled) entries for a publication,
	// in no particular order; ranking belongs to the queue package.
	ListQueue(ctx context.Context, publicationID string) ([]domain.EvergreenQueueEntry, error)

	// ListAssignments returns the occupied (date, slot template) pairs
	// in the range: every routing still holding a calendar binding,
	// killed ones included until they are explicitly unscheduled.
	ListAssignments(ctx context.Context, start, end time.Time) ([]domain.SlotAssignment, error)

	// Atomically runs fn inside one transaction; an error rolls every
	// operation back.
	Atomically(ctx context.Context, fn func(tx RoutingTx) error) error
}

// Notifier delivers advisory operator digests (buffer health, stale
// entries). Failures are logged, never fatal to a run.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler drives recurring allocator runs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
