package domain

import "time"

// EvergreenQueueEntry is a denormalized projection of a scored routing,
// queryable per publication in ranking order. At most one active entry
// exists per routing; a pulled entry stays on record with its pull
// stamps for audit but is no longer queue membership.
type EvergreenQueueEntry struct {
	ID            string
	IdeaRoutingID string
	PublicationID string
	Tier          Tier
	Score         float64
	AddedAt       time.Time

	// Pull stamps; set exactly once, when the entry leaves the queue.
	PulledAt      *time.Time
	PulledForDate *time.Time
	PulledReason  string
}

// Pulled reports whether the entry has left the active queue.
func (e *EvergreenQueueEntry) Pulled() bool {
	return e.PulledAt != nil
}

// Clone returns a deep copy.
func (e *EvergreenQueueEntry) Clone() *EvergreenQueueEntry {
	out := *e
	if e.PulledAt != nil {
		t := *e.PulledAt
		out.PulledAt = &t
	}
	if e.PulledForDate != nil {
		t := *e.PulledForDate
		out.PulledForDate = &t
	}
	return &out
}
