// Package memory implements the publication and routing stores in
// process memory. It backs the engine's test suites and local dry runs
// with the same atomicity contract as the Postgres adapter.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"EditorialPlanner/internal/domain"
	"EditorialPlanner/internal/ports"
)

// Store keeps all state behind one mutex. Atomically snapshots the
// mutable tables and restores them when the unit of work fails, so
// partial transitions are never observable.
type Store struct {
	mu    sync.Mutex
	clock ports.Clock

	pubs     map[string]*domain.Publication   // by slug
	slots    map[string][]domain.CalendarSlot // by publication ID
	routings map[string]*domain.IdeaRouting   // by ID
	byIdea   map[string]string                // idea ID -> routing ID
	entries  map[string]*domain.EvergreenQueueEntry
}

var (
	_ ports.RoutingStore     = (*Store)(nil)
	_ ports.PublicationStore = (*Store)(nil)
)

// New builds an empty store stamping timestamps from clk.
func New(clk ports.Clock) *Store {
	return &Store{
		clock:    clk,
		pubs:     map[string]*domain.Publication{},
		slots:    map[string][]domain.CalendarSlot{},
		routings: map[string]*domain.IdeaRouting{},
		byIdea:   map[string]string{},
		entries:  map[string]*domain.EvergreenQueueEntry{},
	}
}

// AddPublication registers or replaces a publication record.
func (s *Store) AddPublication(pub domain.Publication) error {
	if err := pub.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := pub
	s.pubs[pub.Slug] = &p
	return nil
}

// AddSlot registers a slot template under its publication.
func (s *Store) AddSlot(slot domain.CalendarSlot) error {
	if err := slot.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot.PublicationID] = append(s.slots[slot.PublicationID], slot)
	return nil
}

func (s *Store) GetPublication(ctx context.Context, slug string) (*domain.Publication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pub, ok := s.pubs[slug]
	if !ok {
		return nil, nil
	}
	p := *pub
	return &p, nil
}

func (s *Store) ListActivePublications(ctx context.Context) ([]domain.Publication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Publication
	for _, pub := range s.pubs {
		if pub.IsActive {
			out = append(out, *pub)
		}
	}
	return out, nil
}

func (s *Store) ListSlots(ctx context.Context, publicationID string) ([]domain.CalendarSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CalendarSlot, len(s.slots[publicationID]))
	copy(out, s.slots[publicationID])
	return out, nil
}

func (s *Store) CreateRouting(ctx context.Context, r *domain.IdeaRouting) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.routings[r.ID]; exists {
		return fmt.Errorf("routing %s: %w", r.ID, domain.ErrConflict)
	}
	if _, exists := s.byIdea[r.IdeaID]; exists {
		return fmt.Errorf("idea %s already has a routing: %w", r.IdeaID, domain.ErrConflict)
	}
	now := s.clock.Now()
	stored := r.Clone()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.routings[r.ID] = stored
	s.byIdea[r.IdeaID] = r.ID
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

func (s *Store) GetRouting(ctx context.Context, id string) (*domain.IdeaRouting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getRoutingLocked(id)
}

func (s *Store) getRoutingLocked(id string) (*domain.IdeaRouting, error) {
	r, ok := s.routings[id]
	if !ok {
		return nil, fmt.Errorf("routing %s: %w", id, domain.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *Store) GetRoutingByIdea(ctx context.Context, ideaID string) (*domain.IdeaRouting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byIdea[ideaID]
	if !ok {
		return nil, fmt.Errorf("idea %s: %w", ideaID, domain.ErrNotFound)
	}
	return s.getRoutingLocked(id)
}

func (s *Store) TransitionRouting(ctx context.Context, id string, from domain.Status, patch domain.RoutingPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(id, from, patch)
}

func (s *Store) transitionLocked(id string, from domain.Status, patch domain.RoutingPatch) error {
	r, ok := s.routings[id]
	if !ok {
		return fmt.Errorf("routing %s: %w", id, domain.ErrNotFound)
	}
	if r.Status != from {
		return &domain.TransitionError{From: r.Status, To: patch.Status}
	}
	if !domain.CanTransition(from, patch.Status) {
		return &domain.TransitionError{From: from, To: patch.Status}
	}
	next := r.Clone()
	patch.Apply(next, s.clock.Now())
	if err := next.Validate(); err != nil {
		return err
	}
	if next.CalendarDate != nil && next.SlotID != "" {
		for otherID, other := range s.routings {
			if otherID == id || other.CalendarDate == nil {
				continue
			}
			if other.SlotID == next.SlotID && other.CalendarDate.Equal(*next.CalendarDate) {
				return fmt.Errorf("slot %s on %s held by routing %s: %w",
					next.SlotID, next.CalendarDate.Format(time.DateOnly), otherID, domain.ErrSlotAlreadyFilled)
			}
		}
	}
	s.routings[id] = next
	return nil
}

func (s *Store) CreateQueueEntry(ctx context.Context, entry *domain.EvergreenQueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createQueueEntryLocked(entry)
}

func (s *Store) createQueueEntryLocked(entry *domain.EvergreenQueueEntry) error {
	if !entry.Tier.Schedulable() {
		return fmt.Errorf("queue entry for %s: tier %q is not schedulable", entry.IdeaRoutingID, entry.Tier)
	}
	if _, exists := s.entries[entry.ID]; exists {
		return fmt.Errorf("queue entry %s: %w", entry.ID, domain.ErrConflict)
	}
	for _, e := range s.entries {
		if e.IdeaRoutingID == entry.IdeaRoutingID && !e.Pulled() {
			return fmt.Errorf("routing %s already queued: %w", entry.IdeaRoutingID, domain.ErrConflict)
		}
	}
	s.entries[entry.ID] = entry.Clone()
	return nil
}

func (s *Store) PullQueueEntry(ctx context.Context, entryID string, pulledAt time.Time, forDate *time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pullLocked(entryID, pulledAt, forDate, reason)
}

func (s *Store) pullLocked(entryID string, pulledAt time.Time, forDate *time.Time, reason string) error {
	e, ok := s.entries[entryID]
	if !ok {
		return fmt.Errorf("queue entry %s: %w", entryID, domain.ErrNotFound)
	}
	if e.Pulled() {
		return fmt.Errorf("queue entry %s already pulled: %w", entryID, domain.ErrConflict)
	}
	at := pulledAt
	e.PulledAt = &at
	if forDate != nil {
		d := domain.Midnight(*forDate)
		e.PulledForDate = &d
	}
	e.PulledReason = reason
	return nil
}

func (s *Store) PullQueueEntryForRouting(ctx context.Context, routingID string, pulledAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pullForRoutingLocked(routingID, pulledAt, reason)
}

func (s *Store) pullForRoutingLocked(routingID string, pulledAt time.Time, reason string) error {
	for id, e := range s.entries {
		if e.IdeaRoutingID == routingID && !e.Pulled() {
			return s.pullLocked(id, pulledAt, nil, reason)
		}
	}
	return fmt.Errorf("no active queue entry for routing %s: %w", routingID, domain.ErrNotFound)
}

func (s *Store) ListQueue(ctx context.Context, publicationID string) ([]domain.EvergreenQueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EvergreenQueueEntry
	for _, e := range s.entries {
		if e.PublicationID == publicationID && !e.Pulled() {
			out = append(out, *e.Clone())
		}
	}
	return out, nil
}

func (s *Store) ListAssignments(ctx context.Context, start, end time.Time) ([]domain.SlotAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := domain.Midnight(start)
	last := domain.Midnight(end)
	var out []domain.SlotAssignment
	for _, r := range s.routings {
		// Any routing still holding a (date, slot) binding occupies the
		// instance, a killed one included, until it is unscheduled.
		if r.CalendarDate == nil || r.SlotID == "" {
			continue
		}
		if r.CalendarDate.Before(first) || r.CalendarDate.After(last) {
			continue
		}
		out = append(out, domain.SlotAssignment{SlotID: r.SlotID, Date: *r.CalendarDate, RoutingID: r.ID})
	}
	return out, nil
}

// tx reuses the store's locked internals; the surrounding Atomically
// call owns the mutex for the whole unit.
type tx struct {
	s *Store
}

func (t tx) GetRouting(ctx context.Context, id string) (*domain.IdeaRouting, error) {
	return t.s.getRoutingLocked(id)
}

func (t tx) TransitionRouting(ctx context.Context, id string, from domain.Status, patch domain.RoutingPatch) error {
	return t.s.transitionLocked(id, from, patch)
}

func (t tx) CreateQueueEntry(ctx context.Context, entry *domain.EvergreenQueueEntry) error {
	return t.s.createQueueEntryLocked(entry)
}

func (t tx) PullQueueEntry(ctx context.Context, entryID string, pulledAt time.Time, forDate *time.Time, reason string) error {
	return t.s.pullLocked(entryID, pulledAt, forDate, reason)
}

func (t tx) PullQueueEntryForRouting(ctx context.Context, routingID string, pulledAt time.Time, reason string) error {
	return t.s.pullForRoutingLocked(routingID, pulledAt, reason)
}

// Atomically runs fn while holding the store lock, restoring the
// routing and queue tables if fn fails.
func (s *Store) Atomically(ctx context.Context, fn func(tx ports.RoutingTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	savedRoutings := make(map[string]*domain.IdeaRouting, len(s.routings))
	for id, r := range s.routings {
		savedRoutings[id] = r.Clone()
	}
	savedEntries := make(map[string]*domain.EvergreenQueueEntry, len(s.entries))
	for id, e := range s.entries {
		savedEntries[id] = e.Clone()
	}

	if err := fn(tx{s: s}); err != nil {
		s.routings = savedRoutings
		s.entries = savedEntries
		return err
	}
	return nil
}
