package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"EditorialPlanner/internal/domain"
	"EditorialPlanner/internal/ports"
)

type fixedClock time.Time

func (f fixedClock) Now() time.Time { return time.Time(f) }

func newStore() *Store {
	return New(fixedClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)))
}

func seedRouting(t *testing.T, s *Store, id string, status domain.Status) {
	t.Helper()
	r := &domain.IdeaRouting{ID: id, IdeaID: "idea-" + id, Status: status}
	if status != domain.StatusIntake {
		r.RoutedTo = "core"
	}
	if status == domain.StatusScored {
		r.Tier = domain.TierB
		r.Scores = domain.ScoreSet{"audience": 5}
	}
	if err := s.CreateRouting(context.Background(), r); err != nil {
		t.Fatalf("CreateRouting: %v", err)
	}
}

func TestTransitionRoutingCAS(t *testing.T) {
	t.Parallel()
	s := newStore()
	ctx := context.Background()
	seedRouting(t, s, "r1", domain.StatusIntake)

	slug := "core"
	patch := domain.RoutingPatch{Status: domain.StatusRouted, RoutedTo: &slug}
	if err := s.TransitionRouting(ctx, "r1", domain.StatusIntake, patch); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	// The losing caller observes an invalid transition, not silence.
	err := s.TransitionRouting(ctx, "r1", domain.StatusIntake, patch)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if err := s.TransitionRouting(ctx, "missing", domain.StatusIntake, patch); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionRejectsInvariantViolation(t *testing.T) {
	t.Parallel()
	s := newStore()
	ctx := context.Background()
	seedRouting(t, s, "r1", domain.StatusScored)

	// Slotting without a calendar date must not persist.
	err := s.TransitionRouting(ctx, "r1", domain.StatusScored, domain.RoutingPatch{Status: domain.StatusSlotted})
	if err == nil {
		t.Fatal("expected invariant failure")
	}
	r, getErr := s.GetRouting(ctx, "r1")
	if getErr != nil {
		t.Fatalf("GetRouting: %v", getErr)
	}
	if r.Status != domain.StatusScored {
		t.Fatalf("failed transition must not change status, got %s", r.Status)
	}
}

func TestPullQueueEntryConditional(t *testing.T) {
	t.Parallel()
	s := newStore()
	ctx := context.Background()
	seedRouting(t, s, "r1", domain.StatusScored)

	entry := &domain.EvergreenQueueEntry{
		ID: "q1", IdeaRoutingID: "r1", PublicationID: "p1",
		Tier: domain.TierB, Score: 5, AddedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.CreateQueueEntry(ctx, entry); err != nil {
		t.Fatalf("CreateQueueEntry: %v", err)
	}

	// One active entry per routing.
	dup := *entry
	dup.ID = "q2"
	if err := s.CreateQueueEntry(ctx, &dup); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate active entry must conflict, got %v", err)
	}

	forDate := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := s.PullQueueEntry(ctx, "q1", time.Now(), &forDate, "allocator"); err != nil {
		t.Fatalf("pull: %v", err)
	}

	// Delete-on-pull: the second puller loses.
	if err := s.PullQueueEntry(ctx, "q1", time.Now(), &forDate, "allocator"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("double pull must conflict, got %v", err)
	}

	active, err := s.ListQueue(ctx, "p1")
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("pulled entry must leave the active queue, got %d", len(active))
	}
}

func TestAtomicallyRollsBack(t *testing.T) {
	t.Parallel()
	s := newStore()
	ctx := context.Background()
	seedRouting(t, s, "r1", domain.StatusScored)

	entry := &domain.EvergreenQueueEntry{
		ID: "q1", IdeaRoutingID: "r1", PublicationID: "p1",
		Tier: domain.TierB, Score: 5, AddedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.CreateQueueEntry(ctx, entry); err != nil {
		t.Fatalf("CreateQueueEntry: %v", err)
	}

	boom := errors.New("boom")
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	slot := "slot-1"
	err := s.Atomically(ctx, func(tx ports.RoutingTx) error {
		patch := domain.RoutingPatch{Status: domain.StatusSlotted, CalendarDate: &date, SlotID: &slot}
		if err := tx.TransitionRouting(ctx, "r1", domain.StatusScored, patch); err != nil {
			return err
		}
		if err := tx.PullQueueEntry(ctx, "q1", time.Now(), &date, "allocator"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the unit's error, got %v", err)
	}

	// Nothing from the failed unit may be observable.
	r, getErr := s.GetRouting(ctx, "r1")
	if getErr != nil {
		t.Fatalf("GetRouting: %v", getErr)
	}
	if r.Status != domain.StatusScored || r.CalendarDate != nil {
		t.Fatalf("rollback incomplete: %+v", r)
	}
	active, listErr := s.ListQueue(ctx, "p1")
	if listErr != nil {
		t.Fatalf("ListQueue: %v", listErr)
	}
	if len(active) != 1 {
		t.Fatalf("queue entry must be restored, got %d", len(active))
	}
}

func TestTransitionRejectsSkippedStep(t *testing.T) {
	t.Parallel()
	s := newStore()
	ctx := context.Background()
	seedRouting(t, s, "r1", domain.StatusScored)

	// The lifecycle table, not the caller, decides what is legal.
	err := s.TransitionRouting(ctx, "r1", domain.StatusScored, domain.RoutingPatch{Status: domain.StatusScheduled})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("skipping slotted must fail with ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionAllowsKillFromIntake(t *testing.T) {
	t.Parallel()
	s := newStore()
	ctx := context.Background()
	seedRouting(t, s, "r1", domain.StatusIntake)

	reason := "duplicate submission"
	patch := domain.RoutingPatch{Status: domain.StatusKilled, KillReason: &reason}
	if err := s.TransitionRouting(ctx, "r1", domain.StatusIntake, patch); err != nil {
		t.Fatalf("killing an intake routing must be permitted: %v", err)
	}
	r, err := s.GetRouting(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRouting: %v", err)
	}
	if r.Status != domain.StatusKilled || r.RoutedTo != "" {
		t.Fatalf("unexpected routing after kill: %+v", r)
	}
}

func TestTransitionRejectsDoubleBookedSlot(t *testing.T) {
	t.Parallel()
	s := newStore()
	ctx := context.Background()
	seedRouting(t, s, "r1", domain.StatusScored)
	seedRouting(t, s, "r2", domain.StatusScored)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	slot := "slot-1"
	patch := domain.RoutingPatch{Status: domain.StatusSlotted, CalendarDate: &date, SlotID: &slot}
	if err := s.TransitionRouting(ctx, "r1", domain.StatusScored, patch); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	err := s.TransitionRouting(ctx, "r2", domain.StatusScored, patch)
	if !errors.Is(err, domain.ErrSlotAlreadyFilled) {
		t.Fatalf("expected ErrSlotAlreadyFilled, got %v", err)
	}
	r, getErr := s.GetRouting(ctx, "r2")
	if getErr != nil {
		t.Fatalf("GetRouting: %v", getErr)
	}
	if r.Status != domain.StatusScored {
		t.Fatalf("failed booking must not change status, got %s", r.Status)
	}
}

func TestListAssignmentsIncludesKilledWithBinding(t *testing.T) {
	t.Parallel()
	s := newStore()
	ctx := context.Background()
	seedRouting(t, s, "r1", domain.StatusScored)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	slot := "slot-1"
	patch := domain.RoutingPatch{Status: domain.StatusSlotted, CalendarDate: &date, SlotID: &slot}
	if err := s.TransitionRouting(ctx, "r1", domain.StatusScored, patch); err != nil {
		t.Fatalf("slot: %v", err)
	}
	reason := "facts changed"
	kill := domain.RoutingPatch{Status: domain.StatusKilled, KillReason: &reason}
	if err := s.TransitionRouting(ctx, "r1", domain.StatusSlotted, kill); err != nil {
		t.Fatalf("kill: %v", err)
	}

	got, err := s.ListAssignments(ctx, date, date)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("killed routing with a binding must still occupy its slot, got %d", len(got))
	}

	unbind := domain.RoutingPatch{Status: domain.StatusKilled, ClearCalendarDate: true, ClearSlotID: true}
	if err := s.TransitionRouting(ctx, "r1", domain.StatusKilled, unbind); err != nil {
		t.Fatalf("unschedule: %v", err)
	}
	got, err = s.ListAssignments(ctx, date, date)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("cleared binding must free the slot, got %d", len(got))
	}
}
