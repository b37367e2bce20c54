package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"EditorialPlanner/internal/domain"
	"EditorialPlanner/internal/grid"
	"EditorialPlanner/internal/ports"
	"EditorialPlanner/internal/queue"
)

// AllocationResult is the outcome of one allocator run. Unfilled slots
// are a normal partial outcome, not an error; the caller decides
// whether persistent gaps warrant alerting.
type AllocationResult struct {
	PublicationSlug string
	Start, End      time.Time

	// Slotted lists routings newly placed by this run, in slot order.
	Slotted []*domain.IdeaRouting
	// Reserved lists fixed-format slot instances; the allocator never
	// fills those, it only keeps flexible allocation off them.
	Reserved []domain.SlotInstance
	// Unfilled lists flexible instances left open for a future run.
	Unfilled []domain.SlotInstance
	// SkippedFilled counts instances already occupied before this run.
	SkippedFilled int
	// Exhausted is set when the queue ran dry before the grid did.
	Exhausted bool
}

// Err surfaces exhaustion as a matchable error for callers that treat an
// empty backlog as failure. The allocator itself reports it as a partial
// outcome and keeps going.
func (r *AllocationResult) Err() error {
	if r.Exhausted {
		return fmt.Errorf("publication %s: %w", r.PublicationSlug, domain.ErrQueueExhausted)
	}
	return nil
}

func assignmentKey(slotID string, date time.Time) string {
	return slotID + "@" + date.Format(time.DateOnly)
}

// RunAllocator fills a publication's open slot instances in [start, end]
// from its evergreen queue. Given an identical queue snapshot and slot
// set, repeated runs produce identical assignments: instances come out
// of the grid expansion in date/priority order, and the queue order
// breaks every tie down to the routing ID. Re-running after a completed
// run slots nothing new: occupied (date, slot) pairs are skipped and
// pulled entries are gone.
func (e *Engine) RunAllocator(ctx context.Context, publicationSlug string, start, end time.Time) (*AllocationResult, error) {
	pub, err := e.registry.Resolve(ctx, publicationSlug)
	if err != nil {
		return nil, err
	}
	templates, err := e.registry.GridFor(ctx, pub)
	if err != nil {
		return nil, err
	}
	instances := slices.Collect(grid.Expand(templates, start, end))

	assignments, err := e.store.ListAssignments(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	occupied := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		occupied[assignmentKey(a.SlotID, a.Date)] = true
	}

	entries, err := e.store.ListQueue(ctx, pub.ID)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	queue.Order(entries)

	result := &AllocationResult{
		PublicationSlug: publicationSlug,
		Start:           domain.Midnight(start),
		End:             domain.Midnight(end),
	}
	runAt := e.clock.Now()

	for _, inst := range instances {
		if occupied[assignmentKey(inst.SlotID, inst.Date)] {
			result.SkippedFilled++
			continue
		}
		if inst.IsFixed {
			result.Reserved = append(result.Reserved, inst)
			continue
		}
		if len(entries) == 0 {
			result.Exhausted = true
			result.Unfilled = append(result.Unfilled, inst)
			continue
		}

		placed, err := e.fillSlot(ctx, inst, &entries, runAt)
		if err != nil {
			if errors.Is(err, domain.ErrSlotAlreadyFilled) {
				// A concurrent run took the instance after our snapshot.
				occupied[assignmentKey(inst.SlotID, inst.Date)] = true
				result.SkippedFilled++
				continue
			}
			return nil, err
		}
		if placed == nil {
			result.Exhausted = true
			result.Unfilled = append(result.Unfilled, inst)
			continue
		}
		occupied[assignmentKey(inst.SlotID, inst.Date)] = true
		result.Slotted = append(result.Slotted, placed)
	}

	e.logger.Info("allocator run complete",
		"publication", publicationSlug,
		"start", result.Start.Format(time.DateOnly),
		"end", result.End.Format(time.DateOnly),
		"slotted", len(result.Slotted),
		"unfilled", len(result.Unfilled),
		"exhausted", result.Exhausted)
	return result, nil
}

// fillSlot picks the best queue entry for a flexible instance and pulls
// it atomically with the scored -> slotted transition. Entries that lose
// a race to a concurrent run are dropped from the snapshot and selection
// retries; a drained snapshot returns nil with no error. An instance
// lost to a concurrent run fails with ErrSlotAlreadyFilled.
func (e *Engine) fillSlot(ctx context.Context, inst domain.SlotInstance, entries *[]domain.EvergreenQueueEntry, runAt time.Time) (*domain.IdeaRouting, error) {
	for len(*entries) > 0 {
		idx := pickEntry(*entries, inst.PreferredTier)
		entry := (*entries)[idx]

		date := inst.Date
		slotID := inst.SlotID
		err := e.store.Atomically(ctx, func(tx ports.RoutingTx) error {
			patch := domain.RoutingPatch{
				Status:       domain.StatusSlotted,
				CalendarDate: &date,
				SlotID:       &slotID,
			}
			if err := tx.TransitionRouting(ctx, entry.IdeaRoutingID, domain.StatusScored, patch); err != nil {
				return err
			}
			return tx.PullQueueEntry(ctx, entry.ID, runAt, &date, "allocator")
		})
		if err != nil {
			// The instance itself is gone; the entry stays for the next one.
			if errors.Is(err, domain.ErrSlotAlreadyFilled) {
				return nil, err
			}
			// A concurrent run won this entry; drop it and re-select.
			if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidTransition) ||
				errors.Is(err, domain.ErrTerminalState) || errors.Is(err, domain.ErrNotFound) {
				*entries = slices.Delete(*entries, idx, idx+1)
				continue
			}
			return nil, fmt.Errorf("fill slot %s on %s: %w", inst.SlotID, inst.Date.Format(time.DateOnly), err)
		}

		*entries = slices.Delete(*entries, idx, idx+1)
		return e.store.GetRouting(ctx, entry.IdeaRoutingID)
	}
	return nil, nil
}

// pickEntry returns the index of the entry a slot should take: the
// highest-ranked exact match when the slot prefers a tier, otherwise
// the highest-ranked entry overall. The same fallback applies when no
// exact match exists. The slot's tier preference outranks raw score.
func pickEntry(entries []domain.EvergreenQueueEntry, preferred domain.Tier) int {
	if preferred != "" {
		for i, e := range entries {
			if e.Tier == preferred {
				return i
			}
		}
	}
	return 0
}
