// Package queue holds the evergreen queue's ranking order and its
// advisory diagnostics: staleness and weeks-of-buffer.
package queue

import (
	"slices"
	"strings"
	"time"

	"EditorialPlanner/internal/domain"
)

// DefaultStaleHorizon is how long a queued idea sits before its
// underlying facts are suspect. Operators can override it in config.
const DefaultStaleHorizon = 30 * 24 * time.Hour

// Order sorts entries into allocation rank: tier strength descending,
// score descending, then added-at ascending (oldest first, to bound
// staleness) with routing ID as the final stable key so runs are
// reproducible.
func Order(entries []domain.EvergreenQueueEntry) {
	slices.SortFunc(entries, Compare)
}

// Compare implements the ranking order described on Order.
func Compare(a, b domain.EvergreenQueueEntry) int {
	if d := b.Tier.Rank() - a.Tier.Rank(); d != 0 {
		return d
	}
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	if !a.AddedAt.Equal(b.AddedAt) {
		if a.AddedAt.Before(b.AddedAt) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.IdeaRoutingID, b.IdeaRoutingID)
}

// IsStale reports whether the entry has aged past the horizon. A zero
// horizon falls back to the default. Staleness never blocks allocation;
// it is surfaced so operators can re-score or kill aging ideas.
func IsStale(e domain.EvergreenQueueEntry, now time.Time, horizon time.Duration) bool {
	if horizon <= 0 {
		horizon = DefaultStaleHorizon
	}
	return now.Sub(e.AddedAt) > horizon
}

// Health is the read-only buffer diagnostic for one publication's queue.
// WeeksOfBuffer = floor(queue length / weekly target); it is not an
// allocator input.
type Health struct {
	PublicationSlug string
	QueueLength     int
	WeeksOfBuffer   int
	StaleCount      int
	StaleRoutingIDs []string
}

// Measure computes queue health for a publication from its active
// entries.
func Measure(pub domain.Publication, entries []domain.EvergreenQueueEntry, now time.Time, horizon time.Duration) Health {
	h := Health{
		PublicationSlug: pub.Slug,
		QueueLength:     len(entries),
	}
	if pub.WeeklyTarget > 0 {
		h.WeeksOfBuffer = len(entries) / pub.WeeklyTarget
	}
	for _, e := range entries {
		if IsStale(e, now, horizon) {
			h.StaleCount++
			h.StaleRoutingIDs = append(h.StaleRoutingIDs, e.IdeaRoutingID)
		}
	}
	return h
}
