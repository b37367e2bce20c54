package queue

import (
	"testing"
	"time"

	"EditorialPlanner/internal/domain"
)

func entry(routingID string, tier domain.Tier, score float64, added time.Time) domain.EvergreenQueueEntry {
	return domain.EvergreenQueueEntry{
		ID:            "q-" + routingID,
		IdeaRoutingID: routingID,
		PublicationID: "p1",
		Tier:          tier,
		Score:         score,
		AddedAt:       added,
	}
}

func TestOrderRanksTierBeforeScore(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []domain.EvergreenQueueEntry{
		entry("b-high", domain.TierB, 9.9, base),
		entry("premium", domain.TierPremiumA, 8.6, base),
		entry("a-mid", domain.TierA, 7.2, base),
	}
	Order(entries)

	want := []string{"premium", "a-mid", "b-high"}
	for i, id := range want {
		if entries[i].IdeaRoutingID != id {
			t.Fatalf("position %d = %s, want %s", i, entries[i].IdeaRoutingID, id)
		}
	}
}

func TestOrderBreaksTiesOldestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []domain.EvergreenQueueEntry{
		entry("newer", domain.TierA, 7.5, base.AddDate(0, 0, 10)),
		entry("older", domain.TierA, 7.5, base),
	}
	Order(entries)

	if entries[0].IdeaRoutingID != "older" {
		t.Fatal("equal tier and score must rank the older entry first")
	}
}

func TestOrderIsDeterministicOnFullTies(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := entry("r-aaa", domain.TierC, 3.5, base)
	b := entry("r-bbb", domain.TierC, 3.5, base)

	first := []domain.EvergreenQueueEntry{b, a}
	second := []domain.EvergreenQueueEntry{a, b}
	Order(first)
	Order(second)

	if first[0].IdeaRoutingID != second[0].IdeaRoutingID {
		t.Fatal("ordering must not depend on input order")
	}
	if first[0].IdeaRoutingID != "r-aaa" {
		t.Fatal("routing ID must be the final stable key")
	}
}

func TestIsStale(t *testing.T) {
	t.Parallel()

	added := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := entry("r1", domain.TierB, 5, added)

	if IsStale(e, added.AddDate(0, 0, 29), 0) {
		t.Error("29 days old must not be stale at the default horizon")
	}
	if !IsStale(e, added.AddDate(0, 0, 31), 0) {
		t.Error("31 days old must be stale at the default horizon")
	}
	if !IsStale(e, added.Add(49*time.Hour), 48*time.Hour) {
		t.Error("configured horizon must win over the default")
	}
}

func TestMeasureBufferWeeks(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	pub := domain.Publication{Slug: "core", WeeklyTarget: 3, Type: domain.PublicationNewsletter, IsActive: true}

	var entries []domain.EvergreenQueueEntry
	for i := 0; i < 7; i++ {
		entries = append(entries, entry(string(rune('a'+i)), domain.TierB, 5, now.AddDate(0, 0, -i*10)))
	}

	h := Measure(pub, entries, now, 0)
	if h.QueueLength != 7 {
		t.Fatalf("queue length %d", h.QueueLength)
	}
	if h.WeeksOfBuffer != 2 {
		t.Fatalf("floor(7/3) weeks of buffer, got %d", h.WeeksOfBuffer)
	}
	// Entries aged 40, 50, and 60 days are stale; 30 exactly is not.
	if h.StaleCount != 3 {
		t.Fatalf("expected 3 stale entries, got %d", h.StaleCount)
	}
}
