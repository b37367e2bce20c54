package grid

import (
	"slices"
	"testing"
	"time"

	"EditorialPlanner/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandOneInstancePerMatchingDate(t *testing.T) {
	t.Parallel()

	templates := []domain.CalendarSlot{
		{ID: "mon", PublicationID: "p1", DayOfWeek: time.Monday, TierPriority: 1, IsActive: true},
		{ID: "thu", PublicationID: "p1", DayOfWeek: time.Thursday, TierPriority: 1, IsActive: true},
	}

	// 2026-03-02 is a Monday; two full weeks.
	got := slices.Collect(Expand(templates, day(2026, 3, 2), day(2026, 3, 15)))
	if len(got) != 4 {
		t.Fatalf("expected 4 instances over two weeks, got %d", len(got))
	}

	wantDates := []time.Time{day(2026, 3, 2), day(2026, 3, 5), day(2026, 3, 9), day(2026, 3, 12)}
	for i, inst := range got {
		if !inst.Date.Equal(wantDates[i]) {
			t.Errorf("instance %d on %v, want %v", i, inst.Date, wantDates[i])
		}
	}
}

func TestExpandOrdersByDateThenPriority(t *testing.T) {
	t.Parallel()

	templates := []domain.CalendarSlot{
		{ID: "second", PublicationID: "p1", DayOfWeek: time.Monday, TierPriority: 2, IsActive: true},
		{ID: "first", PublicationID: "p1", DayOfWeek: time.Monday, TierPriority: 1, IsActive: true},
	}

	got := slices.Collect(Expand(templates, day(2026, 3, 2), day(2026, 3, 2)))
	if len(got) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(got))
	}
	if got[0].SlotID != "first" || got[1].SlotID != "second" {
		t.Fatalf("priority ordering broken: %s, %s", got[0].SlotID, got[1].SlotID)
	}
}

func TestExpandSkipsInactiveTemplates(t *testing.T) {
	t.Parallel()

	templates := []domain.CalendarSlot{
		{ID: "off", PublicationID: "p1", DayOfWeek: time.Monday, TierPriority: 1, IsActive: false},
	}
	got := slices.Collect(Expand(templates, day(2026, 3, 2), day(2026, 3, 8)))
	if len(got) != 0 {
		t.Fatalf("inactive templates must not expand, got %d instances", len(got))
	}
}

func TestExpandInvertedRangeIsEmpty(t *testing.T) {
	t.Parallel()

	templates := []domain.CalendarSlot{
		{ID: "mon", PublicationID: "p1", DayOfWeek: time.Monday, TierPriority: 1, IsActive: true},
	}
	got := slices.Collect(Expand(templates, day(2026, 3, 8), day(2026, 3, 2)))
	if len(got) != 0 {
		t.Fatalf("inverted range must be empty, got %d", len(got))
	}
}

func TestExpandNormalizesTimestamps(t *testing.T) {
	t.Parallel()

	templates := []domain.CalendarSlot{
		{ID: "sun", PublicationID: "p1", DayOfWeek: time.Sunday, TierPriority: 1, IsActive: true},
	}
	// Sunday 2026-03-01 with a mid-day start timestamp still matches.
	start := time.Date(2026, 3, 1, 17, 45, 0, 0, time.UTC)
	got := slices.Collect(Expand(templates, start, start))
	if len(got) != 1 {
		t.Fatalf("expected the start date itself to match, got %d", len(got))
	}
	if got[0].Date.Hour() != 0 {
		t.Fatal("instance dates must be midnight UTC")
	}
}

func TestExpandStopsWhenConsumerBreaks(t *testing.T) {
	t.Parallel()

	templates := []domain.CalendarSlot{
		{ID: "mon", PublicationID: "p1", DayOfWeek: time.Monday, TierPriority: 1, IsActive: true},
	}
	count := 0
	for range Expand(templates, day(2026, 3, 2), day(2026, 12, 28)) {
		count++
		if count == 3 {
			break
		}
	}
	if count != 3 {
		t.Fatalf("early break consumed %d", count)
	}
}
