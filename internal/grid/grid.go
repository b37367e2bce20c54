// Package grid expands recurring weekly slot templates into concrete
// slot instances for a date range.
package grid

import (
	"iter"
	"slices"
	"strings"
	"time"

	"EditorialPlanner/internal/domain"
)

// Expand yields one instance per (active template, matching date) pair
// over [start, end] inclusive, ordered by date then tier priority, with
// slot ID breaking priority ties. The sequence is finite and lazy;
// callers that need a slice can slices.Collect it. An inverted range
// yields nothing.
func Expand(templates []domain.CalendarSlot, start, end time.Time) iter.Seq[domain.SlotInstance] {
	byDay := make(map[time.Weekday][]domain.CalendarSlot)
	for _, tpl := range templates {
		if !tpl.IsActive {
			continue
		}
		byDay[tpl.DayOfWeek] = append(byDay[tpl.DayOfWeek], tpl)
	}
	for day := range byDay {
		slices.SortFunc(byDay[day], func(a, b domain.CalendarSlot) int {
			if a.TierPriority != b.TierPriority {
				return a.TierPriority - b.TierPriority
			}
			return strings.Compare(a.ID, b.ID)
		})
	}

	first := domain.Midnight(start)
	last := domain.Midnight(end)

	return func(yield func(domain.SlotInstance) bool) {
		for date := first; !date.After(last); date = date.AddDate(0, 0, 1) {
			for _, tpl := range byDay[date.Weekday()] {
				inst := domain.SlotInstance{
					Date:          date,
					SlotID:        tpl.ID,
					IsFixed:       tpl.IsFixed,
					PreferredTier: tpl.PreferredTier,
					TierPriority:  tpl.TierPriority,
				}
				if !yield(inst) {
					return
				}
			}
		}
	}
}
