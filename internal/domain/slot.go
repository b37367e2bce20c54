package domain

import (
	"fmt"
	"time"
)

// CalendarSlot is a recurring weekly template position in a publication's
// cadence, not a concrete date. The grid expander turns templates into
// SlotInstances for a requested range.
type CalendarSlot struct {
	ID            string
	PublicationID string
	DayOfWeek     time.Weekday
	IsFixed       bool
	FixedFormat   string
	// FixedFormatName is the operator-facing label for the format.
	FixedFormatName string
	// PreferredTier is empty when the slot accepts any schedulable tier.
	PreferredTier Tier
	// TierPriority orders slots within the same day; lower fills first.
	TierPriority int
	IsActive     bool
}

// Validate checks slot template invariants.
func (s *CalendarSlot) Validate() error {
	if s.PublicationID == "" {
		return fmt.Errorf("slot %s: empty publication id", s.ID)
	}
	if s.DayOfWeek < time.Sunday || s.DayOfWeek > time.Saturday {
		return fmt.Errorf("slot %s: day of week out of range: %d", s.ID, s.DayOfWeek)
	}
	if s.IsFixed && s.FixedFormat == "" {
		return fmt.Errorf("slot %s: fixed slot without a format", s.ID)
	}
	if !s.IsFixed && s.FixedFormat != "" {
		return fmt.Errorf("slot %s: format set on a flexible slot", s.ID)
	}
	if s.PreferredTier != "" && !s.PreferredTier.Schedulable() {
		return fmt.Errorf("slot %s: preferred tier %q is not schedulable", s.ID, s.PreferredTier)
	}
	if s.TierPriority < 1 {
		return fmt.Errorf("slot %s: tier priority must be >= 1, got %d", s.ID, s.TierPriority)
	}
	return nil
}

// SlotInstance is a slot template expanded against one concrete date.
type SlotInstance struct {
	Date          time.Time
	SlotID        string
	IsFixed       bool
	PreferredTier Tier
	TierPriority  int
}

// SlotAssignment records that a routing occupies a (date, slot template) pair.
type SlotAssignment struct {
	SlotID    string
	Date      time.Time
	RoutingID string
}

// Midnight truncates a timestamp to its calendar date in UTC. Calendar
// dates throughout the engine are midnight-UTC instants so that map keys
// and equality checks behave.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
