package domain

import (
	"fmt"
	"time"
)

// Status tracks an idea routing through its lifecycle.
type Status string

const (
	StatusIntake    Status = "intake"
	StatusRouted    Status = "routed"
	StatusScored    Status = "scored"
	StatusSlotted   Status = "slotted"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusKilled    Status = "killed"
)

// Valid reports whether the value is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusIntake, StatusRouted, StatusScored, StatusSlotted,
		StatusScheduled, StatusPublished, StatusKilled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusKilled
}

var forwardTransitions = map[Status]Status{
	StatusIntake:    StatusRouted,
	StatusRouted:    StatusScored,
	StatusScored:    StatusSlotted,
	StatusSlotted:   StatusScheduled,
	StatusScheduled: StatusPublished,
}

// CanTransition reports whether from -> to is an allowed lifecycle step.
// Killing is permitted from any non-terminal status, a slotted routing
// may be released back to scored, and a same-status patch is a field
// update rather than a transition. Everything else follows the single
// forward chain. Stores consult this before applying a patch, so the
// table here is the one authority on legal status changes.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to == StatusKilled {
		return true
	}
	if from == StatusSlotted && to == StatusScored {
		return true
	}
	return forwardTransitions[from] == to
}

// Score bounds for every dimension supplied by the scoring collaborator.
const (
	ScoreMin = 0.0
	ScoreMax = 10.0
)

// ScoreSet maps scoring dimension names to numeric values. Dimensions
// present vary by publication; absent dimensions are simply missing keys,
// never zeros.
type ScoreSet map[string]float64

// Validate rejects out-of-range dimension values.
func (s ScoreSet) Validate() error {
	for dim, v := range s {
		if v < ScoreMin || v > ScoreMax {
			return fmt.Errorf("score %q out of range [%g,%g]: %g", dim, ScoreMin, ScoreMax, v)
		}
	}
	return nil
}

// Mean averages the present dimensions. Empty sets fail with
// ErrNoScoresProvided rather than returning zero.
func (s ScoreSet) Mean() (float64, error) {
	if len(s) == 0 {
		return 0, ErrNoScoresProvided
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s)), nil
}

// Clone returns an independent copy; nil stays nil.
func (s ScoreSet) Clone() ScoreSet {
	if s == nil {
		return nil
	}
	out := make(ScoreSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// IdeaRouting is the engine's tracking record for one idea's journey
// through scoring and scheduling. The routing record is the source of
// truth for tier and score; the evergreen queue entry is a projection.
type IdeaRouting struct {
	ID       string
	IdeaID   string
	Status   Status
	RoutedTo string // publication slug, empty only in intake
	// YouTubeVersion marks ideas that also ship as a video cut.
	YouTubeVersion bool
	Scores         ScoreSet
	Tier           Tier // empty until scored
	CalendarDate   *time.Time
	// SlotID binds the routing to the slot template it occupies, so the
	// allocator can recognize an already-filled (date, template) pair.
	SlotID     string
	KillReason string

	// Inputs consumed only by the external scoring collaborator.
	Audience           string
	TimeSensitivity    string
	Resource           string
	EstimatedLength    string
	IsFoundational     bool
	HasContrarianAngle bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the routing can no longer transition.
func (r *IdeaRouting) Terminal() bool {
	return r.Status.Terminal()
}

// Validate checks the status/field invariants. A routing loaded from
// storage or produced by a transition must always satisfy these.
func (r *IdeaRouting) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("routing %s: unknown status %q", r.ID, r.Status)
	}
	if r.IdeaID == "" {
		return fmt.Errorf("routing %s: empty idea id", r.ID)
	}
	if r.RoutedTo == "" && r.Status != StatusIntake && r.Status != StatusKilled {
		// A routing killed at intake never had a publication.
		return fmt.Errorf("routing %s: status %s without a publication", r.ID, r.Status)
	}
	hasDate := r.CalendarDate != nil
	wantsDate := r.Status == StatusSlotted || r.Status == StatusScheduled || r.Status == StatusPublished
	if wantsDate && !hasDate {
		return fmt.Errorf("routing %s: status %s without a calendar date", r.ID, r.Status)
	}
	if hasDate && !wantsDate && r.Status != StatusKilled {
		// Killed routings keep their date for audit until unscheduled.
		return fmt.Errorf("routing %s: status %s with a calendar date", r.ID, r.Status)
	}
	tiered := r.Status == StatusScored || r.Status == StatusSlotted ||
		r.Status == StatusScheduled || r.Status == StatusPublished
	if tiered && !r.Tier.Valid() {
		return fmt.Errorf("routing %s: status %s without a tier", r.ID, r.Status)
	}
	if r.Status == StatusKilled && r.KillReason == "" {
		return fmt.Errorf("routing %s: killed without a reason", r.ID)
	}
	if err := r.Scores.Validate(); err != nil {
		return fmt.Errorf("routing %s: %w", r.ID, err)
	}
	return nil
}

// Clone returns a deep copy safe to hand across store boundaries.
func (r *IdeaRouting) Clone() *IdeaRouting {
	out := *r
	out.Scores = r.Scores.Clone()
	if r.CalendarDate != nil {
		d := *r.CalendarDate
		out.CalendarDate = &d
	}
	return &out
}

// RoutingPatch carries the field changes applied together with a
// compare-and-swap status update. Nil pointer fields are left untouched;
// Clear* flags null a field out.
type RoutingPatch struct {
	Status            Status
	RoutedTo          *string
	Scores            ScoreSet
	Tier              *Tier
	CalendarDate      *time.Time
	ClearCalendarDate bool
	SlotID            *string
	ClearSlotID       bool
	KillReason        *string
}

// Apply mutates r in place per the patch. Storage adapters use this to
// keep the patch semantics identical across backends.
func (p RoutingPatch) Apply(r *IdeaRouting, now time.Time) {
	r.Status = p.Status
	if p.RoutedTo != nil {
		r.RoutedTo = *p.RoutedTo
	}
	if p.Scores != nil {
		r.Scores = p.Scores.Clone()
	}
	if p.Tier != nil {
		r.Tier = *p.Tier
	}
	if p.CalendarDate != nil {
		d := Midnight(*p.CalendarDate)
		r.CalendarDate = &d
	}
	if p.ClearCalendarDate {
		r.CalendarDate = nil
	}
	if p.SlotID != nil {
		r.SlotID = *p.SlotID
	}
	if p.ClearSlotID {
		r.SlotID = ""
	}
	if p.KillReason != nil {
		r.KillReason = *p.KillReason
	}
	r.UpdatedAt = now
}
