package domain

// Tier classifies a scored idea for prioritization, strongest first.
type Tier string

const (
	TierPremiumA Tier = "premium_a"
	TierA        Tier = "a"
	TierB        Tier = "b"
	TierC        Tier = "c"
	// TierKill means the score indicates the idea should never be scheduled.
	// Distinct from StatusKilled, which can be set at any stage for any reason.
	TierKill Tier = "kill"
)

// Rank orders tiers for queue ranking; higher is better.
func (t Tier) Rank() int {
	switch t {
	case TierPremiumA:
		return 4
	case TierA:
		return 3
	case TierB:
		return 2
	case TierC:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the value is one of the five known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierPremiumA, TierA, TierB, TierC, TierKill:
		return true
	}
	return false
}

// Schedulable reports whether ideas of this tier may enter the evergreen queue.
func (t Tier) Schedulable() bool {
	return t.Valid() && t != TierKill
}
