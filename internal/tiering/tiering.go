// Package tiering maps score sets onto tiers. Thresholds come from
// configuration so publications can tune their own cut lines; the engine
// only guarantees a monotonic, total mapping from mean score to tier.
package tiering

import (
	"fmt"

	"EditorialPlanner/internal/domain"
)

// Thresholds are the minimum mean scores for each schedulable tier.
// Means below C resolve to the kill tier.
type Thresholds struct {
	PremiumA float64 `yaml:"premiumA"`
	A        float64 `yaml:"a"`
	B        float64 `yaml:"b"`
	C        float64 `yaml:"c"`
}

// DefaultThresholds returns the house defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{PremiumA: 8.5, A: 7, B: 5, C: 3}
}

// Validate rejects threshold sets that would break monotonicity.
func (t Thresholds) Validate() error {
	if !(t.PremiumA > t.A && t.A > t.B && t.B > t.C) {
		return fmt.Errorf("tier thresholds must be strictly descending: %+v", t)
	}
	return nil
}

// TierFor resolves a mean score to a tier. Total over all floats.
func (t Thresholds) TierFor(mean float64) domain.Tier {
	switch {
	case mean >= t.PremiumA:
		return domain.TierPremiumA
	case mean >= t.A:
		return domain.TierA
	case mean >= t.B:
		return domain.TierB
	case mean >= t.C:
		return domain.TierC
	default:
		return domain.TierKill
	}
}

// Aggregate computes the mean of the present dimensions and resolves the
// tier. Absent dimensions are excluded from both sum and count; an empty
// set fails with domain.ErrNoScoresProvided.
func Aggregate(scores domain.ScoreSet, t Thresholds) (domain.Tier, float64, error) {
	if err := scores.Validate(); err != nil {
		return "", 0, err
	}
	mean, err := scores.Mean()
	if err != nil {
		return "", 0, err
	}
	return t.TierFor(mean), mean, nil
}
