package assessment

import (
	"math"

	"github.com/de-tools/compliance-atlas/pkg/models/domain"
)

// Severity weights and divisors are fixed for compatibility with
// historical scores; do not tune them without a migration plan.
const (
	weightHigh   = 3.0
	weightMedium = 1.5
	weightLow    = 0.5

	overallDivisor = 20.0
	moduleDivisor  = 10.0
)

// Score converts assessment-wide severity counts into a compliance score
// in (0, 100]. It decreases monotonically with weighted severity and never
// reaches zero; an empty finding set scores a perfect 100.
func Score(counts domain.SeverityCounts) int {
	return score(counts, overallDivisor)
}

// ModuleScore is the steeper per-subscription variant used for module
// result records.
func ModuleScore(counts domain.SeverityCounts) int {
	return score(counts, moduleDivisor)
}

func score(counts domain.SeverityCounts, divisor float64) int {
	if counts.Total == 0 {
		return 100
	}
	weighted := float64(counts.High)*weightHigh +
		float64(counts.Medium)*weightMedium +
		float64(counts.Low)*weightLow
	return int(math.Round(100 / (1 + weighted/divisor)))
}
