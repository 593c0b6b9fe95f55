// Package retention implements the forgetting-curve model shared by the
// memory tiers.
//
// Retention follows an exponential decay curve:
//
//	R = e^(-ageHours / S)
//
// where memory strength S = 10 * importance * ln(accessCount + 1.5).
// Higher importance and more accesses produce a larger S, which slows the
// decay. An importance of zero collapses S to zero and the memory is
// treated as already forgotten.
package retention

import "math"

// strengthFactor scales importance into memory strength.
const strengthFactor = 10.0

// Score returns the current retention of a memory in [0, 1] given its age
// in hours, its importance in [0, 1], and how many times it has been
// accessed. accessCount must be at least 1; callers clamp before calling.
// Pure function, no side effects.
func Score(ageHours, importance float64, accessCount int) float64 {
	if ageHours <= 0 {
		return 1.0
	}
	if accessCount < 1 {
		accessCount = 1
	}

	strength := strengthFactor * importance * math.Log(float64(accessCount)+1.5)
	if strength <= 0 {
		// Zero-importance memories decay instantly.
		return 0
	}

	r := math.Exp(-ageHours / strength)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// Strength exposes the raw memory-strength term for callers that want to
// reason about decay speed directly (maintenance reporting).
func Strength(importance float64, accessCount int) float64 {
	if accessCount < 1 {
		accessCount = 1
	}
	return strengthFactor * importance * math.Log(float64(accessCount)+1.5)
}
