// Package balance derives the Balance axis from how evenly the other core
// stats sit: the wider the spread, the lower the balance.
package balance

import (
	"math"
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
)

const (
	DefaultSensitivity = 1.5
	// Neutral is reported when no core stat besides Balance is present.
	Neutral = 50.0
)

// Calculator computes balance = clamp(100 - k·σ) over the effective scores of
// the core stats other than Balance, where σ is the population standard
// deviation.
type Calculator struct {
	Sensitivity float64
}

// NewCalculator returns a calculator with the default sensitivity.
func NewCalculator() Calculator {
	return Calculator{Sensitivity: DefaultSensitivity}
}

// Compute evaluates the sheet at the given instant.
func (c Calculator) Compute(sheet stat.Sheet, at time.Time) float64 {
	var scores []float64
	for _, k := range stat.CoreKinds() {
		if k == stat.Balance {
			continue
		}
		if s, ok := sheet.Get(k); ok {
			scores = append(scores, s.EffectiveScore(at))
		}
	}
	if len(scores) == 0 {
		return Neutral
	}
	return stat.Clamp(100 - c.Sensitivity*StdDev(scores))
}

// StdDev is the population standard deviation of xs. It returns 0 for an
// empty slice.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	variance := 0.0
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	return math.Sqrt(variance / float64(len(xs)))
}
