package balance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestComputeWithoutCoreStatsIsNeutral(t *testing.T) {
	c := NewCalculator()
	assert.Equal(t, 50.0, c.Compute(stat.Sheet{}, t0))

	onlyBalanceAndSocial := stat.NewSheet(stat.MustNew(stat.Balance, 10, 0.15), stat.MustNew(stat.Social, 90, 0.15))
	assert.Equal(t, 50.0, c.Compute(onlyBalanceAndSocial, t0))
}

func TestComputeIdenticalScoresIsPerfect(t *testing.T) {
	sh := stat.NewSheet(
		stat.MustNew(stat.Wealth, 42, 0.15),
		stat.MustNew(stat.Vital, 42, 0.15),
		stat.MustNew(stat.Cognition, 42, 0.15),
		stat.MustNew(stat.Balance, 3, 0.15),
	)
	assert.Equal(t, 100.0, NewCalculator().Compute(sh, t0))
}

func TestComputeUsesEffectiveScores(t *testing.T) {
	sh := stat.NewSheet(
		stat.MustNew(stat.Wealth, 40, 0.15),
		stat.MustNew(stat.Vital, 60, 0.15,
			stat.Modifier{ID: "m", Target: stat.Vital, Magnitude: -20, Multiplier: 1, ExpiresAt: ptr(t0.Add(time.Hour))}),
	)
	assert.Equal(t, 100.0, NewCalculator().Compute(sh, t0))
	// once the modifier lapses σ = 10
	assert.InDelta(t, 85.0, NewCalculator().Compute(sh, t0.Add(time.Hour)), 1e-9)
}

func TestComputeClampsAtZero(t *testing.T) {
	sh := stat.NewSheet(stat.MustNew(stat.Wealth, 0, 0.15), stat.MustNew(stat.Vital, 100, 0.15))
	assert.Equal(t, 0.0, Calculator{Sensitivity: 3}.Compute(sh, t0))
}

func TestStdDev(t *testing.T) {
	assert.Zero(t, StdDev(nil))
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
}

func ptr(t time.Time) *time.Time { return &t }
