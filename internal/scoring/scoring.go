// Package scoring maps one signal to the stat deltas it implies. Every
// function here is pure: the caller owns the sheet and applies the deltas.
package scoring

import (
	"math"
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
)

// Delta is a signed, pre-clamp change to one stat's base score.
type Delta struct {
	Stat  stat.Kind
	Value float64
}

// #region score

// Score returns the deltas a signal implies for the given sheet. Zero and
// non-finite deltas are dropped, as are deltas aimed at absent stats.
// A nil signal yields nothing.
func Score(sheet stat.Sheet, s signals.Signal) []Delta {
	deltas, _ := score(sheet, s)
	return deltas
}

// score also reports whether the signal variant had a rule at all, so tests
// can assert that no variant falls through.
func score(sheet stat.Sheet, s signals.Signal) ([]Delta, bool) {
	var raw []Delta
	switch v := s.(type) {
	case signals.Financial:
		raw = []Delta{{stat.Wealth, financial(v)}}
	case signals.Activity:
		raw = []Delta{{stat.Vital, activity(v)}}
	case signals.Sleep:
		raw = []Delta{{stat.Vital, sleep(v)}}
	case signals.Focus:
		raw = []Delta{{stat.Cognition, focus(v)}}
	case signals.NotificationBurst:
		raw = burst(v)
	case signals.ScreenUsage:
		raw = screen(sheet, v)
	default:
		return nil, false
	}

	var out []Delta
	for _, d := range raw {
		if d.Value == 0 || math.IsNaN(d.Value) || math.IsInf(d.Value, 0) {
			continue
		}
		if !sheet.Has(d.Stat) {
			continue
		}
		out = append(out, d)
	}
	return out, true
}

// #endregion score

// #region rules

func financial(v signals.Financial) float64 {
	switch v.Type {
	case signals.Save:
		return math.Min(12, 4+safeLog2(v.Amount))
	case signals.Invest:
		return math.Min(15, 6+safeLog2(v.Amount))
	case signals.Spend:
		return -math.Min(10, 3+safeLog2(v.Amount))
	}
	return 0
}

func activity(v signals.Activity) float64 {
	d := math.Min(10, float64(v.Steps)/1200*8)
	if v.IsRecovery {
		d += 6
	}
	return d
}

func sleep(v signals.Sleep) float64 {
	hours := float64(int64(v.Duration / time.Hour))
	q := stat.ClampRange(v.Quality, 0, 1)
	score := hours/8*70 + q*30 - float64(v.Interruptions)*3
	return stat.ClampRange(score-70, -15, 15)
}

func focus(v signals.Focus) float64 {
	minutes := float64(int64(v.Duration / time.Minute))
	d := math.Min(12, minutes/25*8) - float64(v.Interruptions)*2
	if v.UserInitiated {
		d += 2
	}
	return d
}

// burstTargets routes a notification category to the stat it nudges. System
// bursts write to Balance directly, an exception to Balance being derived;
// the engine overwrites that write when it recomputes Balance.
var burstTargets = map[signals.Category]stat.Kind{
	signals.CategoryFinance:       stat.Wealth,
	signals.CategoryFitness:       stat.Vital,
	signals.CategoryFocus:         stat.Cognition,
	signals.CategorySocial:        stat.Social,
	signals.CategoryEntertainment: stat.Cognition,
	signals.CategorySystem:        stat.Balance,
}

func burst(v signals.NotificationBurst) []Delta {
	target, ok := burstTargets[v.Category]
	if !ok {
		return nil
	}
	c := float64(v.Count)
	var m float64
	switch v.Category {
	case signals.CategoryFinance:
		m = math.Min(10, c*1.5)
	case signals.CategoryFitness:
		m = math.Min(8, c*1.2)
	case signals.CategoryFocus:
		m = -math.Min(12, c*1.8)
	case signals.CategorySocial:
		m = math.Min(6, c)
	case signals.CategoryEntertainment:
		m = -math.Min(8, c*1.2)
	case signals.CategorySystem:
		m = -math.Min(5, c*0.8)
	}
	if v.QuietHours && m > 0 {
		m -= 0.5 * m
	}
	return []Delta{{target, m}}
}

func screen(sheet stat.Sheet, v signals.ScreenUsage) []Delta {
	minutes := float64(int64(v.Duration / time.Minute))
	penalty := math.Min(12, minutes/15*3)
	total := -penalty
	if v.LateNight {
		total = -penalty * 1.5
	}
	out := []Delta{{stat.Cognition, total}}
	if total < 0 && sheet.Has(stat.Balance) {
		out = append(out, Delta{stat.Balance, total * 0.4})
	}
	return out
}

// #endregion rules

// #region helpers

// safeLog2 is log2(max(x,1)); non-positive and NaN inputs map to 0.
func safeLog2(x float64) float64 {
	if !(x > 1) {
		return 0
	}
	return math.Log2(x)
}

// #endregion helpers
