package scoring

import (
	"math"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
)

var cadence = map[signals.Kind]float64{
	signals.KindActivity:          1.2,
	signals.KindFocus:             1.4,
	signals.KindFinancial:         1.1,
	signals.KindSleep:             1.0,
	signals.KindNotificationBurst: 0.8,
	signals.KindScreenUsage:       0.6,
}

// CadenceMultiplier is the experience weight of a signal kind. Unknown kinds
// earn nothing.
func CadenceMultiplier(kind signals.Kind) float64 {
	return cadence[kind]
}

// Impact is the sum of absolute delta values.
func Impact(deltas []Delta) float64 {
	total := 0.0
	for _, d := range deltas {
		total += math.Abs(d.Value)
	}
	return total
}
