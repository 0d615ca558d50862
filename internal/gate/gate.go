package gate

import (
	"fmt"
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
)

// #region gate
// Gate decides which signals of an incoming batch reach the engine.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate checks the batch-level veto first, then screens each signal.
// Vetoed signals are dropped individually; the batch is rejected only when
// the batch veto fires or nothing survives. An empty batch commits.
//
// Signals carry no identity of their own. A signal whose kind, instant and
// payload all match one already admitted from the same batch is treated as a
// client resend and vetoed as a duplicate. Two genuine events that agree on
// every field, down to the nanosecond, are therefore counted once.
func (g *Gate) Evaluate(batch []signals.Signal, now time.Time) GateDecision {
	// --- Batch veto ---
	if g.config.MaxBatchSize > 0 && len(batch) > g.config.MaxBatchSize {
		v := VetoSignal{
			Type:   VetoBatchSize,
			Index:  -1,
			Reason: fmt.Sprintf("batch of %d exceeds cap %d", len(batch), g.config.MaxBatchSize),
		}
		return GateDecision{
			Action:      ActionReject,
			Reason:      fmt.Sprintf("hard veto: %s", v.Reason),
			Vetoed:      true,
			VetoSignals: []VetoSignal{v},
		}
	}

	// --- Per-signal screening ---
	var vetoes []VetoSignal
	accepted := make([]signals.Signal, 0, len(batch))
	for i, s := range batch {
		if v, ok := g.screen(i, s, now, accepted); !ok {
			vetoes = append(vetoes, v)
			continue
		}
		accepted = append(accepted, s)
	}

	switch {
	case len(vetoes) == 0:
		return GateDecision{
			Action:   ActionCommit,
			Reason:   fmt.Sprintf("passed gate: %d signals", len(accepted)),
			Accepted: accepted,
		}
	case len(accepted) == 0:
		return GateDecision{
			Action:      ActionReject,
			Reason:      fmt.Sprintf("all %d signals vetoed, first: %s", len(batch), vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
		}
	default:
		return GateDecision{
			Action:      ActionPartial,
			Reason:      fmt.Sprintf("admitted %d of %d signals, first veto: %s", len(accepted), len(batch), vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
			Accepted:    accepted,
		}
	}
}

// #endregion gate

// #region screen
func (g *Gate) screen(i int, s signals.Signal, now time.Time, accepted []signals.Signal) (VetoSignal, bool) {
	if err := signals.Validate(s); err != nil {
		return VetoSignal{Type: VetoInvalidSignal, Index: i, Reason: err.Error()}, false
	}
	at := s.Timestamp()
	if g.config.MaxClockSkew >= 0 && at.After(now.Add(g.config.MaxClockSkew)) {
		return VetoSignal{
			Type:   VetoFutureSignal,
			Index:  i,
			Reason: fmt.Sprintf("%s at %s is %s ahead of now", s.Kind(), at.Format(time.RFC3339), at.Sub(now)),
		}, false
	}
	if g.config.MaxSignalAge > 0 && at.Before(now.Add(-g.config.MaxSignalAge)) {
		return VetoSignal{
			Type:   VetoStaleSignal,
			Index:  i,
			Reason: fmt.Sprintf("%s at %s is older than %s", s.Kind(), at.Format(time.RFC3339), g.config.MaxSignalAge),
		}, false
	}
	for _, prev := range accepted {
		if sameSignal(prev, s) {
			return VetoSignal{
				Type:   VetoDuplicate,
				Index:  i,
				Reason: fmt.Sprintf("duplicate %s at %s", s.Kind(), at.Format(time.RFC3339)),
			}, false
		}
	}
	return VetoSignal{}, true
}

// sameSignal reports whether a and b describe the same event. Timestamps
// compare as instants so a zone or monotonic reading does not split them.
func sameSignal(a, b signals.Signal) bool {
	if a.Kind() != b.Kind() || !a.Timestamp().Equal(b.Timestamp()) {
		return false
	}
	return withoutTime(a) == withoutTime(b)
}

func withoutTime(s signals.Signal) signals.Signal {
	switch v := s.(type) {
	case signals.Financial:
		v.At = time.Time{}
		return v
	case signals.Activity:
		v.At = time.Time{}
		return v
	case signals.Sleep:
		v.At = time.Time{}
		return v
	case signals.Focus:
		v.At = time.Time{}
		return v
	case signals.NotificationBurst:
		v.At = time.Time{}
		return v
	case signals.ScreenUsage:
		v.At = time.Time{}
		return v
	}
	return s
}

// #endregion screen
