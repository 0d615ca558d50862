package update

import (
	"errors"
	"fmt"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/balance"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
)

// #region decision
const (
	ActionCommit = "commit"
	ActionReject = "reject"
	ActionNoOp   = "no_op"
)

// Decision records what an update cycle decided.
type Decision struct {
	Action string // "commit" | "reject" | "no_op"
	Reason string
}
// #endregion decision

// #region metrics
// Metrics captures telemetry from an update cycle.
type Metrics struct {
	SignalsReceived int      `json:"signals_received"`
	SignalsApplied  int      `json:"signals_applied"`
	SignalsSkipped  int      `json:"signals_skipped"`
	ExpAwarded      int      `json:"exp_awarded"`
	LevelsGained    int      `json:"levels_gained"`
	StatsTouched    []string `json:"stats_touched,omitempty"`
	Balance         float64  `json:"balance"`
	UpdateTimeMs    int64    `json:"update_time_ms"`
}
// #endregion metrics

// #region update-config
// UpdateConfig holds the tunables of the snapshot engine.
type UpdateConfig struct {
	SmoothingFactor    float64     // EWMA α for every stat except Balance (default 0.15)
	BalanceSensitivity float64     // k in 100 - k·σ (default 1.5)
	TimelineLimit      int         // events kept per snapshot (default 50)
	ExtendedStats      []stat.Kind // extended axes seeded for a new profile
	CognitionCutoff    float64     // suggest focus recovery below this (default 55)
	VitalCutoff        float64     // suggest movement below this (default 60)
	WealthCutoff       float64     // suggest a budget check below this (default 58)
}

// DefaultUpdateConfig seeds every extended axis, as a fresh profile tracks
// all of them unless a deployment turns some off.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		SmoothingFactor:    0.15,
		BalanceSensitivity: balance.DefaultSensitivity,
		TimelineLimit:      50,
		ExtendedStats:      stat.ExtendedKinds(),
		CognitionCutoff:    55,
		VitalCutoff:        60,
		WealthCutoff:       58,
	}
}

// Validate reports the first invalid field.
func (c UpdateConfig) Validate() error {
	if !(c.SmoothingFactor >= 0 && c.SmoothingFactor <= 1) {
		return fmt.Errorf("smoothing factor %v not in [0,1]", c.SmoothingFactor)
	}
	if !(c.BalanceSensitivity >= 0) {
		return fmt.Errorf("balance sensitivity %v must be non-negative", c.BalanceSensitivity)
	}
	if c.TimelineLimit <= 0 {
		return fmt.Errorf("timeline limit %d must be positive", c.TimelineLimit)
	}
	for _, k := range c.ExtendedStats {
		if !k.Valid() || k.IsCore() {
			return fmt.Errorf("extended stat %s: %w", k, stat.ErrUnknownKind)
		}
	}
	cutoffs := []struct {
		name string
		v    float64
	}{
		{"cognition cutoff", c.CognitionCutoff},
		{"vital cutoff", c.VitalCutoff},
		{"wealth cutoff", c.WealthCutoff},
	}
	for _, cut := range cutoffs {
		if !(cut.v >= stat.MinScore && cut.v <= stat.MaxScore) {
			return fmt.Errorf("%s %v not in [0,100]", cut.name, cut.v)
		}
	}
	return nil
}
// #endregion update-config

// #region errors
var (
	ErrQuestNotFound  = errors.New("update: quest not found")
	ErrQuestNotActive = errors.New("update: quest is not active")
)
// #endregion errors

// #region update-result
// UpdateResult bundles everything returned by Update.
type UpdateResult struct {
	Snapshot state.Snapshot
	Decision Decision
	Metrics  Metrics
}
// #endregion update-result
