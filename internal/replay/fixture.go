package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/eval"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/gate"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/update"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Cycles          []FixtureCycle          `json:"cycles"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureCycle holds one batch in the signals wire format.
type FixtureCycle struct {
	CycleID string          `json:"cycle_id"`
	At      time.Time       `json:"at"`
	Signals json.RawMessage `json:"signals"`
}

// FixtureExpectedResult captures the expected outcome per cycle. Zero-valued
// optional fields are not checked.
type FixtureExpectedResult struct {
	CycleID     string                `json:"cycle_id"`
	Action      string                `json:"action"`
	GateAction  string                `json:"gate_action,omitempty"`
	Level       int                   `json:"level,omitempty"`
	CurrentExp  *int                  `json:"current_exp,omitempty"`
	TimelineLen *int                  `json:"timeline_len,omitempty"`
	Stats       map[string]StatBounds `json:"stats,omitempty"`
}

// StatBounds is an inclusive range for a base score.
type StatBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FixtureConfig bundles all sub-configs for a replay run. Omitted sections
// keep their defaults.
type FixtureConfig struct {
	UpdateConfig *FixtureUpdateConfig `json:"update_config,omitempty"`
	GateConfig   *FixtureGateConfig   `json:"gate_config,omitempty"`
	EvalConfig   *FixtureEvalConfig   `json:"eval_config,omitempty"`
}

// FixtureUpdateConfig mirrors update.UpdateConfig with JSON tags.
type FixtureUpdateConfig struct {
	SmoothingFactor    float64  `json:"smoothing_factor"`
	BalanceSensitivity float64  `json:"balance_sensitivity"`
	TimelineLimit      int      `json:"timeline_limit"`
	ExtendedStats      []string `json:"extended_stats"`
}

// FixtureGateConfig mirrors gate.GateConfig with JSON tags. Durations are Go
// duration strings.
type FixtureGateConfig struct {
	MaxBatchSize int    `json:"max_batch_size"`
	MaxClockSkew string `json:"max_clock_skew"`
	MaxSignalAge string `json:"max_signal_age"`
}

// FixtureEvalConfig mirrors eval.EvalConfig with JSON tags.
type FixtureEvalConfig struct {
	TimelineLimit    int     `json:"timeline_limit"`
	BalanceTolerance float64 `json:"balance_tolerance"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToCycles decodes every cycle's batch.
func (f *Fixture) ToCycles() ([]Cycle, error) {
	out := make([]Cycle, 0, len(f.Cycles))
	for _, fc := range f.Cycles {
		batch := []signals.Signal{}
		if len(fc.Signals) > 0 {
			var err error
			batch, err = signals.UnmarshalBatch(fc.Signals)
			if err != nil {
				return nil, fmt.Errorf("cycle %s: %w", fc.CycleID, err)
			}
		}
		out = append(out, Cycle{ID: fc.CycleID, At: fc.At, Signals: batch})
	}
	return out, nil
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() (ReplayConfig, error) {
	cfg := DefaultReplayConfig()
	if u := fc.UpdateConfig; u != nil {
		kinds := make([]stat.Kind, 0, len(u.ExtendedStats))
		for _, name := range u.ExtendedStats {
			k, err := stat.ParseKind(name)
			if err != nil {
				return ReplayConfig{}, err
			}
			kinds = append(kinds, k)
		}
		cfg.UpdateConfig = update.UpdateConfig{
			SmoothingFactor:    u.SmoothingFactor,
			BalanceSensitivity: u.BalanceSensitivity,
			TimelineLimit:      u.TimelineLimit,
			ExtendedStats:      kinds,
			CognitionCutoff:    cfg.UpdateConfig.CognitionCutoff,
			VitalCutoff:        cfg.UpdateConfig.VitalCutoff,
			WealthCutoff:       cfg.UpdateConfig.WealthCutoff,
		}
	}
	if g := fc.GateConfig; g != nil {
		skew, err := optionalDuration(g.MaxClockSkew)
		if err != nil {
			return ReplayConfig{}, fmt.Errorf("max_clock_skew: %w", err)
		}
		age, err := optionalDuration(g.MaxSignalAge)
		if err != nil {
			return ReplayConfig{}, fmt.Errorf("max_signal_age: %w", err)
		}
		cfg.GateConfig = gate.GateConfig{MaxBatchSize: g.MaxBatchSize, MaxClockSkew: skew, MaxSignalAge: age}
	}
	if e := fc.EvalConfig; e != nil {
		cfg.EvalConfig = eval.EvalConfig{
			TimelineLimit:      e.TimelineLimit,
			BalanceSensitivity: cfg.UpdateConfig.BalanceSensitivity,
			BalanceTolerance:   e.BalanceTolerance,
		}
	}
	return cfg, nil
}

func optionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// #endregion fixture-loader

// #region check

// Check compares results against expectations and returns one message per
// mismatch.
func Check(results []ReplayResult, expected []FixtureExpectedResult) []string {
	var out []string
	if len(results) != len(expected) {
		return []string{fmt.Sprintf("expected %d results, got %d", len(expected), len(results))}
	}
	for i, want := range expected {
		got := results[i]
		if got.CycleID != want.CycleID {
			out = append(out, fmt.Sprintf("cycle %d: expected cycle_id=%s, got %s", i, want.CycleID, got.CycleID))
		}
		if got.Action != want.Action {
			out = append(out, fmt.Sprintf("cycle %s: expected action=%s, got action=%s (reason: %s)",
				want.CycleID, want.Action, got.Action, got.Reason))
		}
		if want.GateAction != "" && got.GateDecision.Action != want.GateAction {
			out = append(out, fmt.Sprintf("cycle %s: expected gate_action=%s, got %s",
				want.CycleID, want.GateAction, got.GateDecision.Action))
		}
		snap := got.Snapshot
		if want.Level != 0 && snap.Exp.Level != want.Level {
			out = append(out, fmt.Sprintf("cycle %s: expected level=%d, got %d", want.CycleID, want.Level, snap.Exp.Level))
		}
		if want.CurrentExp != nil && snap.Exp.CurrentExp != *want.CurrentExp {
			out = append(out, fmt.Sprintf("cycle %s: expected current_exp=%d, got %d",
				want.CycleID, *want.CurrentExp, snap.Exp.CurrentExp))
		}
		if want.TimelineLen != nil && len(snap.Timeline) != *want.TimelineLen {
			out = append(out, fmt.Sprintf("cycle %s: expected timeline_len=%d, got %d",
				want.CycleID, *want.TimelineLen, len(snap.Timeline)))
		}
		for name, b := range want.Stats {
			k, err := stat.ParseKind(name)
			if err != nil {
				out = append(out, fmt.Sprintf("cycle %s: %v", want.CycleID, err))
				continue
			}
			st, ok := snap.Stats.Get(k)
			if !ok {
				out = append(out, fmt.Sprintf("cycle %s: stat %s absent", want.CycleID, name))
				continue
			}
			if st.BaseScore < b.Min || st.BaseScore > b.Max {
				out = append(out, fmt.Sprintf("cycle %s: %s base %.4f outside [%.4f, %.4f]",
					want.CycleID, name, st.BaseScore, b.Min, b.Max))
			}
		}
	}
	return out
}

// #endregion check
