package replay

import (
	"fmt"
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/eval"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/gate"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/update"
)

// #region types
// Cycle is a single recorded ingest: a batch as received and the instant it
// was processed.
type Cycle struct {
	ID      string
	At      time.Time
	Signals []signals.Signal
}

// ReplayConfig bundles gate, update, and eval configs for a replay run.
type ReplayConfig struct {
	UpdateConfig update.UpdateConfig
	GateConfig   gate.GateConfig
	EvalConfig   eval.EvalConfig
}

// DefaultReplayConfig returns sensible defaults for all three pipeline stages.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		UpdateConfig: update.DefaultUpdateConfig(),
		GateConfig:   gate.DefaultGateConfig(),
		EvalConfig:   eval.DefaultEvalConfig(),
	}
}

// ReplayResult captures the outcome of replaying one cycle through the full pipeline.
type ReplayResult struct {
	CycleID string
	Action  string // "commit" | "gate_reject" | "eval_rollback" | "no_op"
	Reason  string

	// Gate stage
	GateDecision gate.GateDecision

	// Update stage (zero if the gate rejected)
	UpdateDecision update.Decision
	UpdateMetrics  update.Metrics

	// Eval stage (nil unless the update committed)
	EvalResult *eval.EvalResult

	// Snapshot after this cycle (the previous one unless committed)
	Snapshot state.Snapshot
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalCycles   int
	Commits       int
	Partials      int // commits whose batch lost signals at the gate
	GateRejects   int
	EvalRollbacks int
	NoOps         int
	FinalSnapshot state.Snapshot
}

// #endregion types

// #region replay
// Replay iterates through cycles, applying the full pipeline per cycle:
// gate → update → eval → commit/reject. Operates entirely in-memory; start
// is nil for a fresh profile.
func Replay(start *state.Snapshot, cycles []Cycle, config ReplayConfig) ([]ReplayResult, error) {
	engine, err := update.NewEngine(config.UpdateConfig)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	gateInst := gate.NewGate(config.GateConfig)
	evalInst := eval.NewEvalHarness(config.EvalConfig)

	var current *state.Snapshot
	if start != nil {
		s := *start
		current = &s
	}
	snapshotOf := func() state.Snapshot {
		if current == nil {
			return state.Snapshot{}
		}
		return *current
	}

	results := make([]ReplayResult, 0, len(cycles))
	for _, c := range cycles {
		// 1. Gate
		gateDecision := gateInst.Evaluate(c.Signals, c.At)
		if gateDecision.Action == gate.ActionReject {
			results = append(results, ReplayResult{
				CycleID:      c.ID,
				Action:       "gate_reject",
				Reason:       gateDecision.Reason,
				GateDecision: gateDecision,
				Snapshot:     snapshotOf(),
			})
			continue
		}

		// 2. Update
		updateResult := engine.Update(current, gateDecision.Accepted, c.At)
		if updateResult.Decision.Action == update.ActionNoOp {
			results = append(results, ReplayResult{
				CycleID:        c.ID,
				Action:         "no_op",
				Reason:         updateResult.Decision.Reason,
				GateDecision:   gateDecision,
				UpdateDecision: updateResult.Decision,
				UpdateMetrics:  updateResult.Metrics,
				Snapshot:       snapshotOf(),
			})
			continue
		}

		// 3. Eval
		evalResult := evalInst.Run(updateResult.Snapshot)
		if !evalResult.Passed {
			results = append(results, ReplayResult{
				CycleID:        c.ID,
				Action:         "eval_rollback",
				Reason:         evalResult.Reason,
				GateDecision:   gateDecision,
				UpdateDecision: updateResult.Decision,
				UpdateMetrics:  updateResult.Metrics,
				EvalResult:     &evalResult,
				Snapshot:       snapshotOf(),
			})
			continue
		}

		// 4. Commit
		next := updateResult.Snapshot
		current = &next
		results = append(results, ReplayResult{
			CycleID:        c.ID,
			Action:         "commit",
			Reason:         updateResult.Decision.Reason,
			GateDecision:   gateDecision,
			UpdateDecision: updateResult.Decision,
			UpdateMetrics:  updateResult.Metrics,
			EvalResult:     &evalResult,
			Snapshot:       next,
		})
	}

	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalCycles: len(results)}
	for _, r := range results {
		switch r.Action {
		case "commit":
			s.Commits++
			if r.GateDecision.Action == gate.ActionPartial {
				s.Partials++
			}
		case "gate_reject":
			s.GateRejects++
		case "eval_rollback":
			s.EvalRollbacks++
		case "no_op":
			s.NoOps++
		}
	}
	if len(results) > 0 {
		s.FinalSnapshot = results[len(results)-1].Snapshot
	}
	return s
}

// #endregion replay
