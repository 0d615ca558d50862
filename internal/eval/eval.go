package eval

import (
	"fmt"
	"math"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/balance"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/progress"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
)

// #region eval-harness
// EvalHarness validates a computed snapshot before it is committed.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks the snapshot invariants. Every check is reported; the first
// failing one names the reason. Timeline ordering is informational only.
func (h *EvalHarness) Run(snap state.Snapshot) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}
	at := snap.GeneratedAt

	// 1. Stat construction contract
	invalid := 0
	var firstInvalid error
	for _, k := range snap.Stats.Kinds() {
		st, _ := snap.Stats.Get(k)
		if err := st.Validate(); err != nil {
			invalid++
			if firstInvalid == nil {
				firstInvalid = err
			}
		}
	}
	check("invalid_stats", float64(invalid), invalid == 0, fmt.Sprintf("invalid stat: %v", firstInvalid))

	// 2. Core axes
	missing := 0
	for _, k := range stat.CoreKinds() {
		if !snap.Stats.Has(k) {
			missing++
		}
	}
	check("missing_core_stats", float64(missing), missing == 0, fmt.Sprintf("%d core stats missing", missing))

	// 3. Effective scores stay in [0,100]
	lo, hi := stat.MaxScore, stat.MinScore
	for _, k := range snap.Stats.Kinds() {
		v := snap.Stats.Score(k, at)
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	inRange := lo >= stat.MinScore && hi <= stat.MaxScore
	check("effective_score_min", lo, inRange, fmt.Sprintf("effective scores span [%.4f, %.4f]", lo, hi))

	// 4. Timeline bound
	n := len(snap.Timeline)
	check("timeline_len", float64(n), n <= h.config.TimelineLimit,
		fmt.Sprintf("timeline holds %d events, limit %d", n, h.config.TimelineLimit))

	// 5. Progression invariant
	expErr := snap.Exp.Validate()
	expOK := expErr == nil &&
		snap.Exp.CurrentExp < snap.Exp.ExpForNext &&
		snap.Exp.ExpForNext == progress.Threshold(snap.Exp.Level)
	check("exp_level", float64(snap.Exp.Level), expOK, fmt.Sprintf("exp %+v breaks the level curve", snap.Exp))

	// 6. Balance agrees with the other core stats
	if st, ok := snap.Stats.Get(stat.Balance); ok {
		want := balance.Calculator{Sensitivity: h.config.BalanceSensitivity}.Compute(snap.Stats, at)
		drift := math.Abs(st.BaseScore - want)
		check("balance_drift", drift, drift <= h.config.BalanceTolerance,
			fmt.Sprintf("balance %.4f drifts %.4f from %.4f", st.BaseScore, drift, want))
	}

	// 7. At least one suggestion
	check("suggestions", float64(len(snap.Suggestions)), len(snap.Suggestions) > 0, "no suggestions")

	// 8. Timeline order: informational, late signals land out of order
	inversions := 0
	for i := 1; i < n; i++ {
		if snap.Timeline[i].Timestamp.Before(snap.Timeline[i-1].Timestamp) {
			inversions++
		}
	}
	metrics = append(metrics, EvalMetric{Name: "timeline_inversions", Value: float64(inversions), Pass: inversions == 0})

	reason := "all checks passed"
	passed := len(failReasons) == 0
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
