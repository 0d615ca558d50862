package eval

import "github.com/ssj-sketch/Statuswindow-sub001/internal/balance"

// #region eval-config
// EvalConfig holds thresholds for pre-commit validation of a snapshot.
type EvalConfig struct {
	TimelineLimit      int     // reject if the timeline grew past this
	BalanceSensitivity float64 // must match the engine's k
	BalanceTolerance   float64 // allowed drift of the stored Balance base
}

// DefaultEvalConfig matches the engine defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		TimelineLimit:      50,
		BalanceSensitivity: balance.DefaultSensitivity,
		BalanceTolerance:   1e-6,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of snapshot validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result
