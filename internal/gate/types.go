package gate

import (
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
)

// #region veto-type
// VetoType enumerates veto categories.
type VetoType string

const (
	VetoBatchSize     VetoType = "batch_size"
	VetoInvalidSignal VetoType = "invalid_signal"
	VetoFutureSignal  VetoType = "future_signal"
	VetoStaleSignal   VetoType = "stale_signal"
	// VetoDuplicate marks an exact repeat of a signal admitted earlier in
	// the same batch.
	VetoDuplicate     VetoType = "duplicate_signal"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal is one detected veto. Index is the position of the offending
// signal in the batch, or -1 for a batch-level veto.
type VetoSignal struct {
	Type   VetoType
	Index  int
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds the admission limits for a signal batch.
type GateConfig struct {
	MaxBatchSize int           // batch-level hard cap
	MaxClockSkew time.Duration // how far past now a timestamp may be
	MaxSignalAge time.Duration // how far before now a timestamp may be (0 = unlimited)
}

// DefaultGateConfig returns the production limits.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxBatchSize: 500,
		MaxClockSkew: 5 * time.Minute,
		MaxSignalAge: 30 * 24 * time.Hour,
	}
}

// #endregion gate-config

// #region gate-decision
const (
	ActionCommit  = "commit"
	ActionPartial = "partial"
	ActionReject  = "reject"
)

// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "commit" | "partial" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal     // one entry per dropped signal, or the batch veto
	Accepted    []signals.Signal // admitted signals in batch order
}

// #endregion gate-decision
