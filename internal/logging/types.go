package logging

import (
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/eval"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/update"
)

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table. VersionID is
// empty for cycles that did not commit.
type ProvenanceEntry struct {
	ProfileID   string
	VersionID   string
	TriggerType string // "ingest" | "quest" | "refresh" | "prune" | "modifier" | "assign"
	SignalsJSON string
	RecordJSON  string
	Decision    string // "commit" | "reject" | "no_op"
	Reason      string
	CreatedAt   time.Time
}
// #endregion provenance-entry

// #region cycle-record
// CycleRecord captures everything that fed a single update cycle.
// Serialized as JSON into provenance_log.record_json so a cycle can be
// re-examined without the original request.
type CycleRecord struct {
	CycleID   string    `json:"cycle_id"`
	ProfileID string    `json:"profile_id"`
	At        time.Time `json:"at"`

	// Batch as received, by kind, in batch order
	SignalKinds []string `json:"signal_kinds"`

	// Gate output
	GateAction string      `json:"gate_action,omitempty"`
	GateReason string      `json:"gate_reason,omitempty"`
	Vetoes     []CycleVeto `json:"vetoes,omitempty"`

	// Engine output
	Metrics update.Metrics `json:"metrics"`

	// Pre-commit validation
	Eval *eval.EvalResult `json:"eval,omitempty"`

	// Retries spent on stale parents
	Attempts int `json:"attempts"`
}

// CycleVeto is one dropped signal, or the batch veto at index -1.
type CycleVeto struct {
	Type   string `json:"type"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}
// #endregion cycle-record
