package orchestrator

// #region imports
import (
	"errors"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/eval"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/gate"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/update"
)

// #endregion

// #region trigger

// Trigger names what started a cycle. It is written to provenance_log.
type Trigger string

const (
	TriggerIngest   Trigger = "ingest"
	TriggerQuest    Trigger = "quest"
	TriggerAssign   Trigger = "assign"
	TriggerModifier Trigger = "modifier"
	TriggerRefresh  Trigger = "refresh"
	TriggerPrune    Trigger = "prune"
)

// #endregion

// #region errors

// ErrStatAbsent is returned when a modifier targets a stat the profile does
// not track.
var ErrStatAbsent = errors.New("orchestrator: stat not tracked")

// ErrQuestExists is returned when an assigned quest ID is already active or
// repeats within the same batch.
var ErrQuestExists = errors.New("orchestrator: quest already assigned")

// #endregion

// #region config

// Config bundles the pipeline stages.
type Config struct {
	Update update.UpdateConfig
	Gate   gate.GateConfig
	Eval   eval.EvalConfig
}

// DefaultConfig returns the defaults of every stage.
func DefaultConfig() Config {
	return Config{
		Update: update.DefaultUpdateConfig(),
		Gate:   gate.DefaultGateConfig(),
		Eval:   eval.DefaultEvalConfig(),
	}
}

// #endregion

// #region outcome

// Outcome reports one cycle. VersionID is set only when Action is commit;
// Snapshot is the profile's active snapshot after the cycle.
type Outcome struct {
	ProfileID string
	VersionID string
	Action    string // "commit" | "reject" | "no_op"
	Reason    string
	Gate      *gate.GateDecision
	Metrics   update.Metrics
	Eval      *eval.EvalResult
	Snapshot  state.Snapshot
	Attempts  int
}

// #endregion

// #region interfaces

// SnapshotStore is the persistence the orchestrator needs. *state.Store
// satisfies it.
type SnapshotStore interface {
	GetCurrent(profileID string) (state.SnapshotRecord, error)
	CommitSnapshot(rec state.SnapshotRecord) error
	ListProfiles() ([]string, error)
}

// #endregion
