package state

import (
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/progress"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
)

// #region snapshot
// Snapshot is the published status of one profile. It is replaced wholesale
// on every update and never modified in place.
type Snapshot struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	Stats        stat.Sheet        `json:"stats"`
	Exp          progress.Progress `json:"exp"`
	ActiveQuests []Quest           `json:"active_quests,omitempty"`
	Timeline     []TimelineEvent   `json:"timeline,omitempty"`
	Suggestions  []Suggestion      `json:"suggestions,omitempty"`
}

// StatScore is the effective score of kind at the given instant, or 0 when
// the stat is not tracked.
func (s Snapshot) StatScore(kind stat.Kind, at time.Time) float64 {
	return s.Stats.Score(kind, at)
}

// Quest looks up a quest by ID.
func (s Snapshot) Quest(id string) (Quest, int, bool) {
	for i, q := range s.ActiveQuests {
		if q.ID == id {
			return q, i, true
		}
	}
	return Quest{}, -1, false
}
// #endregion snapshot

// #region timeline
// TimelineEvent records the deltas one signal produced.
type TimelineEvent struct {
	Timestamp time.Time             `json:"timestamp"`
	Message   string                `json:"message"`
	Deltas    map[stat.Kind]float64 `json:"deltas,omitempty"`
}

// Suggestion is a coaching prompt with a short list of options.
type Suggestion struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}
// #endregion timeline

// #region quest
// Cadence is how often a quest recurs.
type Cadence string

const (
	Daily  Cadence = "daily"
	Weekly Cadence = "weekly"
	Event  Cadence = "event"
)

// Window is how long a quest of this cadence stays open after assignment.
// Event quests never lapse and report 0.
func (c Cadence) Window() time.Duration {
	switch c {
	case Daily:
		return 24 * time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	}
	return 0
}

// QuestProgress is the lifecycle position of a quest.
type QuestProgress string

const (
	NotStarted QuestProgress = "not_started"
	InProgress QuestProgress = "in_progress"
	Completed  QuestProgress = "completed"
	Expired    QuestProgress = "expired"
)

// Open reports whether a quest can still be completed.
func (p QuestProgress) Open() bool {
	return p == NotStarted || p == InProgress
}

// QuestTarget describes what the quest asks for.
type QuestTarget struct {
	Description       string        `json:"description"`
	SuggestedDuration time.Duration `json:"suggested_duration,omitempty"`
	Threshold         float64       `json:"threshold,omitempty"`
}

// Quest is an assigned goal with an experience and modifier reward.
type Quest struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Cadence         Cadence         `json:"cadence"`
	Target          QuestTarget     `json:"target"`
	RewardExp       int             `json:"reward_exp"`
	RewardModifiers []stat.Modifier `json:"reward_modifiers,omitempty"`
	Progress        QuestProgress   `json:"progress"`
	AssignedAt      time.Time       `json:"assigned_at"`
}
// #endregion quest

// #region snapshot-record
// SnapshotRecord is one persisted version of a profile's snapshot.
type SnapshotRecord struct {
	VersionID   string
	ParentID    string
	ProfileID   string
	Snapshot    Snapshot
	CreatedAt   time.Time
	MetricsJSON string
}
// #endregion snapshot-record

// #region version-with-provenance
// VersionWithProvenance pairs a version with the provenance row that
// committed it.
type VersionWithProvenance struct {
	SnapshotRecord
	TriggerType string
	Decision    string
	Reason      string
}
// #endregion version-with-provenance
