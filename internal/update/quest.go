package update

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
)

// #region new-quest
// NewQuest validates and builds a not-started quest assigned at assignedAt.
// Reward modifiers without an ID get a fresh one.
func NewQuest(title string, cadence state.Cadence, target state.QuestTarget, rewardExp int, rewardModifiers []stat.Modifier, assignedAt time.Time) (state.Quest, error) {
	if title == "" {
		return state.Quest{}, errors.New("quest: empty title")
	}
	switch cadence {
	case state.Daily, state.Weekly, state.Event:
	default:
		return state.Quest{}, fmt.Errorf("quest: unknown cadence %q", cadence)
	}
	if rewardExp < 0 {
		return state.Quest{}, fmt.Errorf("quest: negative reward %d", rewardExp)
	}
	mods := make([]stat.Modifier, 0, len(rewardModifiers))
	for _, m := range rewardModifiers {
		if !m.Target.Valid() {
			return state.Quest{}, fmt.Errorf("quest: reward modifier: %w", stat.ErrUnknownKind)
		}
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		mods = append(mods, m)
	}
	if len(mods) == 0 {
		mods = nil
	}
	return state.Quest{
		ID:              uuid.New().String(),
		Title:           title,
		Cadence:         cadence,
		Target:          target,
		RewardExp:       rewardExp,
		RewardModifiers: mods,
		Progress:        state.NotStarted,
		AssignedAt:      assignedAt,
	}, nil
}
// #endregion new-quest

// #region complete-quest
// CompleteQuest marks an open quest completed at now, awards its experience,
// attaches its reward modifiers to their target stats and records a timeline
// event. Modifiers aimed at untracked stats are dropped. A quest whose
// cadence window has lapsed can no longer be completed.
func (e *Engine) CompleteQuest(previous state.Snapshot, questID string, now time.Time) (UpdateResult, error) {
	q, idx, ok := previous.Quest(questID)
	if !ok {
		return UpdateResult{}, fmt.Errorf("%w: %s", ErrQuestNotFound, questID)
	}
	if !q.Progress.Open() || lapsed(q, now) {
		return UpdateResult{}, fmt.Errorf("%w: %s is %s", ErrQuestNotActive, questID, q.Progress)
	}

	next := previous
	for _, m := range q.RewardModifiers {
		st, ok := next.Stats.Get(m.Target)
		if !ok {
			continue
		}
		next.Stats.Set(st.WithModifier(m))
	}
	levelBefore := next.Exp.Level
	next.Exp = next.Exp.Award(max(0, q.RewardExp))

	quests := cloneQuests(previous.ActiveQuests)
	quests[idx].Progress = state.Completed

	next.Timeline = append(append([]state.TimelineEvent(nil), previous.Timeline...), state.TimelineEvent{
		Timestamp: now,
		Message:   fmt.Sprintf("Quest completed: %s (+%d exp)", q.Title, q.RewardExp),
	})

	res := e.Update(&next, nil, now, WithActiveQuests(quests))
	res.Metrics.ExpAwarded = q.RewardExp
	res.Metrics.LevelsGained = res.Snapshot.Exp.Level - levelBefore
	res.Decision = Decision{
		Action: ActionCommit,
		Reason: fmt.Sprintf("quest %s completed, exp +%d", q.ID, q.RewardExp),
	}
	return res, nil
}
// #endregion complete-quest

// #region expire-quests
// ExpireQuests returns a copy of quests with every open quest whose cadence
// window has passed at now marked expired, plus the number marked. Event
// quests never lapse.
func ExpireQuests(quests []state.Quest, now time.Time) ([]state.Quest, int) {
	out := cloneQuests(quests)
	n := 0
	for i := range out {
		if out[i].Progress.Open() && lapsed(out[i], now) {
			out[i].Progress = state.Expired
			n++
		}
	}
	return out, n
}

// DropClosedQuests returns the quests that are still open.
func DropClosedQuests(quests []state.Quest) ([]state.Quest, int) {
	var out []state.Quest
	for _, q := range quests {
		if q.Progress.Open() {
			out = append(out, q)
		}
	}
	return cloneQuests(out), len(quests) - len(out)
}

func lapsed(q state.Quest, now time.Time) bool {
	w := q.Cadence.Window()
	if w == 0 {
		return false
	}
	return !now.Before(q.AssignedAt.Add(w))
}
// #endregion expire-quests

// #region prune
// PruneExpiredModifiers returns a copy of snap with every modifier that is
// inactive at the given instant removed, plus the number removed. Expired
// modifiers are already inert, so effective scores do not change.
func PruneExpiredModifiers(snap state.Snapshot, at time.Time) (state.Snapshot, int) {
	total := 0
	for _, k := range snap.Stats.Kinds() {
		st, _ := snap.Stats.Get(k)
		pruned, n := st.PruneExpired(at)
		if n > 0 {
			snap.Stats.Set(pruned)
			total += n
		}
	}
	return snap, total
}
// #endregion prune
