package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/gate"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/logging"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/update"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// #region helpers

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T, store SnapshotStore, db *state.Store) (*Orchestrator, *clock) {
	t.Helper()
	clk := &clock{t: t0}
	o, err := New(store, DefaultConfig(),
		WithLogger(zaptest.NewLogger(t)),
		WithProvenance(db.DB()),
		WithClock(clk.now),
	)
	require.NoError(t, err)
	return o, clk
}

func tempStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.NewStore(filepath.Join(t.TempDir(), "hud.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func save(at time.Time, amount float64) signals.Signal {
	return signals.Financial{At: at, Type: signals.Save, Amount: amount}
}

// racingStore commits a competing snapshot right before the first n commits
// it forwards, so those commits see a stale parent.
type racingStore struct {
	*state.Store
	races int
	rival func(parent state.SnapshotRecord) state.SnapshotRecord
}

func (r *racingStore) CommitSnapshot(rec state.SnapshotRecord) error {
	if r.races > 0 {
		r.races--
		cur, err := r.Store.GetCurrent(rec.ProfileID)
		if err != nil && !errors.Is(err, state.ErrNoSnapshot) {
			return err
		}
		if err := r.Store.CommitSnapshot(r.rival(cur)); err != nil {
			return err
		}
	}
	return r.Store.CommitSnapshot(rec)
}

// #endregion helpers

// #region ingest-tests

func TestIngestCommitsAndChainsVersions(t *testing.T) {
	db := tempStore(t)
	o, clk := setup(t, db, db)
	ctx := context.Background()

	first, err := o.Ingest(ctx, "alice", []signals.Signal{save(t0.Add(-time.Hour), 200)})
	require.NoError(t, err)
	assert.Equal(t, update.ActionCommit, first.Action)
	assert.NotEmpty(t, first.VersionID)
	assert.Equal(t, 1, first.Attempts)

	clk.advance(time.Hour)
	second, err := o.Ingest(ctx, "alice", []signals.Signal{
		signals.Focus{At: t0, Duration: 50 * time.Minute, UserInitiated: true},
	})
	require.NoError(t, err)
	require.Equal(t, update.ActionCommit, second.Action)

	cur, err := db.GetCurrent("alice")
	require.NoError(t, err)
	assert.Equal(t, second.VersionID, cur.VersionID)
	assert.Equal(t, first.VersionID, cur.ParentID)
	assert.Len(t, cur.Snapshot.Timeline, 2)
	assert.Greater(t, cur.Snapshot.Exp.CurrentExp, first.Snapshot.Exp.CurrentExp)

	versions, err := db.ListVersionsWithProvenance("alice", 10)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, string(TriggerIngest), versions[0].TriggerType)
	assert.Equal(t, update.ActionCommit, versions[0].Decision)
}

func TestIngestPartialBatchRecordsVetoes(t *testing.T) {
	db := tempStore(t)
	o, _ := setup(t, db, db)

	out, err := o.Ingest(context.Background(), "bob", []signals.Signal{
		save(t0.Add(-time.Minute), 50),
		signals.Activity{At: t0, Steps: -5},
	})
	require.NoError(t, err)
	assert.Equal(t, update.ActionCommit, out.Action)
	require.NotNil(t, out.Gate)
	assert.Equal(t, gate.ActionPartial, out.Gate.Action)

	cycles, err := logging.Cycles(db.DB(), "bob")
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"financial", "activity"}, cycles[0].SignalKinds)
	require.Len(t, cycles[0].Vetoes, 1)
	assert.Equal(t, 1, cycles[0].Vetoes[0].Index)
	require.NotNil(t, cycles[0].Eval)
	assert.True(t, cycles[0].Eval.Passed)
}

func TestIngestGateRejectLeavesSnapshot(t *testing.T) {
	db := tempStore(t)
	o, _ := setup(t, db, db)
	ctx := context.Background()

	_, err := o.Ingest(ctx, "carol", []signals.Signal{save(t0.Add(-time.Minute), 10)})
	require.NoError(t, err)
	before, err := o.Current("carol")
	require.NoError(t, err)

	out, err := o.Ingest(ctx, "carol", []signals.Signal{save(t0.Add(48*time.Hour), 10)})
	require.NoError(t, err)
	assert.Equal(t, update.ActionReject, out.Action)
	assert.Empty(t, out.VersionID)
	assert.Equal(t, before.Exp, out.Snapshot.Exp)

	cycles, err := logging.Cycles(db.DB(), "carol")
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, gate.ActionReject, cycles[1].GateAction)
}

func TestIngestEmptyBatchIsNoOp(t *testing.T) {
	db := tempStore(t)
	o, _ := setup(t, db, db)

	out, err := o.Ingest(context.Background(), "dave", nil)
	require.NoError(t, err)
	assert.Equal(t, update.ActionNoOp, out.Action)

	_, err = o.Current("dave")
	assert.ErrorIs(t, err, state.ErrNoSnapshot)
}

func TestIngestRequiresProfile(t *testing.T) {
	db := tempStore(t)
	o, _ := setup(t, db, db)
	_, err := o.Ingest(context.Background(), "", []signals.Signal{save(t0, 1)})
	assert.Error(t, err)
}

func TestIngestHonoursCancelledContext(t *testing.T) {
	db := tempStore(t)
	o, _ := setup(t, db, db)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Ingest(ctx, "erin", []signals.Signal{save(t0, 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

// #endregion ingest-tests

// #region retry-tests

func TestStaleParentIsRecomputedOnTopOfRival(t *testing.T) {
	db := tempStore(t)
	rival := func(parent state.SnapshotRecord) state.SnapshotRecord {
		snap := parent.Snapshot
		snap.Timeline = append(append([]state.TimelineEvent(nil), snap.Timeline...),
			state.TimelineEvent{Timestamp: t0, Message: "rival"})
		return state.SnapshotRecord{
			VersionID: "rival-" + parent.VersionID,
			ParentID:  parent.VersionID,
			ProfileID: "frank",
			Snapshot:  snap,
			CreatedAt: t0,
		}
	}
	racer := &racingStore{Store: db, rival: rival}
	o, _ := setup(t, racer, db)
	ctx := context.Background()

	_, err := o.Ingest(ctx, "frank", []signals.Signal{save(t0.Add(-time.Hour), 100)})
	require.NoError(t, err)

	racer.races = 1
	out, err := o.Ingest(ctx, "frank", []signals.Signal{save(t0.Add(-time.Minute), 100)})
	require.NoError(t, err)
	assert.Equal(t, update.ActionCommit, out.Action)
	assert.Equal(t, 2, out.Attempts)

	cur, err := db.GetCurrent("frank")
	require.NoError(t, err)
	assert.Equal(t, out.VersionID, cur.VersionID)
	assert.Contains(t, cur.ParentID, "rival-")
	msgs := make([]string, 0, len(cur.Snapshot.Timeline))
	for _, ev := range cur.Snapshot.Timeline {
		msgs = append(msgs, ev.Message)
	}
	assert.Contains(t, msgs, "rival")
}

func TestStaleParentGivesUpAfterMaxRetries(t *testing.T) {
	db := tempStore(t)
	n := 0
	rival := func(parent state.SnapshotRecord) state.SnapshotRecord {
		n++
		return state.SnapshotRecord{
			VersionID: "rival-" + string(rune('a'+n)),
			ParentID:  parent.VersionID,
			ProfileID: "gina",
			Snapshot:  parent.Snapshot,
			CreatedAt: t0,
		}
	}
	racer := &racingStore{Store: db, rival: rival}
	o, _ := setup(t, racer, db)
	ctx := context.Background()

	_, err := o.Ingest(ctx, "gina", []signals.Signal{save(t0.Add(-time.Hour), 100)})
	require.NoError(t, err)

	racer.races = maxRetries + 1
	out, err := o.Ingest(ctx, "gina", []signals.Signal{save(t0.Add(-time.Minute), 100)})
	require.ErrorIs(t, err, state.ErrStaleParent)
	assert.Equal(t, maxRetries+1, out.Attempts)
}

// #endregion retry-tests

// #region quest-tests

func TestAssignAndCompleteQuest(t *testing.T) {
	db := tempStore(t)
	o, clk := setup(t, db, db)
	ctx := context.Background()

	expires := t0.Add(6 * time.Hour)
	q, err := update.NewQuest("Morning walk", state.Daily, state.QuestTarget{Description: "Walk 4000 steps"}, 40,
		[]stat.Modifier{{Target: stat.Vital, Kind: stat.Buff, Magnitude: 5, Multiplier: 1, ExpiresAt: &expires}}, t0)
	require.NoError(t, err)

	out, err := o.AssignQuests(ctx, "hana", []state.Quest{q})
	require.NoError(t, err)
	require.Equal(t, update.ActionCommit, out.Action)
	require.Len(t, out.Snapshot.ActiveQuests, 1)

	_, err = o.AssignQuests(ctx, "hana", []state.Quest{q})
	assert.ErrorIs(t, err, ErrQuestExists)

	clk.advance(time.Hour)
	done, err := o.CompleteQuest(ctx, "hana", q.ID)
	require.NoError(t, err)
	require.Equal(t, update.ActionCommit, done.Action)
	assert.Equal(t, 40, done.Snapshot.Exp.CurrentExp)
	got, _, ok := done.Snapshot.Quest(q.ID)
	require.True(t, ok)
	assert.Equal(t, state.Completed, got.Progress)
	vital, _ := done.Snapshot.Stats.Get(stat.Vital)
	assert.Len(t, vital.Modifiers, 1)

	_, err = o.CompleteQuest(ctx, "hana", q.ID)
	assert.ErrorIs(t, err, update.ErrQuestNotActive)
	_, err = o.CompleteQuest(ctx, "hana", "missing")
	assert.ErrorIs(t, err, update.ErrQuestNotFound)
	_, err = o.CompleteQuest(ctx, "nobody", q.ID)
	assert.ErrorIs(t, err, state.ErrNoSnapshot)
}

func TestAssignQuestsRejectsRepeatWithinBatch(t *testing.T) {
	db := tempStore(t)
	o, _ := setup(t, db, db)
	ctx := context.Background()

	q, err := update.NewQuest("Stretch", state.Daily, state.QuestTarget{}, 15, nil, t0)
	require.NoError(t, err)
	other, err := update.NewQuest("Read", state.Daily, state.QuestTarget{}, 10, nil, t0)
	require.NoError(t, err)

	_, err = o.AssignQuests(ctx, "jun", []state.Quest{q, other, q})
	require.ErrorIs(t, err, ErrQuestExists)
	_, err = db.GetCurrent("jun")
	assert.ErrorIs(t, err, state.ErrNoSnapshot, "rejected batch commits nothing")

	out, err := o.AssignQuests(ctx, "jun", []state.Quest{q, other})
	require.NoError(t, err)
	assert.Len(t, out.Snapshot.ActiveQuests, 2)
}

func TestRefreshExpiresLapsedQuestsThenPruneDropsThem(t *testing.T) {
	db := tempStore(t)
	o, clk := setup(t, db, db)
	ctx := context.Background()

	q, err := update.NewQuest("Inbox zero", state.Daily, state.QuestTarget{}, 10, nil, t0)
	require.NoError(t, err)
	_, err = o.AssignQuests(ctx, "ivan", []state.Quest{q})
	require.NoError(t, err)

	out, err := o.Refresh(ctx, "ivan")
	require.NoError(t, err)
	assert.Equal(t, update.ActionNoOp, out.Action, "nothing lapsed yet")

	clk.advance(25 * time.Hour)
	out, err = o.Refresh(ctx, "ivan")
	require.NoError(t, err)
	require.Equal(t, update.ActionCommit, out.Action)
	got, _, _ := out.Snapshot.Quest(q.ID)
	assert.Equal(t, state.Expired, got.Progress)

	out, err = o.Prune(ctx, "ivan")
	require.NoError(t, err)
	require.Equal(t, update.ActionCommit, out.Action)
	assert.Empty(t, out.Snapshot.ActiveQuests)

	out, err = o.Prune(ctx, "ivan")
	require.NoError(t, err)
	assert.Equal(t, update.ActionNoOp, out.Action)
}

// #endregion quest-tests

// #region modifier-tests

func TestAddModifierRecomputesBalanceAndExpires(t *testing.T) {
	db := tempStore(t)
	o, clk := setup(t, db, db)
	ctx := context.Background()

	_, err := o.Ingest(ctx, "jo", []signals.Signal{save(t0.Add(-time.Minute), 100)})
	require.NoError(t, err)
	before, err := o.Current("jo")
	require.NoError(t, err)

	expires := t0.Add(2 * time.Hour)
	out, err := o.AddModifier(ctx, "jo", stat.Modifier{
		Target: stat.Cognition, Kind: stat.Debuff, Magnitude: -30, Multiplier: 1, ExpiresAt: &expires,
	})
	require.NoError(t, err)
	require.Equal(t, update.ActionCommit, out.Action)
	assert.Less(t, out.Snapshot.StatScore(stat.Cognition, t0), before.StatScore(stat.Cognition, t0))
	assert.NotEqual(t, before.StatScore(stat.Balance, t0), out.Snapshot.StatScore(stat.Balance, t0))

	clk.advance(3 * time.Hour)
	refreshed, err := o.Refresh(ctx, "jo")
	require.NoError(t, err)
	assert.Equal(t, update.ActionCommit, refreshed.Action, "expired debuff moves Balance")

	pruned, err := o.Prune(ctx, "jo")
	require.NoError(t, err)
	require.Equal(t, update.ActionCommit, pruned.Action)
	cog, _ := pruned.Snapshot.Stats.Get(stat.Cognition)
	assert.Empty(t, cog.Modifiers)
}

func TestAddModifierRejectsUntrackedStat(t *testing.T) {
	db := tempStore(t)
	clk := &clock{t: t0}
	cfg := DefaultConfig()
	cfg.Update.ExtendedStats = nil
	o, err := New(db, cfg, WithClock(clk.now))
	require.NoError(t, err)

	_, err = o.AddModifier(context.Background(), "kim", stat.Modifier{Target: stat.Mood, Kind: stat.Buff, Magnitude: 3, Multiplier: 1})
	assert.ErrorIs(t, err, ErrStatAbsent)
}

// #endregion modifier-tests

// #region bulk-tests

func TestRefreshAllVisitsEveryProfile(t *testing.T) {
	db := tempStore(t)
	o, clk := setup(t, db, db)
	ctx := context.Background()

	for _, p := range []string{"lee", "max"} {
		q, err := update.NewQuest("Stretch", state.Daily, state.QuestTarget{}, 5, nil, t0)
		require.NoError(t, err)
		_, err = o.AssignQuests(ctx, p, []state.Quest{q})
		require.NoError(t, err)
	}
	profiles, err := o.Profiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"lee", "max"}, profiles)

	clk.advance(30 * time.Hour)
	require.NoError(t, o.RefreshAll(ctx))
	require.NoError(t, o.PruneAll(ctx))

	for _, p := range profiles {
		snap, err := o.Current(p)
		require.NoError(t, err)
		assert.Empty(t, snap.ActiveQuests, p)
	}
}

func TestConcurrentIngestSameProfileSerializes(t *testing.T) {
	db := tempStore(t)
	o, _ := setup(t, db, db)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := o.Ingest(ctx, "nia", []signals.Signal{save(t0.Add(-time.Duration(i+1)*time.Minute), 20)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	versions, err := db.ListVersions("nia", 100)
	require.NoError(t, err)
	assert.Len(t, versions, n)
	cur, err := o.Current("nia")
	require.NoError(t, err)
	assert.Len(t, cur.Timeline, n)
}

// #endregion bulk-tests
