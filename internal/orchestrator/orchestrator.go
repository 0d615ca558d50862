package orchestrator

// #region imports
import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/eval"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/gate"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/logging"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/update"
)

// #endregion

// #region orchestrator-struct

// Orchestrator coordinates every write to a profile's snapshot lineage:
// gate, engine, eval, commit, provenance. Cycles for one profile run one at a
// time; different profiles proceed in parallel.
type Orchestrator struct {
	store  SnapshotStore
	db     *sql.DB
	engine *update.Engine
	gate   *gate.Gate
	eval   *eval.EvalHarness
	logger *zap.Logger
	now    func() time.Time
	locks  keyedMutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(l) }
}

// WithProvenance writes a provenance_log row per cycle to db.
func WithProvenance(db *sql.DB) Option {
	return func(o *Orchestrator) { o.db = db }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// #endregion

// #region constructor

// New creates a fully wired orchestrator over store.
func New(store SnapshotStore, cfg Config, opts ...Option) (*Orchestrator, error) {
	engine, err := update.NewEngine(cfg.Update)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		store:  store,
		engine: engine,
		gate:   gate.NewGate(cfg.Gate),
		eval:   eval.NewEvalHarness(cfg.Eval),
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// #endregion

// #region operations

// Ingest gates a batch and applies what survives. A rejected batch is not an
// error; the outcome carries the gate decision.
func (o *Orchestrator) Ingest(ctx context.Context, profileID string, batch []signals.Signal) (Outcome, error) {
	gd := o.gate.Evaluate(batch, o.now())
	in := o.input(profileID, TriggerIngest, batch)
	in.gate = &gd
	in.rec.GateAction, in.rec.GateReason = gd.Action, gd.Reason
	for _, v := range gd.VetoSignals {
		in.rec.Vetoes = append(in.rec.Vetoes, logging.CycleVeto{Type: string(v.Type), Index: v.Index, Reason: v.Reason})
	}
	return o.cycle(ctx, in, func(prev *state.Snapshot, now time.Time) (update.UpdateResult, error) {
		return o.engine.Update(prev, gd.Accepted, now), nil
	})
}

// CompleteQuest completes an active quest of the profile.
func (o *Orchestrator) CompleteQuest(ctx context.Context, profileID, questID string) (Outcome, error) {
	return o.cycle(ctx, o.input(profileID, TriggerQuest, nil), func(prev *state.Snapshot, now time.Time) (update.UpdateResult, error) {
		if prev == nil {
			return update.UpdateResult{}, fmt.Errorf("complete quest %s: %w", questID, state.ErrNoSnapshot)
		}
		return o.engine.CompleteQuest(*prev, questID, now)
	})
}

// AssignQuests appends quests to the profile's active list. A profile
// without a snapshot gets a fresh one.
func (o *Orchestrator) AssignQuests(ctx context.Context, profileID string, quests []state.Quest) (Outcome, error) {
	return o.cycle(ctx, o.input(profileID, TriggerAssign, nil), func(prev *state.Snapshot, now time.Time) (update.UpdateResult, error) {
		if len(quests) == 0 {
			return noOp("no quests to assign"), nil
		}
		var active []state.Quest
		if prev != nil {
			active = append(active, prev.ActiveQuests...)
		}
		seen := make(map[string]bool, len(active)+len(quests))
		for _, q := range active {
			seen[q.ID] = true
		}
		for _, q := range quests {
			if seen[q.ID] {
				return update.UpdateResult{}, fmt.Errorf("assign quest %s: %w", q.ID, ErrQuestExists)
			}
			seen[q.ID] = true
			active = append(active, q)
		}
		res := o.engine.Update(prev, nil, now, update.WithActiveQuests(active))
		res.Decision = update.Decision{
			Action: update.ActionCommit,
			Reason: fmt.Sprintf("assigned %d quests", len(quests)),
		}
		return res, nil
	})
}

// AddModifier attaches a modifier to its target stat. The target must be
// tracked by the profile.
func (o *Orchestrator) AddModifier(ctx context.Context, profileID string, m stat.Modifier) (Outcome, error) {
	return o.cycle(ctx, o.input(profileID, TriggerModifier, nil), func(prev *state.Snapshot, now time.Time) (update.UpdateResult, error) {
		var next state.Snapshot
		if prev != nil {
			next = *prev
		} else {
			next = o.engine.ComputeSnapshot(nil, nil, now)
		}
		st, ok := next.Stats.Get(m.Target)
		if !ok {
			return update.UpdateResult{}, fmt.Errorf("modifier on %s: %w", m.Target, ErrStatAbsent)
		}
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		withMod := st.WithModifier(m)
		if err := withMod.Validate(); err != nil {
			return update.UpdateResult{}, fmt.Errorf("modifier %s: %w", m.ID, err)
		}
		next.Stats.Set(withMod)
		res := o.engine.Update(&next, nil, now)
		res.Decision = update.Decision{
			Action: update.ActionCommit,
			Reason: fmt.Sprintf("%s modifier %s on %s", m.Kind, m.ID, m.Target),
		}
		return res, nil
	})
}

// Refresh recomputes the snapshot with no signals so Balance and suggestions
// follow modifiers that expired since the last cycle, and expires lapsed
// quests. It commits only when something changed.
func (o *Orchestrator) Refresh(ctx context.Context, profileID string) (Outcome, error) {
	return o.cycle(ctx, o.input(profileID, TriggerRefresh, nil), func(prev *state.Snapshot, now time.Time) (update.UpdateResult, error) {
		if prev == nil {
			return noOp("no snapshot"), nil
		}
		quests, expired := update.ExpireQuests(prev.ActiveQuests, now)
		res := o.engine.Update(prev, nil, now, update.WithActiveQuests(quests))
		if expired == 0 && !changed(*prev, res.Snapshot) {
			res.Decision = update.Decision{Action: update.ActionNoOp, Reason: "nothing changed"}
			return res, nil
		}
		res.Decision = update.Decision{
			Action: update.ActionCommit,
			Reason: fmt.Sprintf("refreshed, %d quests expired", expired),
		}
		return res, nil
	})
}

// Prune removes expired modifiers and closed quests from the snapshot.
func (o *Orchestrator) Prune(ctx context.Context, profileID string) (Outcome, error) {
	return o.cycle(ctx, o.input(profileID, TriggerPrune, nil), func(prev *state.Snapshot, now time.Time) (update.UpdateResult, error) {
		if prev == nil {
			return noOp("no snapshot"), nil
		}
		pruned, mods := update.PruneExpiredModifiers(*prev, now)
		quests, closed := update.DropClosedQuests(pruned.ActiveQuests)
		if mods+closed == 0 {
			return noOp("nothing to prune"), nil
		}
		res := o.engine.Update(&pruned, nil, now, update.WithActiveQuests(quests))
		res.Decision = update.Decision{
			Action: update.ActionCommit,
			Reason: fmt.Sprintf("pruned %d modifiers, %d closed quests", mods, closed),
		}
		return res, nil
	})
}

// Current returns the profile's active snapshot.
func (o *Orchestrator) Current(profileID string) (state.Snapshot, error) {
	rec, err := o.store.GetCurrent(profileID)
	if err != nil {
		return state.Snapshot{}, err
	}
	return rec.Snapshot, nil
}

// Profiles lists every profile with a snapshot.
func (o *Orchestrator) Profiles() ([]string, error) {
	return o.store.ListProfiles()
}

// RefreshAll runs Refresh for every profile. Failures are logged and joined;
// one profile failing does not stop the others.
func (o *Orchestrator) RefreshAll(ctx context.Context) error {
	return o.forEach(ctx, "refresh", o.Refresh)
}

// PruneAll runs Prune for every profile.
func (o *Orchestrator) PruneAll(ctx context.Context) error {
	return o.forEach(ctx, "prune", o.Prune)
}

func (o *Orchestrator) forEach(ctx context.Context, name string, fn func(context.Context, string) (Outcome, error)) error {
	profiles, err := o.store.ListProfiles()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	var errs []error
	committed := 0
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		out, err := fn(ctx, p)
		if err != nil {
			o.logger.Warn(name+" failed", zap.String("profile", p), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s %s: %w", name, p, err))
			continue
		}
		if out.Action == update.ActionCommit {
			committed++
		}
	}
	o.logger.Info(name+" pass done", zap.Int("profiles", len(profiles)), zap.Int("committed", committed))
	return errors.Join(errs...)
}

// #endregion

// #region cycle

// step computes the next snapshot from the active one, nil for a profile
// without history. A no_op decision ends the cycle without a commit.
type step func(prev *state.Snapshot, now time.Time) (update.UpdateResult, error)

type cycleInput struct {
	profileID   string
	trigger     Trigger
	signalsJSON string
	gate        *gate.GateDecision
	rec         logging.CycleRecord
}

func (o *Orchestrator) input(profileID string, trigger Trigger, batch []signals.Signal) cycleInput {
	in := cycleInput{
		profileID: profileID,
		trigger:   trigger,
		rec:       logging.CycleRecord{CycleID: uuid.New().String(), ProfileID: profileID},
	}
	kinds := make([]string, 0, len(batch))
	for _, s := range batch {
		if s == nil {
			kinds = append(kinds, "")
			continue
		}
		kinds = append(kinds, string(s.Kind()))
	}
	in.rec.SignalKinds = kinds
	if len(batch) > 0 {
		if b, err := signals.MarshalBatch(nonNil(batch)); err == nil {
			in.signalsJSON = string(b)
		}
	}
	return in
}

func (o *Orchestrator) cycle(ctx context.Context, in cycleInput, fn step) (Outcome, error) {
	if in.profileID == "" {
		return Outcome{}, errors.New("orchestrator: empty profile id")
	}
	unlock := o.locks.lock(in.profileID)
	defer unlock()

	out := Outcome{ProfileID: in.profileID, Gate: in.gate}
	log := o.logger.With(zap.String("profile", in.profileID), zap.String("trigger", string(in.trigger)))

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Attempts = attempt
		now := o.now()
		in.rec.At, in.rec.Attempts = now, attempt

		// 1. Load
		var prev *state.Snapshot
		var parentID string
		cur, err := o.store.GetCurrent(in.profileID)
		switch {
		case err == nil:
			prev, parentID = &cur.Snapshot, cur.VersionID
			out.Snapshot = cur.Snapshot
		case errors.Is(err, state.ErrNoSnapshot):
		default:
			return out, fmt.Errorf("load %s: %w", in.profileID, err)
		}

		// 2. Gate reject
		if in.gate != nil && in.gate.Action == gate.ActionReject {
			out.Action, out.Reason = update.ActionReject, in.gate.Reason
			log.Info("batch rejected at gate", zap.String("reason", in.gate.Reason))
			o.record(in, "", out)
			return out, nil
		}

		// 3. Compute
		res, err := fn(prev, now)
		if err != nil {
			return out, err
		}
		out.Metrics, in.rec.Metrics = res.Metrics, res.Metrics
		if res.Decision.Action == update.ActionNoOp {
			out.Action, out.Reason = update.ActionNoOp, res.Decision.Reason
			log.Debug("no-op cycle", zap.String("reason", res.Decision.Reason))
			o.record(in, "", out)
			return out, nil
		}

		// 4. Eval
		ev := o.eval.Run(res.Snapshot)
		out.Eval, in.rec.Eval = &ev, &ev
		if !ev.Passed {
			out.Action, out.Reason = update.ActionReject, ev.Reason
			log.Warn("snapshot failed eval", zap.String("reason", ev.Reason))
			o.record(in, "", out)
			return out, nil
		}

		// 5. Commit
		versionID := uuid.New().String()
		metricsJSON, err := json.Marshal(res.Metrics)
		if err != nil {
			return out, fmt.Errorf("marshal metrics: %w", err)
		}
		err = o.store.CommitSnapshot(state.SnapshotRecord{
			VersionID:   versionID,
			ParentID:    parentID,
			ProfileID:   in.profileID,
			Snapshot:    res.Snapshot,
			CreatedAt:   now,
			MetricsJSON: string(metricsJSON),
		})
		if err != nil {
			if shouldRetry(err, attempt) {
				log.Info("stale parent, recomputing", zap.Int("attempt", attempt))
				continue
			}
			return out, fmt.Errorf("commit %s: %w", in.profileID, err)
		}

		out.VersionID, out.Snapshot = versionID, res.Snapshot
		out.Action, out.Reason = update.ActionCommit, res.Decision.Reason
		log.Info("snapshot committed",
			zap.String("version", versionID),
			zap.Int("applied", res.Metrics.SignalsApplied),
			zap.Int("exp", res.Metrics.ExpAwarded),
			zap.Int("level", res.Snapshot.Exp.Level),
			zap.Float64("balance", res.Metrics.Balance),
		)
		o.record(in, versionID, out)
		return out, nil
	}
}

func (o *Orchestrator) record(in cycleInput, versionID string, out Outcome) {
	if o.db == nil {
		return
	}
	entry := logging.ProvenanceEntry{
		ProfileID:   in.profileID,
		VersionID:   versionID,
		TriggerType: string(in.trigger),
		SignalsJSON: in.signalsJSON,
		Decision:    out.Action,
		Reason:      out.Reason,
	}
	if err := logging.LogCycle(o.db, entry, in.rec); err != nil {
		o.logger.Warn("provenance write failed", zap.String("profile", in.profileID), zap.Error(err))
	}
}

// #endregion

// #region helpers

func noOp(reason string) update.UpdateResult {
	return update.UpdateResult{Decision: update.Decision{Action: update.ActionNoOp, Reason: reason}}
}

// changed reports whether a recompute moved anything a reader would see.
func changed(prev, next state.Snapshot) bool {
	if !prev.Stats.Equal(next.Stats) {
		return true
	}
	if len(prev.Suggestions) != len(next.Suggestions) {
		return true
	}
	for i := range prev.Suggestions {
		if prev.Suggestions[i].Title != next.Suggestions[i].Title {
			return true
		}
	}
	return false
}

func nonNil(batch []signals.Signal) []signals.Signal {
	out := make([]signals.Signal, 0, len(batch))
	for _, s := range batch {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// #endregion
