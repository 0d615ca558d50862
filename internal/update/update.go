package update

import (
	"fmt"
	"sort"
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/balance"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/progress"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/scoring"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
)

const (
	defaultBase        = 55.0
	defaultBalanceBase = 60.0
)

// #region engine
// Engine turns a previous snapshot plus a signal batch into the next
// snapshot. It holds only its configuration and is safe for concurrent use;
// callers serialize updates to the same snapshot lineage.
type Engine struct {
	config  UpdateConfig
	balance balance.Calculator
}

// NewEngine validates config and builds an engine.
func NewEngine(config UpdateConfig) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("update config: %w", err)
	}
	cfg := config
	cfg.ExtendedStats = append([]stat.Kind(nil), config.ExtendedStats...)
	return &Engine{
		config:  cfg,
		balance: balance.Calculator{Sensitivity: cfg.BalanceSensitivity},
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() UpdateConfig {
	cfg := e.config
	cfg.ExtendedStats = append([]stat.Kind(nil), e.config.ExtendedStats...)
	return cfg
}
// #endregion engine

// #region options
// Option adjusts a single Update call.
type Option func(*options)

type options struct {
	quests      []state.Quest
	questsSet   bool
	suggestions []state.Suggestion
	alpha       float64
	alphaSet    bool
}

// WithActiveQuests replaces the quest list carried over from the previous
// snapshot.
func WithActiveQuests(quests []state.Quest) Option {
	return func(o *options) {
		o.quests = quests
		o.questsSet = true
	}
}

// WithSuggestions publishes the given suggestions instead of the generated
// ones. An empty list falls back to generation.
func WithSuggestions(suggestions []state.Suggestion) Option {
	return func(o *options) { o.suggestions = suggestions }
}

// WithSmoothingFactor overrides α for this call. Values outside [0,1] are
// ignored.
func WithSmoothingFactor(alpha float64) Option {
	return func(o *options) {
		if alpha >= 0 && alpha <= 1 {
			o.alpha = alpha
			o.alphaSet = true
		}
	}
}
// #endregion options

// #region compute-snapshot
// ComputeSnapshot is Update without the decision and metrics.
func (e *Engine) ComputeSnapshot(previous *state.Snapshot, batch []signals.Signal, now time.Time, opts ...Option) state.Snapshot {
	return e.Update(previous, batch, now, opts...).Snapshot
}
// #endregion compute-snapshot

// #region update-function
// Update applies a batch of signals to the previous snapshot (nil for a new
// profile) and returns the next snapshot. It never fails: nil signals and
// signals aimed at untracked stats are skipped and counted.
//
// Signals are applied in timestamp order; ties keep their batch order. Each
// delta nudges its stat through the EWMA rule, and every signal that moved at
// least one stat adds a timeline event and earns experience. Balance is then
// recomputed from the other core stats at now and replaces its base score.
func (e *Engine) Update(previous *state.Snapshot, batch []signals.Signal, now time.Time, opts ...Option) UpdateResult {
	start := time.Now()

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	alpha := e.config.SmoothingFactor
	if o.alphaSet {
		alpha = o.alpha
	}

	sheet := e.startingSheet(previous, alpha)
	exp := progress.Initial()
	var prevTimeline []state.TimelineEvent
	var quests []state.Quest
	if previous != nil {
		exp = previous.Exp
		prevTimeline = previous.Timeline
		quests = previous.ActiveQuests
	}
	if o.questsSet {
		quests = o.quests
	}
	levelBefore := exp.Level

	ordered := make([]signals.Signal, 0, len(batch))
	for _, s := range batch {
		if s != nil {
			ordered = append(ordered, s)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp().Before(ordered[j].Timestamp())
	})

	metrics := Metrics{
		SignalsReceived: len(batch),
		SignalsSkipped:  len(batch) - len(ordered),
	}
	touched := make(map[stat.Kind]bool)
	var events []state.TimelineEvent

	for _, sig := range ordered {
		deltas := scoring.Score(sheet, sig)
		if len(deltas) == 0 {
			metrics.SignalsSkipped++
			continue
		}
		for _, d := range deltas {
			st, _ := sheet.Get(d.Stat)
			sheet.Set(st.WithUpdatedBase(st.BaseScore + d.Value))
			touched[d.Stat] = true
		}
		events = append(events, state.TimelineEvent{
			Timestamp: sig.Timestamp(),
			Message:   describe(sig, deltas),
			Deltas:    deltaMap(deltas),
		})
		reward := progress.Reward(scoring.Impact(deltas), scoring.CadenceMultiplier(sig.Kind()))
		if reward > 0 {
			exp = exp.Award(reward)
			metrics.ExpAwarded += reward
		}
		metrics.SignalsApplied++
	}

	if st, ok := sheet.Get(stat.Balance); ok {
		st.BaseScore = e.balance.Compute(sheet, now)
		sheet.Set(st)
		metrics.Balance = st.BaseScore
	}

	suggestions := o.suggestions
	if len(suggestions) == 0 {
		suggestions = e.Suggest(sheet, now)
	}

	snap := state.Snapshot{
		GeneratedAt:  now,
		Stats:        sheet,
		Exp:          exp,
		ActiveQuests: cloneQuests(quests),
		Timeline:     e.mergeTimeline(prevTimeline, events),
		Suggestions:  cloneSuggestions(suggestions),
	}

	for _, k := range stat.AllKinds() {
		if touched[k] {
			metrics.StatsTouched = append(metrics.StatsTouched, k.String())
		}
	}
	metrics.LevelsGained = exp.Level - levelBefore
	metrics.UpdateTimeMs = time.Since(start).Milliseconds()

	decision := Decision{Action: ActionNoOp, Reason: "no signal moved a stat"}
	if metrics.SignalsApplied > 0 {
		decision = Decision{
			Action: ActionCommit,
			Reason: fmt.Sprintf("applied %d of %d signals, stats touched: %v, exp +%d",
				metrics.SignalsApplied, metrics.SignalsReceived, metrics.StatsTouched, metrics.ExpAwarded),
		}
	}

	return UpdateResult{
		Snapshot: snap,
		Decision: decision,
		Metrics:  metrics,
	}
}
// #endregion update-function

// #region helpers
// startingSheet copies the previous stats, or seeds defaults for a new
// profile, and stamps alpha on every stat except Balance. Missing core stats
// are reseeded.
func (e *Engine) startingSheet(previous *state.Snapshot, alpha float64) stat.Sheet {
	var sheet stat.Sheet
	if previous != nil {
		sheet = previous.Stats
	} else {
		for _, k := range e.config.ExtendedStats {
			sheet.Set(defaultStat(k, alpha))
		}
	}
	for _, k := range stat.CoreKinds() {
		if !sheet.Has(k) {
			sheet.Set(defaultStat(k, alpha))
		}
	}
	for _, k := range sheet.Kinds() {
		if k == stat.Balance {
			continue
		}
		st, _ := sheet.Get(k)
		st.SmoothingFactor = alpha
		sheet.Set(st)
	}
	return sheet
}

func defaultStat(k stat.Kind, alpha float64) stat.Stat {
	base := defaultBase
	if k == stat.Balance {
		base = defaultBalanceBase
	}
	return stat.Stat{Kind: k, BaseScore: base, SmoothingFactor: alpha}
}

// mergeTimeline appends events and keeps the newest TimelineLimit entries.
// The result never aliases the previous slice.
func (e *Engine) mergeTimeline(prev, events []state.TimelineEvent) []state.TimelineEvent {
	all := make([]state.TimelineEvent, 0, len(prev)+len(events))
	all = append(all, prev...)
	all = append(all, events...)
	if over := len(all) - e.config.TimelineLimit; over > 0 {
		all = all[over:]
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

func deltaMap(deltas []scoring.Delta) map[stat.Kind]float64 {
	m := make(map[stat.Kind]float64, len(deltas))
	for _, d := range deltas {
		m[d.Stat] += d.Value
	}
	return m
}

func cloneQuests(qs []state.Quest) []state.Quest {
	if len(qs) == 0 {
		return nil
	}
	out := make([]state.Quest, len(qs))
	for i, q := range qs {
		q.RewardModifiers = append([]stat.Modifier(nil), q.RewardModifiers...)
		out[i] = q
	}
	return out
}

func cloneSuggestions(ss []state.Suggestion) []state.Suggestion {
	if len(ss) == 0 {
		return nil
	}
	out := make([]state.Suggestion, len(ss))
	for i, s := range ss {
		s.Options = append([]string(nil), s.Options...)
		out[i] = s
	}
	return out
}
// #endregion helpers
