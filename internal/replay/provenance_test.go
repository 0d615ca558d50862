package replay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/orchestrator"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
)

// record runs four ingests for "ana" through a real orchestrator:
// commit, gate reject, no-op, partial commit.
func record(t *testing.T) *state.Store {
	t.Helper()
	store, err := state.NewStore(filepath.Join(t.TempDir(), "hud.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	now := day.Add(8 * time.Hour)
	o, err := orchestrator.New(store, orchestrator.DefaultConfig(),
		orchestrator.WithProvenance(store.DB()),
		orchestrator.WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	batches := [][]signals.Signal{
		{signals.Sleep{At: now.Add(-time.Hour), Duration: 7 * time.Hour, Quality: 0.8}},
		{signals.Activity{At: now.Add(time.Hour - time.Minute), Steps: -10}},
		nil,
		{
			signals.Focus{At: now.Add(2*time.Hour + 50*time.Minute), Duration: 50 * time.Minute, UserInitiated: true},
			signals.ScreenUsage{At: now.Add(5 * time.Hour), Duration: time.Hour},
		},
	}
	for _, b := range batches {
		if _, err := o.Ingest(context.Background(), "ana", b); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		now = now.Add(time.Hour)
	}
	return store
}

func TestLoadRecorded_ReplaysToSameActions(t *testing.T) {
	store := record(t)

	recorded, err := LoadRecorded(store.DB(), "ana", 0)
	if err != nil {
		t.Fatalf("LoadRecorded: %v", err)
	}
	want := []string{"commit", "gate_reject", "no_op", "commit"}
	if len(recorded) != len(want) {
		t.Fatalf("expected %d cycles, got %d", len(want), len(recorded))
	}
	for i, r := range recorded {
		if got := r.ExpectedAction(); got != want[i] {
			t.Errorf("cycle %d: expected %s, got %s (%s)", i, want[i], got, r.Reason)
		}
	}
	if recorded[2].Raw != nil || len(recorded[2].Cycle.Signals) != 0 {
		t.Errorf("empty batch should carry no signals, got %s", recorded[2].Raw)
	}

	results, err := Replay(nil, Cycles(recorded), DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for i, r := range results {
		if r.Action != want[i] {
			t.Errorf("replayed cycle %d: expected %s, got %s (%s)", i, want[i], r.Action, r.Reason)
		}
	}

	cur, err := store.GetCurrent("ana")
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	final := results[len(results)-1].Snapshot
	if final.Exp != cur.Snapshot.Exp || len(final.Timeline) != len(cur.Snapshot.Timeline) {
		t.Errorf("replay diverged from store: %+v vs %+v", final.Exp, cur.Snapshot.Exp)
	}
	if !final.Stats.Equal(cur.Snapshot.Stats) {
		t.Error("replayed stats differ from the committed ones")
	}
}

func TestLoadRecorded_Last(t *testing.T) {
	store := record(t)

	recorded, err := LoadRecorded(store.DB(), "ana", 2)
	if err != nil {
		t.Fatalf("LoadRecorded: %v", err)
	}
	if len(recorded) != 2 || recorded[1].ExpectedAction() != "commit" {
		t.Fatalf("expected the last two cycles, got %+v", recorded)
	}

	none, err := LoadRecorded(store.DB(), "bob", 0)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected nothing for an unknown profile, got %d (%v)", len(none), err)
	}
}

func TestToFixture_RoundTrip(t *testing.T) {
	store := record(t)
	recorded, err := LoadRecorded(store.DB(), "ana", 0)
	if err != nil {
		t.Fatalf("LoadRecorded: %v", err)
	}

	f := ToFixture("export", recorded)
	if f.ExpectedResults[1].GateAction != "reject" || f.ExpectedResults[3].GateAction != "partial" {
		t.Fatalf("gate actions not carried: %+v", f.ExpectedResults)
	}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	cycles, err := loaded.ToCycles()
	if err != nil {
		t.Fatalf("ToCycles: %v", err)
	}
	cfg, err := loaded.Config.ToReplayConfig()
	if err != nil {
		t.Fatalf("ToReplayConfig: %v", err)
	}
	results, err := Replay(nil, cycles, cfg)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if msgs := Check(results, loaded.ExpectedResults); len(msgs) != 0 {
		t.Fatalf("exported fixture does not replay cleanly: %v", msgs)
	}
}
