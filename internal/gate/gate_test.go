package gate

import (
	"testing"
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGateCommitOnCleanBatch(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	batch := []signals.Signal{
		signals.Financial{At: now.Add(-time.Hour), Type: signals.Save, Amount: 200},
		signals.Sleep{At: now.Add(-6 * time.Hour), Duration: 7 * time.Hour, Quality: 0.7},
	}

	decision := g.Evaluate(batch, now)

	if decision.Action != ActionCommit {
		t.Fatalf("expected commit, got %s: %s", decision.Action, decision.Reason)
	}
	if decision.Vetoed {
		t.Fatal("should not be vetoed")
	}
	if len(decision.Accepted) != 2 {
		t.Fatalf("expected 2 accepted, got %d", len(decision.Accepted))
	}
}

func TestGateEmptyBatchCommits(t *testing.T) {
	decision := NewGate(DefaultGateConfig()).Evaluate(nil, now)
	if decision.Action != ActionCommit {
		t.Fatalf("expected commit, got %s", decision.Action)
	}
}

func TestGateRejectOnBatchSize(t *testing.T) {
	g := NewGate(GateConfig{MaxBatchSize: 2, MaxClockSkew: time.Minute})
	batch := []signals.Signal{
		signals.Activity{At: now, Steps: 10},
		signals.Activity{At: now, Steps: 20},
		signals.Activity{At: now, Steps: 30},
	}

	decision := g.Evaluate(batch, now)

	if decision.Action != ActionReject {
		t.Fatalf("expected reject, got %s", decision.Action)
	}
	if len(decision.VetoSignals) != 1 || decision.VetoSignals[0].Type != VetoBatchSize {
		t.Fatalf("expected one batch veto, got %+v", decision.VetoSignals)
	}
	if decision.VetoSignals[0].Index != -1 {
		t.Fatalf("batch veto index should be -1, got %d", decision.VetoSignals[0].Index)
	}
	if len(decision.Accepted) != 0 {
		t.Fatal("rejected batch must not admit signals")
	}
}

func TestGatePartialDropsBadSignals(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	good := signals.Focus{At: now.Add(-time.Minute), Duration: 25 * time.Minute}
	batch := []signals.Signal{
		signals.Activity{At: now, Steps: -100},
		good,
		signals.ScreenUsage{At: now.Add(time.Hour), Duration: time.Hour},
		signals.Financial{At: now.Add(-60 * 24 * time.Hour), Type: signals.Spend, Amount: 5},
		good,
		nil,
	}

	decision := g.Evaluate(batch, now)

	if decision.Action != ActionPartial {
		t.Fatalf("expected partial, got %s: %s", decision.Action, decision.Reason)
	}
	if len(decision.Accepted) != 1 || decision.Accepted[0] != good {
		t.Fatalf("expected only the focus session, got %+v", decision.Accepted)
	}
	want := []struct {
		typ   VetoType
		index int
	}{
		{VetoInvalidSignal, 0},
		{VetoFutureSignal, 2},
		{VetoStaleSignal, 3},
		{VetoDuplicate, 4},
		{VetoInvalidSignal, 5},
	}
	if len(decision.VetoSignals) != len(want) {
		t.Fatalf("expected %d vetoes, got %+v", len(want), decision.VetoSignals)
	}
	for i, w := range want {
		got := decision.VetoSignals[i]
		if got.Type != w.typ || got.Index != w.index {
			t.Errorf("veto %d: expected %s@%d, got %s@%d (%s)", i, w.typ, w.index, got.Type, got.Index, got.Reason)
		}
	}
}

func TestGateRejectWhenNothingSurvives(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	decision := g.Evaluate([]signals.Signal{
		signals.NotificationBurst{At: now, Category: "weather", Count: 1},
	}, now)
	if decision.Action != ActionReject {
		t.Fatalf("expected reject, got %s", decision.Action)
	}
	if !decision.Vetoed {
		t.Fatal("should be vetoed")
	}
}

func TestGateAllowsSkewWithinLimit(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	decision := g.Evaluate([]signals.Signal{
		signals.Sleep{At: now.Add(4 * time.Minute), Duration: 8 * time.Hour, Quality: 0.9},
	}, now)
	if decision.Action != ActionCommit {
		t.Fatalf("expected commit, got %s: %s", decision.Action, decision.Reason)
	}
}

func TestGateZeroAgeMeansUnlimited(t *testing.T) {
	g := NewGate(GateConfig{MaxClockSkew: time.Minute})
	decision := g.Evaluate([]signals.Signal{
		signals.Financial{At: now.AddDate(-5, 0, 0), Type: signals.Invest, Amount: 1},
	}, now)
	if decision.Action != ActionCommit {
		t.Fatalf("expected commit, got %s: %s", decision.Action, decision.Reason)
	}
}

func TestGateDuplicateNeedsEveryFieldToMatch(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	at := now.Add(-10 * time.Minute)
	burst := signals.NotificationBurst{At: at, Category: signals.CategorySocial, Count: 4}
	batch := []signals.Signal{
		burst,
		signals.NotificationBurst{At: at, Category: signals.CategorySocial, Count: 5},
		signals.NotificationBurst{At: at.Add(time.Nanosecond), Category: signals.CategorySocial, Count: 4},
		signals.NotificationBurst{At: at, Category: signals.CategorySocial, Count: 4, QuietHours: true},
		signals.NotificationBurst{At: at.In(time.FixedZone("KST", 9*3600)), Category: signals.CategorySocial, Count: 4},
	}

	decision := g.Evaluate(batch, now)

	if decision.Action != ActionPartial {
		t.Fatalf("expected partial, got %s: %s", decision.Action, decision.Reason)
	}
	if len(decision.Accepted) != 4 {
		t.Fatalf("expected 4 distinct bursts admitted, got %d", len(decision.Accepted))
	}
	if len(decision.VetoSignals) != 1 {
		t.Fatalf("expected one veto, got %+v", decision.VetoSignals)
	}
	if v := decision.VetoSignals[0]; v.Type != VetoDuplicate || v.Index != 4 {
		t.Fatalf("expected duplicate@4 for the same instant in another zone, got %s@%d", v.Type, v.Index)
	}
}
