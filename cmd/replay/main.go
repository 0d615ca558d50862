package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/replay"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the snapshot database (DB mode)")
	profile := flag.String("profile", "", "profile to replay (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	dbMode := *dbPath != "" && *profile != ""
	if dbMode == (*fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/hud.db --profile id")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *profile)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-extract

func runDBMode(dbPath, profileID string) int {
	store, err := state.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	recorded, err := replay.LoadRecorded(store.DB(), profileID, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	if len(recorded) == 0 {
		fmt.Fprintf(os.Stderr, "no ingest entries for %s in provenance_log\n", profileID)
		return 2
	}

	expected := make([]string, len(recorded))
	for i, r := range recorded {
		expected[i] = r.ExpectedAction()
	}

	// History starts from a fresh profile; non-ingest cycles are not replayed.
	results, err := replay.Replay(nil, replay.Cycles(recorded), replay.DefaultReplayConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(results, expected)
}

// #endregion db-extract

// #region output

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	config, err := f.Config.ToReplayConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixture config: %v\n", err)
		return 2
	}
	cycles, err := f.ToCycles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixture cycles: %v\n", err)
		return 2
	}

	results, err := replay.Replay(nil, cycles, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	expected := make([]string, len(f.ExpectedResults))
	for i, e := range f.ExpectedResults {
		expected[i] = e.Action
	}
	code := printComparison(results, expected)

	for _, msg := range replay.Check(results, f.ExpectedResults) {
		fmt.Println("  " + msg)
		code = 1
	}
	return code
}

// printComparison outputs a comparison table and returns the exit code.
func printComparison(results []replay.ReplayResult, expected []string) int {
	fmt.Printf("%-12s| %-15s| %-15s| %-6s| %s\n", "Cycle", "Expected", "Replayed", "Match", "Level/Exp")
	fmt.Printf("%-12s+%-15s+%-15s+%-6s+%s\n",
		"------------", "----------------", "----------------", "-------", "----------")

	matches := 0
	total := min(len(results), len(expected))

	for i := 0; i < total; i++ {
		got := results[i]
		match := "DIFF"
		if actionsMatch(expected[i], got.Action) {
			match = "OK"
			matches++
		}
		fmt.Printf("%-12s| %-15s| %-15s| %-6s| %d/%d\n",
			got.CycleID, expected[i], got.Action, match, got.Snapshot.Exp.Level, got.Snapshot.Exp.CurrentExp)
	}

	s := replay.Summarize(results)
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", total, matches, total-matches)
	fmt.Printf("Replayed: %d commits (%d partial), %d gate rejects, %d eval rollbacks, %d no-ops\n",
		s.Commits, s.Partials, s.GateRejects, s.EvalRollbacks, s.NoOps)

	if matches < total || len(results) != len(expected) {
		return 1
	}
	return 0
}

// actionsMatch compares an expected action with a replayed one. A bare
// "reject" matches either "gate_reject" or "eval_rollback".
func actionsMatch(expected, replayed string) bool {
	if expected == replayed {
		return true
	}
	return expected == "reject" && (replayed == "gate_reject" || replayed == "eval_rollback")
}

// #endregion output
