package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/config"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/replay"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the snapshot database")
	profile := flag.String("profile", "", "profile whose ingest history to export")
	last := flag.Int("last", 0, "export only the N most recent ingest cycles (0 = all)")
	configPath := flag.String("config", "", "controller config whose engine, gate and eval settings go into the fixture")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *profile == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/hud.db --profile id --out path/to/fixture.json [--last N] [--config hud.yaml]")
		os.Exit(2)
	}

	if err := run(*dbPath, *profile, *last, *configPath, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, profileID string, last int, configPath, outPath string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	recorded, err := replay.LoadRecorded(store.DB(), profileID, last)
	if err != nil {
		return err
	}
	if len(recorded) == 0 {
		return fmt.Errorf("no ingest cycles recorded for %s", profileID)
	}
	fmt.Printf("Found %d ingest cycles\n", len(recorded))

	fixture := replay.ToFixture(
		fmt.Sprintf("Session export: %d ingest cycles of %s", len(recorded), profileID), recorded)
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fixture.Config = fixtureConfig(cfg)
	}
	return writeFixture(fixture, outPath)
}

// #endregion extract

// #region output

func fixtureConfig(cfg *config.Config) replay.FixtureConfig {
	return replay.FixtureConfig{
		UpdateConfig: &replay.FixtureUpdateConfig{
			SmoothingFactor:    cfg.Engine.SmoothingFactor,
			BalanceSensitivity: cfg.Engine.BalanceSensitivity,
			TimelineLimit:      cfg.Engine.TimelineLimit,
			ExtendedStats:      cfg.Engine.ExtendedStats,
		},
		GateConfig: &replay.FixtureGateConfig{
			MaxBatchSize: cfg.Gate.MaxBatchSize,
			MaxClockSkew: cfg.Gate.MaxClockSkew.String(),
			MaxSignalAge: cfg.Gate.MaxSignalAge.String(),
		},
		EvalConfig: &replay.FixtureEvalConfig{
			TimelineLimit:    cfg.Eval.TimelineLimit,
			BalanceTolerance: cfg.Eval.BalanceTolerance,
		},
	}
}

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote fixture to %s (%d bytes, %d cycles)\n", outPath, len(data), len(fixture.Cycles))
	return nil
}

// #endregion output
