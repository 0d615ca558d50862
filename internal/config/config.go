package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/eval"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/gate"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/orchestrator"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/update"
)

// CronParser accepts the six-field specs (seconds first) the scheduler runs.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds all controller configuration.
type Config struct {
	Engine struct {
		SmoothingFactor    float64  `yaml:"smoothing_factor" env:"HUD_SMOOTHING_FACTOR"`
		BalanceSensitivity float64  `yaml:"balance_sensitivity" env:"HUD_BALANCE_SENSITIVITY"`
		TimelineLimit      int      `yaml:"timeline_limit" env:"HUD_TIMELINE_LIMIT"`
		ExtendedStats      []string `yaml:"extended_stats" env:"HUD_EXTENDED_STATS"`
		CognitionCutoff    float64  `yaml:"cognition_cutoff" env:"HUD_COGNITION_CUTOFF"`
		VitalCutoff        float64  `yaml:"vital_cutoff" env:"HUD_VITAL_CUTOFF"`
		WealthCutoff       float64  `yaml:"wealth_cutoff" env:"HUD_WEALTH_CUTOFF"`
	} `yaml:"engine"`
	Gate struct {
		MaxBatchSize int           `yaml:"max_batch_size" env:"HUD_GATE_MAX_BATCH_SIZE"`
		MaxClockSkew time.Duration `yaml:"max_clock_skew" env:"HUD_GATE_MAX_CLOCK_SKEW"`
		MaxSignalAge time.Duration `yaml:"max_signal_age" env:"HUD_GATE_MAX_SIGNAL_AGE"`
	} `yaml:"gate"`
	Eval struct {
		TimelineLimit    int     `yaml:"timeline_limit" env:"HUD_EVAL_TIMELINE_LIMIT"`
		BalanceTolerance float64 `yaml:"balance_tolerance" env:"HUD_EVAL_BALANCE_TOLERANCE"`
	} `yaml:"eval"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" env:"HUD_SQLITE_PATH"`
	} `yaml:"database"`
	Server struct {
		GRPCAddr string `yaml:"grpc_addr" env:"HUD_GRPC_ADDR"`
	} `yaml:"server"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron" env:"HUD_REFRESH_CRON"`
		PruneCron   string `yaml:"prune_cron" env:"HUD_PRUNE_CRON"`
	} `yaml:"schedule"`
	Log struct {
		Level       string `yaml:"level" env:"HUD_LOG_LEVEL"`
		Development bool   `yaml:"development" env:"HUD_LOG_DEVELOPMENT"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides, then fills defaults for anything still unset. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Environment variable overrides
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Default returns the configuration Load produces with no file and no
// environment.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	du := update.DefaultUpdateConfig()
	if c.Engine.SmoothingFactor == 0 {
		c.Engine.SmoothingFactor = du.SmoothingFactor
	}
	if c.Engine.BalanceSensitivity == 0 {
		c.Engine.BalanceSensitivity = du.BalanceSensitivity
	}
	if c.Engine.TimelineLimit == 0 {
		c.Engine.TimelineLimit = du.TimelineLimit
	}
	if c.Engine.ExtendedStats == nil {
		for _, k := range du.ExtendedStats {
			c.Engine.ExtendedStats = append(c.Engine.ExtendedStats, k.String())
		}
	}
	if c.Engine.CognitionCutoff == 0 {
		c.Engine.CognitionCutoff = du.CognitionCutoff
	}
	if c.Engine.VitalCutoff == 0 {
		c.Engine.VitalCutoff = du.VitalCutoff
	}
	if c.Engine.WealthCutoff == 0 {
		c.Engine.WealthCutoff = du.WealthCutoff
	}

	dg := gate.DefaultGateConfig()
	if c.Gate.MaxBatchSize == 0 {
		c.Gate.MaxBatchSize = dg.MaxBatchSize
	}
	if c.Gate.MaxClockSkew == 0 {
		c.Gate.MaxClockSkew = dg.MaxClockSkew
	}
	if c.Gate.MaxSignalAge == 0 {
		c.Gate.MaxSignalAge = dg.MaxSignalAge
	}

	de := eval.DefaultEvalConfig()
	if c.Eval.TimelineLimit == 0 {
		c.Eval.TimelineLimit = c.Engine.TimelineLimit
	}
	if c.Eval.BalanceTolerance == 0 {
		c.Eval.BalanceTolerance = de.BalanceTolerance
	}

	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/hud.db"
	}
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = ":50151"
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 */15 * * * *"
	}
	if c.Schedule.PruneCron == "" {
		c.Schedule.PruneCron = "0 30 3 * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks every field and reports the first problem.
func (c *Config) Validate() error {
	oc, err := c.Orchestrator()
	if err != nil {
		return err
	}
	if err := oc.Update.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.Gate.MaxBatchSize < 0 {
		return fmt.Errorf("gate.max_batch_size must not be negative")
	}
	if c.Gate.MaxClockSkew < 0 || c.Gate.MaxSignalAge < 0 {
		return fmt.Errorf("gate durations must not be negative")
	}
	if c.Eval.TimelineLimit < c.Engine.TimelineLimit {
		return fmt.Errorf("eval.timeline_limit %d is below engine.timeline_limit %d", c.Eval.TimelineLimit, c.Engine.TimelineLimit)
	}
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	if c.Server.GRPCAddr == "" {
		return fmt.Errorf("server.grpc_addr is required")
	}
	if _, err := CronParser.Parse(c.Schedule.RefreshCron); err != nil {
		return fmt.Errorf("schedule.refresh_cron: %w", err)
	}
	if _, err := CronParser.Parse(c.Schedule.PruneCron); err != nil {
		return fmt.Errorf("schedule.prune_cron: %w", err)
	}
	return nil
}

// Orchestrator converts the engine, gate and eval sections.
func (c *Config) Orchestrator() (orchestrator.Config, error) {
	kinds := make([]stat.Kind, 0, len(c.Engine.ExtendedStats))
	for _, name := range c.Engine.ExtendedStats {
		k, err := stat.ParseKind(name)
		if err != nil {
			return orchestrator.Config{}, fmt.Errorf("engine.extended_stats: %w", err)
		}
		if k.IsCore() {
			return orchestrator.Config{}, fmt.Errorf("engine.extended_stats: %s is a core stat", name)
		}
		kinds = append(kinds, k)
	}
	return orchestrator.Config{
		Update: update.UpdateConfig{
			SmoothingFactor:    c.Engine.SmoothingFactor,
			BalanceSensitivity: c.Engine.BalanceSensitivity,
			TimelineLimit:      c.Engine.TimelineLimit,
			ExtendedStats:      kinds,
			CognitionCutoff:    c.Engine.CognitionCutoff,
			VitalCutoff:        c.Engine.VitalCutoff,
			WealthCutoff:       c.Engine.WealthCutoff,
		},
		Gate: gate.GateConfig{
			MaxBatchSize: c.Gate.MaxBatchSize,
			MaxClockSkew: c.Gate.MaxClockSkew,
			MaxSignalAge: c.Gate.MaxSignalAge,
		},
		Eval: eval.EvalConfig{
			TimelineLimit:      c.Eval.TimelineLimit,
			BalanceSensitivity: c.Engine.BalanceSensitivity,
			BalanceTolerance:   c.Eval.BalanceTolerance,
		},
	}, nil
}
