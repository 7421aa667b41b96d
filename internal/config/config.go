package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the complete foreman configuration.
type Config struct {
	Slots    SlotConfig     `mapstructure:"slots"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Loop     LoopConfig     `mapstructure:"loop"`
	Checks   ChecksConfig   `mapstructure:"checks"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SlotConfig controls the execution slot pool.
type SlotConfig struct {
	// PoolSize is the number of execution slots (default: 3)
	PoolSize int `mapstructure:"pool_size"`
}

// PipelineConfig controls the stage managers.
type PipelineConfig struct {
	// TickIntervalMs is how often each stage manager scans its queue (in milliseconds)
	TickIntervalMs int `mapstructure:"tick_interval_ms"`
}

// LoopConfig controls the per-task iteration loop.
type LoopConfig struct {
	// MaxIterations is the iteration budget per task (default: 10)
	MaxIterations int `mapstructure:"max_iterations"`
	// AbortOnWorkerFailure ends the loop as failed on worker execution failure
	AbortOnWorkerFailure bool `mapstructure:"abort_on_worker_failure"`
	// OutputLimitBytes bounds captured check output (default: 4096)
	OutputLimitBytes int `mapstructure:"output_limit_bytes"`
	// HistoryWindow is how many prior-iteration summaries feed the prompt (default: 3)
	HistoryWindow int `mapstructure:"history_window"`
}

// ChecksConfig controls which verification categories run and how.
type ChecksConfig struct {
	// RunBuild enables the build check
	RunBuild bool `mapstructure:"run_build"`
	// RunLint enables the lint check
	RunLint bool `mapstructure:"run_lint"`
	// RunTests enables the test check
	RunTests bool `mapstructure:"run_tests"`
	// ContinueOnLintFailure makes a failing lint non-blocking for loop exit
	ContinueOnLintFailure bool `mapstructure:"continue_on_lint_failure"`

	// BuildCommand, LintCommand, TestCommand are the argv vectors behind
	// each category.
	BuildCommand []string `mapstructure:"build_command"`
	LintCommand  []string `mapstructure:"lint_command"`
	TestCommand  []string `mapstructure:"test_command"`
}

// WorkerConfig controls the external worker command.
type WorkerConfig struct {
	// Command is the argv vector run once per iteration, with the prompt
	// on stdin. A non-zero exit reports the attempt as unsuccessful.
	Command []string `mapstructure:"command"`
	// Dir is the working directory for the worker and checks; empty means
	// the current directory.
	Dir string `mapstructure:"dir"`
}

// StoreConfig controls graph persistence.
type StoreConfig struct {
	// Dir is the state directory for graph snapshots (default: ".foreman")
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is where the log file is written; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// TickInterval returns the stage tick interval as a time.Duration.
func (p *PipelineConfig) TickInterval() time.Duration {
	return time.Duration(p.TickIntervalMs) * time.Millisecond
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Slots: SlotConfig{
			PoolSize: 3,
		},
		Pipeline: PipelineConfig{
			TickIntervalMs: 500,
		},
		Loop: LoopConfig{
			MaxIterations:        10,
			AbortOnWorkerFailure: false,
			OutputLimitBytes:     4096,
			HistoryWindow:        3,
		},
		Checks: ChecksConfig{
			RunBuild:              true,
			RunLint:               false,
			RunTests:              true,
			ContinueOnLintFailure: false,
			BuildCommand:          []string{"go", "build", "./..."},
			LintCommand:           []string{"golangci-lint", "run"},
			TestCommand:           []string{"go", "test", "./..."},
		},
		Worker: WorkerConfig{
			Command: nil,
			Dir:     "",
		},
		Store: StoreConfig{
			Dir: ".foreman",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("slots.pool_size", defaults.Slots.PoolSize)

	viper.SetDefault("pipeline.tick_interval_ms", defaults.Pipeline.TickIntervalMs)

	viper.SetDefault("loop.max_iterations", defaults.Loop.MaxIterations)
	viper.SetDefault("loop.abort_on_worker_failure", defaults.Loop.AbortOnWorkerFailure)
	viper.SetDefault("loop.output_limit_bytes", defaults.Loop.OutputLimitBytes)
	viper.SetDefault("loop.history_window", defaults.Loop.HistoryWindow)

	viper.SetDefault("checks.run_build", defaults.Checks.RunBuild)
	viper.SetDefault("checks.run_lint", defaults.Checks.RunLint)
	viper.SetDefault("checks.run_tests", defaults.Checks.RunTests)
	viper.SetDefault("checks.continue_on_lint_failure", defaults.Checks.ContinueOnLintFailure)
	viper.SetDefault("checks.build_command", defaults.Checks.BuildCommand)
	viper.SetDefault("checks.lint_command", defaults.Checks.LintCommand)
	viper.SetDefault("checks.test_command", defaults.Checks.TestCommand)

	viper.SetDefault("worker.command", defaults.Worker.Command)
	viper.SetDefault("worker.dir", defaults.Worker.Dir)

	viper.SetDefault("store.dir", defaults.Store.Dir)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load unmarshals the viper-managed configuration and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}
