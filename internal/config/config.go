// Package config provides Viper-based configuration loading for the power simulator.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/powerbar/internal/game/power"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output is a file path, or "stderr"/"stdout". Empty means stderr.
	Output string `mapstructure:"output"`
}

// SimulationConfig holds tick loop settings.
type SimulationConfig struct {
	// TickInterval is the wall-clock period between ticks; it is also the dt
	// handed to the engine.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// Workers bounds how many entities are ticked concurrently.
	Workers int `mapstructure:"workers"`
}

// Dt returns TickInterval in seconds.
func (s SimulationConfig) Dt() float32 {
	return float32(s.TickInterval.Seconds())
}

// ContentConfig locates the YAML and Lua content.
type ContentConfig struct {
	TemplatesDir string `mapstructure:"templates_dir"`
	LimitsDir    string `mapstructure:"limits_dir"`
	// BonusScript is an optional Lua file defining bonus(level). Empty uses Curve.
	BonusScript string `mapstructure:"bonus_script"`
	// InstructionLimit caps Lua opcodes per bonus call; 0 uses the scripting default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// TraceConfig holds the optional CSV trace destination.
type TraceConfig struct {
	Path string `mapstructure:"path"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig          `mapstructure:"logging"`
	Simulation SimulationConfig       `mapstructure:"simulation"`
	Content    ContentConfig          `mapstructure:"content"`
	Curve      power.DiminishingCurve `mapstructure:"curve"`
	Trace      TraceConfig            `mapstructure:"trace"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSimulation(c.Simulation); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Curve.Validate(); err != nil {
		errs = append(errs, "curve: "+err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("simulation.tick_interval must be > 0, got %s", s.TickInterval))
	}
	if s.Workers < 1 {
		errs = append(errs, fmt.Sprintf("simulation.workers must be >= 1, got %d", s.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.TemplatesDir == "" {
		errs = append(errs, "content.templates_dir must not be empty")
	}
	if c.LimitsDir == "" {
		errs = append(errs, "content.limits_dir must not be empty")
	}
	if c.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("content.instruction_limit must be >= 0, got %d", c.InstructionLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with POWER_ prefix
	v.SetEnvPrefix("POWER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("simulation.tick_interval", "100ms")
	v.SetDefault("simulation.workers", 4)

	v.SetDefault("content.templates_dir", "content/power/templates")
	v.SetDefault("content.limits_dir", "content/power/limits")
	v.SetDefault("content.bonus_script", "")
	v.SetDefault("content.instruction_limit", 0)

	curve := power.DefaultBonusCurve()
	v.SetDefault("curve.base", curve.Base)
	v.SetDefault("curve.falloff", curve.Falloff)

	v.SetDefault("trace.path", "")
}
