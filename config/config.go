// Package config loads and validates the simulation configuration from
// YAML or JSON files with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/skyops/aerodrome/core/airport"
	"github.com/skyops/aerodrome/core/controller"
	"github.com/skyops/aerodrome/core/lane"
	"github.com/skyops/aerodrome/core/metrics"
	"github.com/skyops/aerodrome/infra/mqtt"
	"github.com/skyops/aerodrome/simulator"
)

// Config is the root configuration.
type Config struct {
	Airport     AirportConfig     `json:"airport"`
	Controllers ControllersConfig `json:"controllers"`
	Lanes       LanesConfig       `json:"lanes"`
	Generator   GeneratorConfig   `json:"generator"`
	Metrics     metrics.Config    `json:"metrics"`
	MQTT        mqtt.Config       `json:"mqtt"`
	Logging     LoggingConfig     `json:"logging"`
}

// AirportConfig configures the coordinator and its background processes.
type AirportConfig struct {
	Name                       string  `json:"name"`
	Lanes                      int     `json:"lanes"`
	MaintenanceIntervalSeconds int     `json:"maintenance_interval_seconds"`
	MaintenanceDurationSeconds int     `json:"maintenance_duration_seconds"`
	WeatherIntervalSeconds     int     `json:"weather_interval_seconds"`
	WeatherChance              float64 `json:"weather_chance"`
	WeatherDurationSeconds     int     `json:"weather_duration_seconds"`
	EmergencyDurationSeconds   int     `json:"emergency_duration_seconds"`
	FollowUpMinSeconds         int     `json:"follow_up_min_seconds"`
	FollowUpMaxSeconds         int     `json:"follow_up_max_seconds"`
}

// Core converts to the airport package configuration.
func (c AirportConfig) Core(timings lane.Timings) airport.Config {
	return airport.Config{
		Name:                c.Name,
		Lanes:               c.Lanes,
		LaneTimings:         timings,
		MaintenanceInterval: seconds(c.MaintenanceIntervalSeconds),
		MaintenanceDuration: seconds(c.MaintenanceDurationSeconds),
		WeatherInterval:     seconds(c.WeatherIntervalSeconds),
		WeatherChance:       c.WeatherChance,
		WeatherDuration:     seconds(c.WeatherDurationSeconds),
		EmergencyDuration:   seconds(c.EmergencyDurationSeconds),
		FollowUpMin:         seconds(c.FollowUpMinSeconds),
		FollowUpMax:         seconds(c.FollowUpMaxSeconds),
	}
}

// ControllersConfig configures the controller pool.
type ControllersConfig struct {
	Count                int     `json:"count"`
	MaxConcurrent        int     `json:"max_concurrent"`
	MaxAttempts          int     `json:"max_attempts"`
	RetryBackoffSeconds  int     `json:"retry_backoff_seconds"`
	MaxRequeues          int     `json:"max_requeues"`
	BreakChance          float64 `json:"break_chance"`
	BreakMinSeconds      int     `json:"break_min_seconds"`
	BreakMaxSeconds      int     `json:"break_max_seconds"`
	EmergencyHoldSeconds int     `json:"emergency_hold_seconds"`
	PollIntervalMS       int     `json:"poll_interval_ms"`
}

// Core converts to the controller package configuration.
func (c ControllersConfig) Core() controller.Config {
	return controller.Config{
		MaxConcurrent: c.MaxConcurrent,
		MaxAttempts:   c.MaxAttempts,
		RetryBackoff:  seconds(c.RetryBackoffSeconds),
		MaxRequeues:   c.MaxRequeues,
		BreakChance:   c.BreakChance,
		BreakMin:      seconds(c.BreakMinSeconds),
		BreakMax:      seconds(c.BreakMaxSeconds),
		EmergencyHold: seconds(c.EmergencyHoldSeconds),
		PollInterval:  millis(c.PollIntervalMS),
	}
}

// LanesConfig configures the simulated lane operation durations.
type LanesConfig struct {
	LandingMS  int `json:"landing_ms"`
	TakeoffMS  int `json:"takeoff_ms"`
	CooldownMS int `json:"cooldown_ms"`
	JitterMS   int `json:"jitter_ms"`
}

// Timings converts to lane timings; zero values fall back to the lane
// package defaults.
func (c LanesConfig) Timings() lane.Timings {
	t := lane.DefaultTimings()
	if c.LandingMS > 0 {
		t.LandingBase = millis(c.LandingMS)
	}
	if c.TakeoffMS > 0 {
		t.TakeoffBase = millis(c.TakeoffMS)
	}
	if c.CooldownMS > 0 {
		t.CooldownBase = millis(c.CooldownMS)
	}
	if c.JitterMS > 0 {
		t.Jitter = millis(c.JitterMS)
	}
	return t
}

// GeneratorConfig configures random traffic generation.
type GeneratorConfig struct {
	Enabled                         bool    `json:"enabled"`
	SpawnIntervalSeconds            int     `json:"spawn_interval_seconds"`
	MeanSpawn                       float64 `json:"mean_spawn"`
	MaxSpawn                        int     `json:"max_spawn"`
	EmergencyChance                 float64 `json:"emergency_chance"`
	AirportEmergencyIntervalSeconds int     `json:"airport_emergency_interval_seconds"`
	AirportEmergencyChance          float64 `json:"airport_emergency_chance"`
}

// Core converts to the simulator package configuration.
func (c GeneratorConfig) Core() simulator.Config {
	return simulator.Config{
		Enabled:                  c.Enabled,
		SpawnInterval:            seconds(c.SpawnIntervalSeconds),
		MeanSpawn:                c.MeanSpawn,
		MaxSpawn:                 c.MaxSpawn,
		EmergencyChance:          c.EmergencyChance,
		AirportEmergencyInterval: seconds(c.AirportEmergencyIntervalSeconds),
		AirportEmergencyChance:   c.AirportEmergencyChance,
	}
}

// Load reads the configuration file and applies environment overrides with
// the AERO_ prefix.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("AERO_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "aero_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Metrics.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the simulation cannot start with.
func (c Config) Validate() error {
	if c.Airport.Lanes < 1 {
		return fmt.Errorf("airport.lanes must be at least 1, got %d", c.Airport.Lanes)
	}
	if c.Controllers.Count < 1 {
		return fmt.Errorf("controllers.count must be at least 1, got %d", c.Controllers.Count)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func millis(n int) time.Duration  { return time.Duration(n) * time.Millisecond }
