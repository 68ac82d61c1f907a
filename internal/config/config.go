// Package config loads the YAML configuration shared by every command.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"psykar.com/ekfbot/internal/sensor"
)

// Config contains all simulation settings.
type Config struct {
	// World selects the environment the robot drives in.
	World WorldConfig `yaml:"world"`

	// Robot contains the physical robot and its starting pose.
	Robot RobotConfig `yaml:"robot"`

	// Sensors contains the distance ring and landmark sensor settings.
	Sensors SensorConfig `yaml:"sensors"`

	// Filter contains the estimator's prior and noise models.
	Filter FilterConfig `yaml:"filter"`

	// Sim contains the tick length and measurement noise.
	Sim SimConfig `yaml:"sim"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `yaml:"logging"`

	// Train contains the evolutionary controller training settings.
	Train TrainConfig `yaml:"train"`
}

// WorldConfig selects a map file or the built in arena.
type WorldConfig struct {
	// Map is a YAML map file. Empty means the built in arena.
	Map string `yaml:"map,omitempty"`

	// ArenaX, ArenaY and ArenaSize place the built in arena.
	ArenaX    float64 `yaml:"arena_x"`
	ArenaY    float64 `yaml:"arena_y"`
	ArenaSize float64 `yaml:"arena_size"`

	// Boxes is the number of random square obstacles added to the world.
	Boxes int `yaml:"boxes"`
}

// RobotConfig configures the robot body.
type RobotConfig struct {
	Radius float64 `yaml:"radius"`
	Power  float64 `yaml:"power"`

	StartX float64 `yaml:"start_x"`
	StartY float64 `yaml:"start_y"`
	// StartTheta is in radians from +x, counter-clockwise.
	StartTheta float64 `yaml:"start_theta"`
}

// SensorConfig configures the sensors.
type SensorConfig struct {
	Count         int     `yaml:"count"`
	Length        float64 `yaml:"length"`
	LandmarkRange float64 `yaml:"landmark_range"`

	// BearingConvention is "east" or "north". The filter assumes east, so
	// north is only useful for inspecting raw sensor output.
	BearingConvention string `yaml:"bearing_convention"`
}

// FilterConfig configures the estimator. Matrices are given by their
// diagonals.
type FilterConfig struct {
	InitialCovariance []float64 `yaml:"initial_covariance"`
	ProcessNoise      []float64 `yaml:"process_noise"`
	MeasurementNoise  []float64 `yaml:"measurement_noise"`

	// RecordEllipses keeps the covariance ellipse of every update.
	RecordEllipses bool `yaml:"record_ellipses"`
}

// SimConfig configures the simulation loop.
type SimConfig struct {
	// DT is the fixed tick length in seconds.
	DT float64 `yaml:"dt"`
	// Ticks is the number of ticks a headless run lasts.
	Ticks int `yaml:"ticks"`
	// Seed drives measurement noise and random obstacles.
	Seed uint64 `yaml:"seed"`

	// DistanceNoise and BearingNoise are standard deviations of the
	// Gaussian noise added to landmark measurements.
	DistanceNoise float64 `yaml:"distance_noise"`
	BearingNoise  float64 `yaml:"bearing_noise"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "trace" logs every tick.
	Level string `yaml:"level"`
}

// TrainConfig configures controller evolution.
type TrainConfig struct {
	Population    int     `yaml:"population"`
	Generations   int     `yaml:"generations"`
	Ticks         int     `yaml:"ticks"`
	MutationSigma float64 `yaml:"mutation_sigma"`
	// Workers bounds parallel evaluations. Zero means one per CPU.
	Workers int `yaml:"workers"`
}

// Default returns a Config with the reference robot in the built in arena.
func Default() *Config {
	return &Config{
		World: WorldConfig{
			ArenaX:    400,
			ArenaY:    400,
			ArenaSize: 300,
		},
		Robot: RobotConfig{
			Radius:     20,
			Power:      100,
			StartX:     300,
			StartY:     400,
			StartTheta: 0,
		},
		// east because the filter's measurement model is east-referenced;
		// north would feed it rotated bearings
		Sensors: SensorConfig{
			Count:             12,
			Length:            120,
			LandmarkRange:     200,
			BearingConvention: "east",
		},
		Filter: FilterConfig{
			InitialCovariance: []float64{1, 1, 0.01},
			ProcessNoise:      []float64{0.01, 0.01, 0.0001},
			MeasurementNoise:  []float64{1, 0.001},
		},
		Sim: SimConfig{
			DT:            1.0 / 60,
			Ticks:         1800,
			Seed:          1,
			DistanceNoise: 1,
			BearingNoise:  0.03,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Train: TrainConfig{
			Population:    80,
			Generations:   36,
			Ticks:         900,
			MutationSigma: 1,
		},
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. An empty path only applies the overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Robot.Radius <= 0 {
		return fmt.Errorf("robot radius must be positive, got %v", c.Robot.Radius)
	}
	if c.Robot.Power < 0 {
		return fmt.Errorf("robot power must be non-negative, got %v", c.Robot.Power)
	}
	if c.Sensors.Count < 1 {
		return fmt.Errorf("sensor count must be at least 1, got %d", c.Sensors.Count)
	}
	if c.Sensors.Length <= 0 {
		return fmt.Errorf("sensor length must be positive, got %v", c.Sensors.Length)
	}
	if c.Sensors.LandmarkRange <= 0 {
		return fmt.Errorf("landmark range must be positive, got %v", c.Sensors.LandmarkRange)
	}
	if _, err := sensor.ParseBearingConvention(c.Sensors.BearingConvention); err != nil {
		return err
	}

	if err := checkDiagonal("initial_covariance", c.Filter.InitialCovariance, 3); err != nil {
		return err
	}
	if err := checkDiagonal("process_noise", c.Filter.ProcessNoise, 3); err != nil {
		return err
	}
	if err := checkDiagonal("measurement_noise", c.Filter.MeasurementNoise, 2); err != nil {
		return err
	}

	if c.Sim.DT <= 0 {
		return fmt.Errorf("dt must be positive, got %v", c.Sim.DT)
	}
	if c.Sim.DistanceNoise < 0 || c.Sim.BearingNoise < 0 {
		return fmt.Errorf("noise sigmas must be non-negative, got %v and %v", c.Sim.DistanceNoise, c.Sim.BearingNoise)
	}
	if c.World.Map == "" && c.World.ArenaSize <= 0 {
		return fmt.Errorf("arena size must be positive, got %v", c.World.ArenaSize)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true, "warn": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, warn, or empty for default)", c.Logging.Level)
	}
	return nil
}

// ValidateTrain checks the train section on top of Validate. Only training
// reads it.
func (c *Config) ValidateTrain() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Train.Population < 10 {
		return fmt.Errorf("population must be at least 10, got %d", c.Train.Population)
	}
	if c.Train.MutationSigma < 0 {
		return fmt.Errorf("mutation sigma must be non-negative, got %v", c.Train.MutationSigma)
	}
	return nil
}

func checkDiagonal(name string, d []float64, n int) error {
	if len(d) != n {
		return fmt.Errorf("%s must have %d entries, got %d", name, n, len(d))
	}
	for _, v := range d {
		if v < 0 {
			return fmt.Errorf("%s entries must be non-negative, got %v", name, d)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EKFBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EKFBOT_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Sim.Seed = n
		}
	}
	if v := os.Getenv("EKFBOT_MAP"); v != "" {
		cfg.World.Map = v
	}
}
