package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/faiface/pixel"
	"github.com/spf13/cobra"

	"psykar.com/ekfbot/internal/config"
	"psykar.com/ekfbot/internal/driver"
	"psykar.com/ekfbot/internal/logging"
	"psykar.com/ekfbot/internal/runlog"
	"psykar.com/ekfbot/internal/world"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ekfbot",
		Short: "Differential drive robot simulator with EKF localisation",
		Long: `ekfbot drives a two wheeled robot around a walled arena, simulates its
distance and landmark sensors, and tracks its pose with an extended
Kalman filter. Controllers can be driven by hand or evolved.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML config file (defaults are used when empty)")
	rootCmd.PersistentFlags().String("map", "", "YAML map file, overrides world.map")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, trace or warn")

	rootCmd.AddCommand(
		newVersionCmd(),
		newViewCmd(),
		newRunCmd(),
		newTrainCmd(),
		newMapCmd(),
		newRunsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ekfbot version %s\n", version)
		},
	}
}

// setup is what every command needs before it starts.
type setup struct {
	cfg    *config.Config
	world  *world.Map
	logger *slog.Logger
}

func loadSetup(cmd *cobra.Command) (*setup, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if m, _ := cmd.Flags().GetString("map"); m != "" {
		cfg.World.Map = m
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)
	m, err := buildWorld(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("world ready", "walls", len(m.Walls), "landmarks", len(m.Landmarks), "bounds", m.Bounds())
	return &setup{cfg: cfg, world: m, logger: logger}, nil
}

func buildWorld(cfg *config.Config) (*world.Map, error) {
	var m *world.Map
	if cfg.World.Map != "" {
		var err error
		m, err = world.Load(cfg.World.Map)
		if err != nil {
			return nil, err
		}
	} else {
		m = world.Arena(cfg.World.ArenaX, cfg.World.ArenaY, cfg.World.ArenaSize)
	}

	if cfg.World.Boxes > 0 {
		b := m.Bounds()
		inset := cfg.World.ArenaSize / 4
		area := pixel.R(b.Min.X+inset, b.Min.Y+inset, b.Max.X-inset, b.Max.Y-inset)
		rng := rand.New(rand.NewSource(int64(cfg.Sim.Seed)))
		start := pixel.V(cfg.Robot.StartX, cfg.Robot.StartY)
		m.AddRandomBoxes(rng, cfg.World.Boxes, area, cfg.Robot.Radius, 3*cfg.Robot.Radius, start, 2*cfg.Robot.Radius)
		m.ExtractFeatures(world.DefaultFeatureRadius)
	}
	return m, nil
}

// loadDriver picks the driver for a headless run: the champion of a
// recorded run, a genome file, an untrained random network, or the scripted
// wander when none is asked for.
func loadDriver(cmd *cobra.Command, st *setup) (driver.Driver, error) {
	runID, _ := cmd.Flags().GetString("from-run")
	genome, _ := cmd.Flags().GetString("genome")
	random, _ := cmd.Flags().GetBool("random")

	switch {
	case runID != "":
		dbPath, _ := cmd.Flags().GetString("db")
		db, err := runlog.Open(dbPath)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		d, f, err := db.BestDriver(runID)
		if err != nil {
			return nil, err
		}
		st.logger.Info("driving with recorded champion", "run", runID, "fitness", f.Fitness, "source", f.Source)
		return d, nil
	case genome != "":
		d, _, err := driver.LoadGenome(genome)
		if err != nil {
			return nil, err
		}
		return d, nil
	case random:
		return driver.NewNeuralDriver(st.cfg.Sensors.Count, st.cfg.Robot.Power), nil
	}
	return defaultScript(), nil
}
