package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"psykar.com/ekfbot/internal/driver"
	"psykar.com/ekfbot/internal/evolve"
	"psykar.com/ekfbot/internal/logging"
	"psykar.com/ekfbot/internal/runlog"
	"psykar.com/ekfbot/internal/trajplot"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Evolve a neural controller that explores the arena",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSetup(cmd)
			if err != nil {
				return err
			}
			dbPath, _ := cmd.Flags().GetString("db")
			out, _ := cmd.Flags().GetString("out")
			plotPath, _ := cmd.Flags().GetString("plot")
			if g, _ := cmd.Flags().GetInt("generations"); g > 0 {
				st.cfg.Train.Generations = g
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			db, err := runlog.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			runID, err := db.StartRun(st.cfg, time.Now())
			if err != nil {
				return err
			}
			logger := st.logger.With("run", runID)
			logger.Info("training started",
				"population", st.cfg.Train.Population,
				"generations", st.cfg.Train.Generations,
				"seed", st.cfg.Sim.Seed)

			tr, err := evolve.NewTrainer(st.cfg, st.world, evolve.WithLogger(logger))
			if err != nil {
				return err
			}

			var stats []evolve.Stats
			best, err := tr.Run(ctx, st.cfg.Train.Generations, func(s evolve.Stats, champ *evolve.Individual) error {
				stats = append(stats, s)
				logger.Log(ctx, logging.LevelTrace, "top scores", "generation", s.Generation, "scores", s.Best10)
				return db.RecordGeneration(runID, s, champ)
			})
			if err != nil && ctx.Err() == nil {
				return err
			}
			if best == nil {
				return fmt.Errorf("training stopped before the first generation finished")
			}

			f := best.Driver.File()
			f.Fitness = best.Fitness
			f.Source = best.Source
			f.RunID = runID
			if err := driver.SaveGenome(out, f); err != nil {
				return err
			}
			if err := db.FinishRun(runID, time.Now()); err != nil {
				return err
			}
			if logger.Enabled(ctx, logging.LevelTrace) {
				logger.Log(ctx, logging.LevelTrace, "best genome", "dump", spew.Sdump(f))
			}

			if plotPath != "" {
				if err := trajplot.SaveFitness(plotPath, stats); err != nil {
					return err
				}
			}
			fmt.Printf("best fitness %.0f from %s, saved to %s (run %s)\n", best.Fitness, best.Source, out, runID)
			return nil
		},
	}
	cmd.Flags().String("db", "runs.db", "SQLite database recording training runs")
	cmd.Flags().String("out", "best.yaml", "Where to write the best genome")
	cmd.Flags().String("plot", "", "Write a PNG of fitness per generation")
	cmd.Flags().Int("generations", 0, "Generations to train (default train.generations)")
	return cmd
}
