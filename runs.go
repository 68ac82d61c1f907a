package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"psykar.com/ekfbot/internal/runlog"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded training runs, or the generations of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			db, err := runlog.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if len(args) == 1 {
				return printGenerations(db, args[0])
			}
			return printRuns(db)
		},
	}
	cmd.Flags().String("db", "runs.db", "SQLite database recording training runs")
	return cmd
}

func printRuns(db *runlog.DB) error {
	runs, err := db.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, r := range runs {
		status := "unfinished"
		if !r.FinishedAt.IsZero() {
			status = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("%s  %s  seed %-6d pop %-4d gens %-4d %s\n",
			r.ID, r.StartedAt.Format(time.DateTime), r.Seed, r.Population, r.Generations, status)
	}
	return nil
}

func printGenerations(db *runlog.DB, runID string) error {
	gens, err := db.Generations(runID)
	if err != nil {
		return err
	}
	if len(gens) == 0 {
		return fmt.Errorf("no generations recorded for run %s", runID)
	}
	fmt.Printf("%4s %8s %8s %8s %6s  %s\n", "gen", "best", "average", "worst", "stuck", "best from")
	for _, g := range gens {
		fmt.Printf("%4d %8.0f %8.1f %8.0f %6d  %s\n", g.Generation, g.Best, g.Average, g.Worst, g.Stuck, g.BestSource)
	}
	return nil
}
