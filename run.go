package main

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/jdeal-mediamath/clockwork"
	"github.com/spf13/cobra"

	"psykar.com/ekfbot/internal/ekf"
	"psykar.com/ekfbot/internal/geom"
	"psykar.com/ekfbot/internal/sim"
	"psykar.com/ekfbot/internal/trajplot"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless and report the estimate",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSetup(cmd)
			if err != nil {
				return err
			}
			ticks, _ := cmd.Flags().GetInt("ticks")
			plotPath, _ := cmd.Flags().GetString("plot")
			dump, _ := cmd.Flags().GetBool("dump")
			if ticks <= 0 {
				ticks = st.cfg.Sim.Ticks
			}
			if plotPath != "" {
				st.cfg.Filter.RecordEllipses = true
			}

			d, err := loadDriver(cmd, st)
			if err != nil {
				return err
			}

			clock := clockwork.NewFakeClock()
			s, err := sim.New(st.cfg, st.world, d, sim.WithClock(clock), sim.WithLogger(st.logger))
			if err != nil {
				return err
			}

			var runErr error
			for s.Tick() < ticks {
				clock.Advance(s.TickDuration())
				if _, runErr = s.Advance(); runErr != nil {
					break
				}
			}

			snap := s.Snapshot()
			report(snap, s.Filter)
			if dump {
				spew.Dump(snap)
			}

			if plotPath != "" {
				err := trajplot.SaveTrajectory(plotPath, trajplot.Trajectory{
					Title:        fmt.Sprintf("%d ticks", s.Tick()),
					Map:          st.world,
					Truth:        s.Robot.Path,
					Estimate:     s.Filter.Path,
					Ellipses:     s.Filter.Ellipses,
					EllipseEvery: 60,
				})
				if err != nil {
					return err
				}
				fmt.Printf("plot written to %s\n", plotPath)
			}

			var sing *ekf.SingularityError
			if errors.As(runErr, &sing) {
				fmt.Fprint(os.Stderr, sing.Matrices())
			}
			return runErr
		},
	}
	cmd.Flags().String("genome", "", "Drive with a trained genome file instead of the built in script")
	cmd.Flags().String("from-run", "", "Drive with the best champion of a recorded training run")
	cmd.Flags().String("db", "runs.db", "SQLite database read by --from-run")
	cmd.Flags().Bool("random", false, "Drive with an untrained random network")
	cmd.MarkFlagsMutuallyExclusive("genome", "from-run", "random")
	cmd.Flags().Int("ticks", 0, "Ticks to simulate (default sim.ticks)")
	cmd.Flags().String("plot", "", "Write a PNG of the true and estimated paths")
	cmd.Flags().Bool("dump", false, "Dump the final snapshot")
	return cmd
}

func report(snap sim.Snapshot, f *ekf.Filter) {
	errX := snap.Estimate.X - snap.Pose.X
	errY := snap.Estimate.Y - snap.Pose.Y
	errTheta := geom.WrapSigned(snap.Estimate.Theta - snap.Pose.Theta)

	fmt.Printf("ticks:     %d\n", snap.Tick)
	fmt.Printf("true pose: %v\n", snap.Pose)
	fmt.Printf("estimate:  %v\n", snap.Estimate)
	fmt.Printf("error:     %.3f (heading %.2f°)\n", math.Hypot(errX, errY), geom.Degrees(errTheta))
	fmt.Printf("trace Σ:   %.5f\n", f.Trace())
	fmt.Printf("ellipse:   %.2f x %.2f at %.1f°\n", snap.Ellipse.Major, snap.Ellipse.Minor, geom.Degrees(snap.Ellipse.Angle))
}
