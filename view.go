package main

import (
	"errors"

	"github.com/faiface/pixel"
	"github.com/faiface/pixel/imdraw"
	"github.com/faiface/pixel/pixelgl"
	"github.com/jdeal-mediamath/clockwork"
	"github.com/spf13/cobra"
	"golang.org/x/image/colornames"

	"psykar.com/ekfbot/internal/driver"
	"psykar.com/ekfbot/internal/sim"
)

const margin = 40.0

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open a window and drive the robot live",
		Long: `Open a window showing the arena, the robot, its sensors and the filter
estimate. Without --genome the robot is driven from the keyboard: numpad
4/1 and 6/3 for the left and right wheels, or the arrow keys. Space pauses,
Escape quits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSetup(cmd)
			if err != nil {
				return err
			}
			genome, _ := cmd.Flags().GetString("genome")
			vsync, _ := cmd.Flags().GetBool("vsync")

			// the window must be created on the main thread
			var runErr error
			pixelgl.Run(func() {
				runErr = runView(st, genome, vsync)
			})
			return runErr
		},
	}
	cmd.Flags().String("genome", "", "Drive with a trained genome file instead of the keyboard")
	cmd.Flags().Bool("vsync", true, "Sync frames to the display")
	return cmd
}

func runView(st *setup, genome string, vsync bool) error {
	b := st.world.Bounds()
	cfg := pixelgl.WindowConfig{
		Title:  "ekfbot",
		Bounds: pixel.R(b.Min.X-margin, b.Min.Y-margin, b.Max.X+margin, b.Max.Y+margin),
		VSync:  vsync,
	}
	win, err := pixelgl.NewWindow(cfg)
	if err != nil {
		return err
	}
	defer win.Destroy()
	win.SetSmooth(true)

	var d driver.Driver = NewManualDriver(win, st.cfg.Robot.Power)
	if genome != "" {
		nd, _, err := driver.LoadGenome(genome)
		if err != nil {
			return err
		}
		d = nd
	}

	s, err := sim.New(st.cfg, st.world, d,
		sim.WithClock(clockwork.NewRealClock()),
		sim.WithLogger(st.logger))
	if err != nil {
		return err
	}

	// static geometry is drawn once onto a canvas
	canvas := pixelgl.NewCanvas(win.Bounds())
	static := imdraw.New(nil)
	drawMap(static, st.world)
	static.Draw(canvas)

	imd := imdraw.New(nil)
	labels := newLabels()
	paused := false

	for !win.Closed() {
		if win.JustPressed(pixelgl.KeyEscape) {
			break
		}
		if win.JustPressed(pixelgl.KeySpace) {
			paused = !paused
		}

		if paused {
			s.Resync()
		} else if _, err := s.Advance(); err != nil && !errors.Is(err, sim.ErrHalted) {
			win.SetTitle("ekfbot (halted)")
		}

		win.Clear(colornames.Aliceblue)
		canvas.Draw(win, pixel.IM.Moved(win.Bounds().Center()))

		imd.Clear()
		labels.Clear()
		drawSnapshot(imd, labels, s.Snapshot(), st.cfg.Robot.Radius, s.Robot.Path, s.Filter.Path)
		imd.Draw(win)
		labels.Draw(win, pixel.IM)

		win.Update()
	}
	return nil
}
