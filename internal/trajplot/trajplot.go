// Package trajplot renders runs to PNG: the map with the true and
// estimated paths, and training fitness curves.
package trajplot

import (
	"fmt"
	"image/color"

	"github.com/faiface/pixel"
	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"psykar.com/ekfbot/internal/ekf"
	"psykar.com/ekfbot/internal/evolve"
	"psykar.com/ekfbot/internal/world"
)

// ellipseSegments is the number of straight segments drawn per ellipse.
const ellipseSegments = 48

// Trajectory is what a run plot shows.
type Trajectory struct {
	Title    string
	Map      *world.Map
	Truth    []pixel.Vec
	Estimate []pixel.Vec
	// Ellipses are drawn every EllipseEvery entries, plus the last one.
	Ellipses     []ekf.Ellipse
	EllipseEvery int
}

// SaveTrajectory writes tr to path as a square PNG.
func SaveTrajectory(path string, tr Trajectory) error {
	p := plot.New()
	p.Title.Text = tr.Title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	if tr.Map != nil {
		for i, w := range tr.Map.Walls {
			l, err := plotter.NewLine(plotter.XYs{{X: w.A.X, Y: w.A.Y}, {X: w.B.X, Y: w.B.Y}})
			if err != nil {
				return fmt.Errorf("wall %d: %w", i, err)
			}
			l.Color = colornames.Blueviolet
			l.Width = vg.Points(2)
			p.Add(l)
			if i == 0 {
				p.Legend.Add("walls", l)
			}
		}

		if len(tr.Map.Landmarks) > 0 {
			pts := make(plotter.XYs, 0, len(tr.Map.Landmarks))
			for _, lm := range tr.Map.Landmarks {
				pts = append(pts, plotter.XY{X: lm.Pos.X, Y: lm.Pos.Y})
			}
			s, err := plotter.NewScatter(pts)
			if err != nil {
				return fmt.Errorf("landmarks: %w", err)
			}
			s.GlyphStyle.Color = colornames.Darkorange
			s.GlyphStyle.Shape = draw.CircleGlyph{}
			s.GlyphStyle.Radius = vg.Points(3)
			p.Add(s)
			p.Legend.Add("landmarks", s)
		}
	}

	if err := addPath(p, "true path", tr.Truth, colornames.Green); err != nil {
		return err
	}
	if err := addPath(p, "estimate", tr.Estimate, colornames.Red); err != nil {
		return err
	}

	every := tr.EllipseEvery
	if every <= 0 {
		every = len(tr.Ellipses) + 1
	}
	for i, e := range tr.Ellipses {
		if i%every != 0 && i != len(tr.Ellipses)-1 {
			continue
		}
		l, err := plotter.NewLine(ellipsePoints(e))
		if err != nil {
			return fmt.Errorf("ellipse %d: %w", i, err)
		}
		l.Color = colornames.Steelblue
		l.Width = vg.Points(0.5)
		p.Add(l)
	}

	p.Legend.Top = true
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

func addPath(p *plot.Plot, name string, path []pixel.Vec, c color.Color) error {
	if len(path) < 2 {
		return nil
	}
	pts := make(plotter.XYs, len(path))
	for i, v := range path {
		pts[i] = plotter.XY{X: v.X, Y: v.Y}
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	l.Color = c
	l.Width = vg.Points(1)
	p.Add(l)
	p.Legend.Add(name, l)
	return nil
}

func ellipsePoints(e ekf.Ellipse) plotter.XYs {
	outline := e.Points(ellipseSegments)
	pts := make(plotter.XYs, len(outline))
	for i, v := range outline {
		pts[i] = plotter.XY{X: v.X, Y: v.Y}
	}
	return pts
}

// SaveFitness writes best and average fitness per generation to path.
func SaveFitness(path string, stats []evolve.Stats) error {
	p := plot.New()
	p.Title.Text = "Training"
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Cells visited"

	best := make(plotter.XYs, len(stats))
	avg := make(plotter.XYs, len(stats))
	for i, st := range stats {
		best[i] = plotter.XY{X: float64(st.Generation), Y: st.Best}
		avg[i] = plotter.XY{X: float64(st.Generation), Y: st.Average}
	}

	for _, series := range []struct {
		name string
		pts  plotter.XYs
		c    color.Color
	}{{"best", best, colornames.Green}, {"average", avg, colornames.Gray}} {
		if len(series.pts) == 0 {
			continue
		}
		l, err := plotter.NewLine(series.pts)
		if err != nil {
			return fmt.Errorf("%s: %w", series.name, err)
		}
		l.Color = series.c
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(series.name, l)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
