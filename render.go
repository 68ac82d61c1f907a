package main

import (
	"fmt"
	"image/color"

	"github.com/faiface/pixel"
	"github.com/faiface/pixel/imdraw"
	"github.com/faiface/pixel/text"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font/basicfont"

	"psykar.com/ekfbot/internal/ekf"
	"psykar.com/ekfbot/internal/sim"
	"psykar.com/ekfbot/internal/world"
)

// maxDrawnPath caps how many recent path points are drawn per frame.
const maxDrawnPath = 3000

// drawMap draws the static walls and landmarks once.
func drawMap(imd *imdraw.IMDraw, m *world.Map) {
	imd.Color = colornames.Blueviolet
	imd.EndShape = imdraw.RoundEndShape
	for _, w := range m.Walls {
		imd.Push(w.A, w.B)
		imd.Line(2)
	}

	imd.Color = colornames.Darkorange
	for _, l := range m.Landmarks {
		imd.Push(l.Pos)
		imd.Circle(l.Radius, 0)
	}
}

// drawSnapshot draws the robot, its sensors and the estimator state.
func drawSnapshot(imd *imdraw.IMDraw, labels *text.Text, snap sim.Snapshot, radius float64, truth, estimate []pixel.Vec) {
	pos := snap.Pose.Vec()

	imd.Color = colornames.Pink
	for _, r := range snap.Rays {
		end := r.End
		if r.Hit {
			end = r.Point
		}
		imd.Push(r.Start, end)
		imd.Line(1)
		fmt.Fprintf(labelAt(labels, r.Label), "%.0f", r.Distance)
	}

	imd.Color = colornames.Gold
	for _, d := range snap.Detections {
		imd.Push(pos, d.Landmark.Pos)
		imd.Line(1)
	}

	drawPath(imd, truth, colornames.Green)
	drawPath(imd, estimate, colornames.Red)

	imd.Color = colornames.Steelblue
	drawEllipse(imd, snap.Ellipse)

	imd.Color = colornames.Black
	imd.Push(pos)
	imd.Circle(radius, 2)
	imd.Push(pos, pos.Add(pixel.Unit(snap.Pose.Theta).Scaled(radius)))
	imd.Line(2)

	imd.Color = colornames.Red
	est := snap.Estimate.Vec()
	imd.Push(est, est.Add(pixel.Unit(snap.Estimate.Theta).Scaled(radius/2)))
	imd.Line(1)
}

func labelAt(t *text.Text, at pixel.Vec) *text.Text {
	t.Dot = at
	return t
}

func drawPath(imd *imdraw.IMDraw, path []pixel.Vec, c color.Color) {
	if len(path) < 2 {
		return
	}
	if len(path) > maxDrawnPath {
		path = path[len(path)-maxDrawnPath:]
	}
	imd.Color = c
	imd.Push(path...)
	imd.Line(1)
}

func drawEllipse(imd *imdraw.IMDraw, e ekf.Ellipse) {
	if e.Major == 0 {
		return
	}
	imd.Push(e.Points(48)...)
	imd.Line(1)
}

func newLabels() *text.Text {
	atlas := text.NewAtlas(basicfont.Face7x13, text.ASCII)
	t := text.New(pixel.ZV, atlas)
	t.Color = colornames.Black
	return t
}
