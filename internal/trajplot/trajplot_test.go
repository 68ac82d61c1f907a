package trajplot

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/faiface/pixel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psykar.com/ekfbot/internal/ekf"
	"psykar.com/ekfbot/internal/evolve"
	"psykar.com/ekfbot/internal/world"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic), "not a png")
}

func TestSaveTrajectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.png")
	tr := Trajectory{
		Title:    "run",
		Map:      world.Arena(400, 400, 300),
		Truth:    []pixel.Vec{pixel.V(300, 400), pixel.V(310, 405), pixel.V(320, 415)},
		Estimate: []pixel.Vec{pixel.V(301, 399), pixel.V(311, 404), pixel.V(322, 413)},
		Ellipses: []ekf.Ellipse{
			{Center: pixel.V(301, 399), Major: 10, Minor: 4, Angle: 0.3},
			{Center: pixel.V(311, 404), Major: 8, Minor: 3, Angle: 0.4},
			{Center: pixel.V(322, 413), Major: 6, Minor: 2, Angle: 0.5},
		},
		EllipseEvery: 2,
	}
	require.NoError(t, SaveTrajectory(path, tr))
	assertPNG(t, path)
}

func TestSaveTrajectoryEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")
	require.NoError(t, SaveTrajectory(path, Trajectory{Map: world.New()}))
	assertPNG(t, path)
}

func TestSaveFitness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitness.png")
	stats := []evolve.Stats{
		{Generation: 0, Best: 10, Average: 3},
		{Generation: 1, Best: 25, Average: 9},
		{Generation: 2, Best: 31, Average: 14},
	}
	require.NoError(t, SaveFitness(path, stats))
	assertPNG(t, path)
}

func TestEllipsePoints(t *testing.T) {
	e := ekf.Ellipse{Center: pixel.V(5, -2), Major: 10, Minor: 4, Angle: math.Pi / 2}
	pts := ellipsePoints(e)
	require.Len(t, pts, ellipseSegments+1)

	// closed outline
	assert.InDelta(t, pts[0].X, pts[len(pts)-1].X, 1e-9)
	assert.InDelta(t, pts[0].Y, pts[len(pts)-1].Y, 1e-9)

	// the major axis is turned onto +y
	assert.InDelta(t, 5, pts[0].X, 1e-9)
	assert.InDelta(t, 3, pts[0].Y, 1e-9)

	for _, p := range pts {
		dx, dy := p.X-5, p.Y+2
		// x is along the minor axis, y along the major
		assert.InDelta(t, 1, dx*dx/4+dy*dy/25, 1e-9)
	}
}
