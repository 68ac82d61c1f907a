package world

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/faiface/pixel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psykar.com/ekfbot/internal/geom"
)

func TestAddSquareAndFeatures(t *testing.T) {
	m := New()
	m.AddSquare(0, 0, 10)
	require.Len(t, m.Walls, 4)

	m.ExtractFeatures(DefaultFeatureRadius)
	require.Len(t, m.Landmarks, 4, "one landmark per distinct corner")

	for i, l := range m.Landmarks {
		assert.Equal(t, i, l.ID)
		got, ok := m.Landmark(l.ID)
		require.True(t, ok)
		assert.Equal(t, l, got)
	}

	_, ok := m.Landmark(99)
	assert.False(t, ok)
}

func TestExtractFeaturesKeepsExplicitIDs(t *testing.T) {
	m := New()
	m.AddLandmark(geom.Landmark{ID: 7, Pos: pixel.V(50, 50)})
	m.AddWall(0, 0, 10, 0)
	m.ExtractFeatures(2)

	require.Len(t, m.Landmarks, 3)
	assert.Equal(t, 7, m.Landmarks[0].ID)
	assert.Equal(t, 8, m.Landmarks[1].ID)
	assert.Equal(t, 9, m.Landmarks[2].ID)
}

func TestAddHexagon(t *testing.T) {
	m := New()
	m.AddHexagon(400, 400, 300)
	require.Len(t, m.Walls, 6)

	for i, w := range m.Walls {
		next := m.Walls[(i+1)%6]
		assert.Equal(t, w.B, next.A, "closed polygon")
		assert.InDelta(t, 300, w.Len(), 1e-9)
	}

	m.ExtractFeatures(DefaultFeatureRadius)
	assert.Len(t, m.Landmarks, 6)
}

func TestAddRandomBoxesIsSeeded(t *testing.T) {
	build := func() *Map {
		m := New()
		m.AddRandomBoxes(rand.New(rand.NewSource(3)), 5, pixel.R(0, 0, 800, 800), 20, 60, pixel.V(400, 400), 80)
		return m
	}

	a, b := build(), build()
	require.Len(t, a.Walls, 20)
	assert.Equal(t, a.Walls, b.Walls)

	for _, w := range a.Walls {
		assert.Greater(t, geom.PointSegmentDistance(pixel.V(400, 400), w.A, w.B), 80.0)
	}
}

func TestFileRoundTrip(t *testing.T) {
	m, err := Parse([]byte(`
walls:
  - [0, 0, 100, 0]
squares:
  - [20, 20, 10]
landmarks:
  - {id: 42, x: 5, y: 5}
extract_features: true
`))
	require.NoError(t, err)
	assert.Len(t, m.Walls, 5)
	l, ok := m.Landmark(42)
	require.True(t, ok)
	assert.Equal(t, pixel.V(5, 5), l.Pos)

	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, Save(path, m))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, len(m.Walls), len(loaded.Walls))
	assert.Equal(t, len(m.Landmarks), len(loaded.Landmarks))
	for _, l := range m.Landmarks {
		got, ok := loaded.Landmark(l.ID)
		require.True(t, ok)
		assert.Equal(t, l.Pos, got.Pos)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("walls: [[1, 2"))
	assert.Error(t, err)
}

func TestArena(t *testing.T) {
	m := Arena(400, 400, 300)
	assert.Len(t, m.Walls, 10)
	assert.Len(t, m.Landmarks, 10)
	b := m.Bounds()
	assert.InDelta(t, 100, b.Min.X, 1e-9)
	assert.InDelta(t, 700, b.Max.X, 1e-9)
}
