// Package world builds the static environment the robot drives in: wall
// segments and the landmark features the estimator localises against.
//
// A Map is filled once and treated as read-only afterwards.
package world

import (
	"math"
	"math/rand"

	"github.com/faiface/pixel"

	"psykar.com/ekfbot/internal/geom"
)

// DefaultFeatureRadius is the drawing radius of extracted landmarks.
const DefaultFeatureRadius = 4.0

// Map holds walls and landmarks.
type Map struct {
	Walls     []geom.Wall
	Landmarks []geom.Landmark

	index map[int]int
}

// New returns an empty map.
func New() *Map {
	return &Map{index: map[int]int{}}
}

// Landmark looks up a landmark by id.
func (m *Map) Landmark(id int) (geom.Landmark, bool) {
	i, ok := m.index[id]
	if !ok {
		return geom.Landmark{}, false
	}
	return m.Landmarks[i], true
}

// AddWall appends a wall segment.
func (m *Map) AddWall(x1, y1, x2, y2 float64) {
	m.Walls = append(m.Walls, geom.NewWall(x1, y1, x2, y2))
}

// AddLandmark appends a landmark. A repeated id replaces the earlier position.
func (m *Map) AddLandmark(l geom.Landmark) {
	if m.index == nil {
		m.index = map[int]int{}
	}
	if i, ok := m.index[l.ID]; ok {
		m.Landmarks[i] = l
		return
	}
	m.index[l.ID] = len(m.Landmarks)
	m.Landmarks = append(m.Landmarks, l)
}

// AddSquare adds the four walls of an axis aligned square with its lower left
// corner at (x, y).
func (m *Map) AddSquare(x, y, size float64) {
	m.AddWall(x, y, x+size, y)
	m.AddWall(x, y+size, x+size, y+size)
	m.AddWall(x, y, x, y+size)
	m.AddWall(x+size, y, x+size, y+size)
}

// AddPolygon adds a closed regular polygon centred on (cx, cy) with the given
// circumradius. The first vertex sits on the positive x axis.
func (m *Map) AddPolygon(cx, cy, radius float64, sides int) {
	if sides < 3 {
		return
	}
	var pts []pixel.Vec
	for i := 0; i < sides; i++ {
		a := 2 * math.Pi * float64(i) / float64(sides)
		pts = append(pts, pixel.V(cx+radius*math.Cos(a), cy+radius*math.Sin(a)))
	}
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		m.AddWall(p.X, p.Y, q.X, q.Y)
	}
}

// AddHexagon is AddPolygon with six sides.
func (m *Map) AddHexagon(cx, cy, radius float64) {
	m.AddPolygon(cx, cy, radius, 6)
}

// AddRandomBoxes scatters n axis aligned square obstacles inside bounds with
// sides between minSize and maxSize. Boxes within spawnRadius of spawn are
// redrawn, up to a bounded number of attempts. All randomness comes from rng.
func (m *Map) AddRandomBoxes(rng *rand.Rand, n int, bounds pixel.Rect, minSize, maxSize float64, spawn pixel.Vec, spawnRadius float64) {
	for placed, attempts := 0, 0; placed < n && attempts < n*50; attempts++ {
		size := minSize + rng.Float64()*(maxSize-minSize)
		if bounds.W() <= size || bounds.H() <= size {
			return
		}
		x := bounds.Min.X + rng.Float64()*(bounds.W()-size)
		y := bounds.Min.Y + rng.Float64()*(bounds.H()-size)

		// reject boxes covering the spawn zone
		cx := math.Max(x, math.Min(spawn.X, x+size))
		cy := math.Max(y, math.Min(spawn.Y, y+size))
		if geom.Distance(pixel.V(cx, cy), spawn) <= spawnRadius {
			continue
		}

		m.AddSquare(x, y, size)
		placed++
	}
}

// ExtractFeatures adds one landmark per distinct wall endpoint, in wall
// order, with ids continuing after the highest existing id.
func (m *Map) ExtractFeatures(radius float64) {
	next := 0
	for _, l := range m.Landmarks {
		if l.ID >= next {
			next = l.ID + 1
		}
	}

	seen := map[pixel.Vec]bool{}
	for _, l := range m.Landmarks {
		seen[l.Pos] = true
	}
	for _, w := range m.Walls {
		for _, p := range []pixel.Vec{w.A, w.B} {
			if seen[p] {
				continue
			}
			seen[p] = true
			m.AddLandmark(geom.Landmark{ID: next, Pos: p, Radius: radius})
			next++
		}
	}
}

// Bounds returns the rectangle enclosing every wall and landmark.
func (m *Map) Bounds() pixel.Rect {
	var pts []pixel.Vec
	for _, w := range m.Walls {
		pts = append(pts, w.A, w.B)
	}
	for _, l := range m.Landmarks {
		pts = append(pts, l.Pos)
	}
	if len(pts) == 0 {
		return pixel.R(0, 0, 0, 0)
	}
	r := pixel.R(pts[0].X, pts[0].Y, pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		r.Min.X = math.Min(r.Min.X, p.X)
		r.Min.Y = math.Min(r.Min.Y, p.Y)
		r.Max.X = math.Max(r.Max.X, p.X)
		r.Max.Y = math.Max(r.Max.Y, p.Y)
	}
	return r
}

// Arena is the default environment: a hexagonal enclosure with an inner
// square obstacle, features on every corner.
func Arena(cx, cy, size float64) *Map {
	m := New()
	m.AddHexagon(cx, cy, size)
	m.AddSquare(cx+size/4, cy-size/8, size/4)
	m.ExtractFeatures(DefaultFeatureRadius)
	return m
}
