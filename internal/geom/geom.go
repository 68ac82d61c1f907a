// Package geom holds the immutable map geometry shared by the motion, sensor
// and estimator packages: wall segments, point landmarks and robot poses.
package geom

import (
	"fmt"
	"math"

	"github.com/faiface/pixel"
)

// Wall is a straight wall segment from A to B.
type Wall struct {
	A, B pixel.Vec

	// Angle is the direction of A->B in [0, 2π).
	Angle float64
	// Dir is the unit vector along A->B, zero for a degenerate wall.
	Dir pixel.Vec
}

// NewWall builds a wall and precomputes its direction.
func NewWall(x1, y1, x2, y2 float64) Wall {
	w := Wall{A: pixel.V(x1, y1), B: pixel.V(x2, y2)}
	dx, dy := x2-x1, y2-y1

	switch {
	case dx == 0 && dy == 0:
		w.Angle = 0
	case dx == 0 && dy > 0:
		w.Angle = math.Pi / 2
	case dx == 0:
		w.Angle = 3 * math.Pi / 2
	default:
		w.Angle = WrapAngle(math.Atan2(dy, dx))
	}

	if l := math.Hypot(dx, dy); l > 0 {
		w.Dir = pixel.V(dx/l, dy/l)
	}
	return w
}

// Line returns the wall as a pixel line, mostly for drawing.
func (w Wall) Line() pixel.Line {
	return pixel.L(w.A, w.B)
}

// Len is the wall length.
func (w Wall) Len() float64 {
	return w.A.To(w.B).Len()
}

// Degenerate reports whether the wall has zero length.
func (w Wall) Degenerate() bool {
	return w.A == w.B
}

func (w Wall) String() string {
	return fmt.Sprintf("Wall(%.2f,%.2f -> %.2f,%.2f)", w.A.X, w.A.Y, w.B.X, w.B.Y)
}

// Landmark is a known point feature. ID is the measurement correspondence.
// Radius only matters for drawing.
type Landmark struct {
	ID     int
	Pos    pixel.Vec
	Radius float64
}

// Pose is a planar position plus heading.
type Pose struct {
	X, Y  float64
	Theta float64
}

// Vec returns the position part of the pose.
func (p Pose) Vec() pixel.Vec {
	return pixel.V(p.X, p.Y)
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.4f rad)", p.X, p.Y, p.Theta)
}
