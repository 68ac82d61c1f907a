package geom

import (
	"math"

	"github.com/faiface/pixel"
)

// eps absorbs rounding when a segment ends exactly on another one.
const eps = 1e-9

// Intersect returns the point where segment p1-p2 meets segment q1-q2.
// Touching at an endpoint counts as an intersection. For collinear overlapping
// segments the overlap point nearest p1 is returned. Zero-length segments
// never intersect anything.
func Intersect(p1, p2, q1, q2 pixel.Vec) (pixel.Vec, bool) {
	r := p1.To(p2)
	s := q1.To(q2)
	if r == pixel.ZV || s == pixel.ZV {
		return pixel.ZV, false
	}

	qp := p1.To(q1)
	denom := r.Cross(s)

	if denom == 0 {
		if qp.Cross(r) != 0 {
			// parallel
			return pixel.ZV, false
		}
		rr := r.Dot(r)
		t0 := qp.Dot(r) / rr
		t1 := t0 + s.Dot(r)/rr
		lo, hi := math.Min(t0, t1), math.Max(t0, t1)
		lo = math.Max(lo, 0)
		hi = math.Min(hi, 1)
		if lo > hi+eps {
			return pixel.ZV, false
		}
		return p1.Add(r.Scaled(lo)), true
	}

	t := qp.Cross(s) / denom
	u := qp.Cross(r) / denom
	if t < -eps || t > 1+eps || u < -eps || u > 1+eps {
		return pixel.ZV, false
	}
	return p1.Add(r.Scaled(t)), true
}

// IntersectWall is Intersect against a wall. Degenerate walls are never hit.
func IntersectWall(a, b pixel.Vec, w Wall) (pixel.Vec, bool) {
	if w.Degenerate() {
		return pixel.ZV, false
	}
	return Intersect(a, b, w.A, w.B)
}

// ClosestPoint returns the point of segment a-b nearest to p.
func ClosestPoint(p, a, b pixel.Vec) pixel.Vec {
	ab := a.To(b)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return a
	}
	t := a.To(p).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return a.Add(ab.Scaled(t))
}

// PointSegmentDistance is the distance from p to segment a-b.
func PointSegmentDistance(p, a, b pixel.Vec) float64 {
	return Distance(p, ClosestPoint(p, a, b))
}

// SegmentDistance is the shortest distance between segments p1-p2 and q1-q2.
// Either segment may be a single point.
func SegmentDistance(p1, p2, q1, q2 pixel.Vec) float64 {
	if _, ok := Intersect(p1, p2, q1, q2); ok {
		return 0
	}
	d := PointSegmentDistance(p1, q1, q2)
	d = math.Min(d, PointSegmentDistance(p2, q1, q2))
	d = math.Min(d, PointSegmentDistance(q1, p1, p2))
	d = math.Min(d, PointSegmentDistance(q2, p1, p2))
	return d
}

// ThickIntersects reports whether the segment a-b buffered by radius overlaps
// the wall. Contact at exactly radius does not count, so a body resting
// against a wall can still slide along it.
func ThickIntersects(a, b pixel.Vec, radius float64, w Wall) bool {
	return SegmentDistance(a, b, w.A, w.B) < radius
}

// ClosestIntersection casts the segment from -> to against every wall and
// returns the hit nearest to from. ok is false when nothing is hit.
func ClosestIntersection(from, to pixel.Vec, walls []Wall) (point pixel.Vec, dist float64, ok bool) {
	dist = -1
	for _, w := range walls {
		p, hit := IntersectWall(from, to, w)
		if !hit {
			continue
		}
		d := Distance(from, p)
		if dist < 0 || d < dist {
			dist = d
			point = p
		}
	}
	return point, dist, dist >= 0
}

// Distance is the euclidean distance between two points.
func Distance(a, b pixel.Vec) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
