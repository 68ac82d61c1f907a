package sensor

import (
	"math"

	"github.com/faiface/pixel"

	"psykar.com/ekfbot/internal/geom"
	"psykar.com/ekfbot/internal/world"
)

// Defaults of the reference robot.
const (
	DefaultRingSize = 12
	DefaultLength   = 120.0

	// labelOffset is how far past the robot edge a reading is drawn.
	labelOffset = 10.0
)

// Ray is one distance sensor evaluated at a pose.
type Ray struct {
	// Angle is the mounting angle relative to the robot heading.
	Angle float64

	Start, End pixel.Vec
	// Label is where a renderer should print Distance.
	Label pixel.Vec

	Distance float64
	Hit      bool
	Point    pixel.Vec
}

// RingReading is the ring output. Rays are in mounting order.
type RingReading struct {
	Rays []Ray
}

func (RingReading) isReading() {}

// Distances returns one distance per ray, in ring order.
func (r RingReading) Distances() []float64 {
	out := make([]float64, len(r.Rays))
	for i, ray := range r.Rays {
		out[i] = ray.Distance
	}
	return out
}

// Ring is a set of distance sensors spaced evenly around the robot. Each ray
// starts on the robot edge and reaches Length from the centre.
type Ring struct {
	Angles []float64
	Length float64
	Radius float64
}

// NewRing builds n evenly spaced sensors, the first one facing forward.
func NewRing(n int, length, radius float64) *Ring {
	r := &Ring{Length: length, Radius: radius}
	for i := 0; i < n; i++ {
		r.Angles = append(r.Angles, 2*math.Pi*float64(i)/float64(n))
	}
	return r
}

// MaxRange is the distance reported when nothing is in view.
func (r *Ring) MaxRange() float64 {
	return math.Max(0, r.Length-r.Radius)
}

// Sense implements Sensor.
func (r *Ring) Sense(pose geom.Pose, m *world.Map) Reading {
	return r.Read(pose, m.Walls)
}

// Read casts every ray from pose against walls.
func (r *Ring) Read(pose geom.Pose, walls []geom.Wall) RingReading {
	rays := make([]Ray, len(r.Angles))
	for i, a := range r.Angles {
		rays[i] = r.cast(pose, a, walls)
	}
	return RingReading{Rays: rays}
}

func (r *Ring) cast(pose geom.Pose, angle float64, walls []geom.Wall) Ray {
	centre := pose.Vec()
	dir := pixel.Unit(pose.Theta + angle)

	ray := Ray{
		Angle:    angle,
		Start:    centre.Add(dir.Scaled(r.Radius)),
		End:      centre.Add(dir.Scaled(r.Length)),
		Label:    centre.Add(dir.Scaled(r.Radius + labelOffset)),
		Distance: r.MaxRange(),
	}

	// a degenerate ray never hits, Intersect rejects zero length segments
	p, d, ok := geom.ClosestIntersection(ray.Start, ray.End, walls)
	if !ok {
		return ray
	}
	ray.Hit = true
	ray.Point = p
	ray.Distance = math.Max(0, math.Min(d, ray.Distance))
	return ray
}
