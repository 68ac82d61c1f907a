package sensor

import (
	"fmt"
	"math"
	"strings"

	"github.com/faiface/pixel"

	"psykar.com/ekfbot/internal/geom"
	"psykar.com/ekfbot/internal/world"
)

// DefaultLandmarkRange is the detection radius of the landmark sensor.
const DefaultLandmarkRange = 200.0

// onWall is how close a landmark must be to a wall to count as lying on it.
const onWall = 1e-6

// BearingConvention selects the world axis bearings are measured from.
type BearingConvention int

const (
	// North measures the world bearing from the +y axis, atan2(dx, dy).
	// This is the reference sensor behaviour and the zero value.
	North BearingConvention = iota
	// East measures from the +x axis, atan2(dy, dx), the convention used by
	// the estimator's measurement model.
	East
)

func (c BearingConvention) String() string {
	switch c {
	case North:
		return "north"
	case East:
		return "east"
	default:
		return fmt.Sprintf("BearingConvention(%d)", int(c))
	}
}

// ParseBearingConvention accepts "north" or "east".
func ParseBearingConvention(s string) (BearingConvention, error) {
	switch strings.ToLower(s) {
	case "north", "":
		return North, nil
	case "east":
		return East, nil
	default:
		return North, fmt.Errorf("unknown bearing convention %q", s)
	}
}

// Detection is one visible landmark.
type Detection struct {
	Landmark geom.Landmark
	Distance float64
	// Bearing is relative to the robot heading, in [0, 2π).
	Bearing float64
}

// BearingDegrees returns Bearing in degrees.
func (d Detection) BearingDegrees() float64 {
	return geom.Degrees(d.Bearing)
}

// Detections is the landmark sensor output.
type Detections []Detection

func (Detections) isReading() {}

// LandmarkSensor reports every landmark closer than Range with a clear line
// of sight from the robot centre.
type LandmarkSensor struct {
	Range      float64
	Convention BearingConvention
}

// NewLandmarkSensor returns a sensor with the given range and the north
// bearing convention.
func NewLandmarkSensor(r float64) *LandmarkSensor {
	return &LandmarkSensor{Range: r}
}

// Sense implements Sensor.
func (s *LandmarkSensor) Sense(pose geom.Pose, m *world.Map) Reading {
	return s.Detect(pose, m.Landmarks, m.Walls)
}

// Detect returns visible landmarks in landmark order.
func (s *LandmarkSensor) Detect(pose geom.Pose, landmarks []geom.Landmark, walls []geom.Wall) Detections {
	var out Detections
	centre := pose.Vec()
	for _, l := range landmarks {
		dx := l.Pos.X - pose.X
		dy := l.Pos.Y - pose.Y
		dist := math.Hypot(dx, dy)
		if dist >= s.Range {
			continue
		}
		if occluded(centre, l, walls) {
			continue
		}
		out = append(out, Detection{
			Landmark: l,
			Distance: dist,
			Bearing:  s.bearing(dx, dy, pose.Theta),
		})
	}
	return out
}

func (s *LandmarkSensor) bearing(dx, dy, theta float64) float64 {
	if s.Convention == East {
		return geom.WrapAngle(math.Atan2(dy, dx) - theta)
	}
	return geom.WrapAngle(math.Atan2(dx, dy) - theta)
}

func occluded(from pixel.Vec, l geom.Landmark, walls []geom.Wall) bool {
	for _, w := range walls {
		// walls ending on (or running through) the landmark never hide it
		if geom.PointSegmentDistance(l.Pos, w.A, w.B) < onWall {
			continue
		}
		if _, ok := geom.IntersectWall(from, l.Pos, w); ok {
			return true
		}
	}
	return false
}
