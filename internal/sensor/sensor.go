// Package sensor simulates what the robot can perceive from its true pose:
// a ring of short range distance sensors and an omnidirectional landmark
// detector that is blocked by walls.
package sensor

import (
	"psykar.com/ekfbot/internal/geom"
	"psykar.com/ekfbot/internal/world"
)

// Reading is the output of one sensor for one tick.
type Reading interface {
	isReading()
}

// Sensor produces a Reading from a pose and the static map.
type Sensor interface {
	Sense(pose geom.Pose, m *world.Map) Reading
}

var (
	_ Sensor = (*Ring)(nil)
	_ Sensor = (*LandmarkSensor)(nil)
)
