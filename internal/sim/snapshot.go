package sim

import (
	"psykar.com/ekfbot/internal/ekf"
	"psykar.com/ekfbot/internal/geom"
	"psykar.com/ekfbot/internal/robot"
	"psykar.com/ekfbot/internal/sensor"
)

// Snapshot is a read-only copy of everything a renderer or logger needs
// after a tick.
type Snapshot struct {
	Tick int

	Pose    geom.Pose
	Command robot.Command

	Rays         []sensor.Ray
	Detections   sensor.Detections
	Measurements []ekf.Measurement

	Estimate   geom.Pose
	Covariance [3][3]float64
	// Ellipse is the zero value when the covariance could not be decomposed.
	Ellipse ekf.Ellipse
}

// Distances returns the ring readings in ring order.
func (s Snapshot) Distances() []float64 {
	return sensor.RingReading{Rays: s.Rays}.Distances()
}

func (s *Snapshot) fillEstimate(f *ekf.Filter) {
	s.Estimate = f.Pose()
	cov := f.Covariance()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s.Covariance[i][j] = cov.At(i, j)
		}
	}
	if e, err := f.Ellipse(); err == nil {
		s.Ellipse = e
	}
}
