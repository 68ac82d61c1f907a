package ekf

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrNonFinite means the belief picked up a NaN or Inf.
var ErrNonFinite = errors.New("ekf: belief is not finite")

// SingularityError is returned when a measurement cannot be applied because
// its innovation covariance cannot be inverted. It carries the matrices
// involved for diagnostics.
type SingularityError struct {
	Measurement Measurement
	Reason      string

	H     *mat.Dense
	Sigma *mat.Dense
	S     *mat.Dense

	Err error
}

func (e *SingularityError) Error() string {
	msg := fmt.Sprintf("ekf: %s (landmark %d, distance %.4f, bearing %.4f)",
		e.Reason, e.Measurement.Landmark, e.Measurement.Distance, e.Measurement.Bearing)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SingularityError) Unwrap() error {
	return e.Err
}

// Matrices formats H, Σ and S for a log line or a crash report.
func (e *SingularityError) Matrices() string {
	out := ""
	for _, m := range []struct {
		name string
		m    *mat.Dense
	}{{"H", e.H}, {"Sigma", e.Sigma}, {"S", e.S}} {
		if m.m == nil {
			continue
		}
		out += fmt.Sprintf("%s =\n%v\n", m.name, mat.Formatted(m.m, mat.Prefix("    "), mat.Squeeze()))
	}
	return out
}

// DimensionError reports a noise or covariance matrix of the wrong shape.
type DimensionError struct {
	Name         string
	WantR, WantC int
	GotR, GotC   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("ekf: %s must be %dx%d, got %dx%d", e.Name, e.WantR, e.WantC, e.GotR, e.GotC)
}
