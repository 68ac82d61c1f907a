package ekf

import (
	"errors"
	"math"

	"github.com/faiface/pixel"
	"gonum.org/v1/gonum/mat"
)

// chi2_95 is the 95% quantile of the chi-square distribution with two
// degrees of freedom.
const chi2_95 = 5.991

// Ellipse is the 95% confidence region of the position estimate.
type Ellipse struct {
	Center pixel.Vec
	// Major and Minor are full axis lengths.
	Major, Minor float64
	// Angle is the direction of the major axis, radians from +x.
	Angle float64
}

var errEigen = errors.New("ekf: eigen decomposition of position covariance failed")

// Ellipse extracts the confidence ellipse from the position block of Σ.
func (f *Filter) Ellipse() (Ellipse, error) {
	pos := mat.NewSymDense(2, []float64{
		f.sigma.At(0, 0), f.sigma.At(0, 1),
		f.sigma.At(0, 1), f.sigma.At(1, 1),
	})

	var eig mat.EigenSym
	if ok := eig.Factorize(pos, true); !ok {
		return Ellipse{}, errEigen
	}
	// ascending order
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	return Ellipse{
		Center: pixel.V(f.mu.AtVec(0), f.mu.AtVec(1)),
		Major:  axis(vals[1]),
		Minor:  axis(vals[0]),
		Angle:  math.Atan2(vecs.At(1, 1), vecs.At(0, 1)),
	}, nil
}

// Points traces the closed outline with n segments, so the first and last
// of the n+1 points coincide.
func (e Ellipse) Points(n int) []pixel.Vec {
	a, b := e.Major/2, e.Minor/2
	cos, sin := math.Cos(e.Angle), math.Sin(e.Angle)
	pts := make([]pixel.Vec, n+1)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / float64(n)
		x, y := a*math.Cos(t), b*math.Sin(t)
		pts[i] = e.Center.Add(pixel.V(x*cos-y*sin, x*sin+y*cos))
	}
	return pts
}

func axis(eigenvalue float64) float64 {
	// rounding can leave a PSD matrix with a tiny negative eigenvalue
	return 2 * math.Sqrt(chi2_95*math.Max(0, eigenvalue))
}
