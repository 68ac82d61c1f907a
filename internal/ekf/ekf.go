// Package ekf is an extended Kalman filter over the planar robot pose
// (x, y, θ). It predicts from commanded forward/angular speed and corrects
// from range/bearing observations of landmarks whose positions are known.
//
// A Filter is not safe for concurrent use. Predict and Update mutate the
// belief in place.
package ekf

import (
	"log/slog"
	"math"

	"github.com/faiface/pixel"
	"gonum.org/v1/gonum/mat"

	"psykar.com/ekfbot/internal/geom"
	"psykar.com/ekfbot/internal/logging"
)

// Measurement is one range/bearing observation of a landmark.
type Measurement struct {
	Distance float64
	Bearing  float64
	Landmark int
}

// Landmarks resolves measurement correspondences to world positions.
type Landmarks interface {
	Landmark(id int) (geom.Landmark, bool)
}

// Filter holds the belief μ, Σ and the fixed noise models.
type Filter struct {
	mu    *mat.VecDense
	sigma *mat.Dense

	q *mat.Dense
	r *mat.Dense

	// Path is the estimated position after every Update.
	Path []pixel.Vec
	// Ellipses is the covariance ellipse after every Update, when
	// RecordEllipses is set.
	Ellipses       []Ellipse
	RecordEllipses bool

	logger *slog.Logger
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger used for skipped measurements.
func WithLogger(l *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = l
	}
}

// WithEllipses records the covariance ellipse after every Update.
func WithEllipses() Option {
	return func(f *Filter) {
		f.RecordEllipses = true
	}
}

// New builds a filter from a prior pose, a 3x3 prior covariance, 3x3 process
// noise Q and 2x2 measurement noise R. The matrices are copied.
func New(prior geom.Pose, cov, q, r mat.Matrix, opts ...Option) (*Filter, error) {
	if err := checkDims("prior covariance", cov, 3, 3); err != nil {
		return nil, err
	}
	if err := checkDims("process noise", q, 3, 3); err != nil {
		return nil, err
	}
	if err := checkDims("measurement noise", r, 2, 2); err != nil {
		return nil, err
	}

	f := &Filter{
		mu:    mat.NewVecDense(3, []float64{prior.X, prior.Y, geom.WrapAngle(prior.Theta)}),
		sigma: mat.DenseCopyOf(cov),
		q:     mat.DenseCopyOf(q),
		r:     mat.DenseCopyOf(r),
	}
	for _, o := range opts {
		o(f)
	}
	f.logger = logging.OrDiscard(f.logger)
	return f, nil
}

// Diagonal is a convenience for building diagonal noise matrices.
func Diagonal(d ...float64) *mat.Dense {
	n := len(d)
	m := mat.NewDense(n, n, nil)
	for i, v := range d {
		m.Set(i, i, v)
	}
	return m
}

// Pose returns the mean.
func (f *Filter) Pose() geom.Pose {
	return geom.Pose{X: f.mu.AtVec(0), Y: f.mu.AtVec(1), Theta: f.mu.AtVec(2)}
}

// Mean returns a copy of μ.
func (f *Filter) Mean() []float64 {
	return []float64{f.mu.AtVec(0), f.mu.AtVec(1), f.mu.AtVec(2)}
}

// Covariance returns a copy of Σ.
func (f *Filter) Covariance() *mat.Dense {
	return mat.DenseCopyOf(f.sigma)
}

// Trace is the trace of Σ.
func (f *Filter) Trace() float64 {
	return mat.Trace(f.sigma)
}

// Predict propagates the belief through the unicycle model for commanded
// forward speed v and angular speed omega over dt. Walls are unknown to the
// filter.
func (f *Filter) Predict(v, omega, dt float64) {
	theta := geom.WrapAngle(f.mu.AtVec(2) + omega*dt)
	cos, sin := math.Cos(theta), math.Sin(theta)

	f.mu.SetVec(0, f.mu.AtVec(0)+v*cos*dt)
	f.mu.SetVec(1, f.mu.AtVec(1)+v*sin*dt)
	f.mu.SetVec(2, theta)

	// linearised at the post-rotation heading
	F := mat.NewDense(3, 3, []float64{
		1, 0, -v * sin * dt,
		0, 1, v * cos * dt,
		0, 0, 1,
	})

	var fs, fsft mat.Dense
	fs.Mul(F, f.sigma)
	fsft.Mul(&fs, F.T())
	f.sigma.Add(&fsft, f.q)
}

// Update applies each measurement in turn. Unknown landmarks are skipped.
// A singular innovation covariance aborts the remaining measurements and is
// returned as a *SingularityError; the belief keeps the corrections applied
// before it.
func (f *Filter) Update(ms []Measurement, landmarks Landmarks) error {
	for _, m := range ms {
		l, ok := landmarks.Landmark(m.Landmark)
		if !ok {
			f.logger.Debug("skipping measurement of unknown landmark", "landmark", m.Landmark)
			continue
		}
		if err := f.correct(m, l.Pos); err != nil {
			return err
		}
	}
	if err := f.checkFinite(); err != nil {
		return err
	}

	f.Path = append(f.Path, pixel.V(f.mu.AtVec(0), f.mu.AtVec(1)))
	if f.RecordEllipses {
		e, err := f.Ellipse()
		if err != nil {
			return err
		}
		f.Ellipses = append(f.Ellipses, e)
	}
	return nil
}

func (f *Filter) correct(m Measurement, lm pixel.Vec) error {
	x, y, theta := f.mu.AtVec(0), f.mu.AtVec(1), f.mu.AtVec(2)
	dx := lm.X - x
	dy := lm.Y - y
	d := math.Hypot(dx, dy)

	H := mat.NewDense(2, 3, []float64{
		-dx / d, -dy / d, 0,
		dy / (d * d), -dx / (d * d), -1,
	})
	if d == 0 {
		return &SingularityError{Measurement: m, Reason: "landmark at estimated position", H: H, Sigma: f.Covariance()}
	}

	expDist := d
	expBearing := math.Atan2(dy, dx) - theta
	res := mat.NewVecDense(2, []float64{
		m.Distance - expDist,
		geom.WrapSigned(m.Bearing - expBearing),
	})

	// S = HΣHᵀ + R
	var hs, S mat.Dense
	hs.Mul(H, f.sigma)
	S.Mul(&hs, H.T())
	S.Add(&S, f.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&S); err != nil {
		return &SingularityError{
			Measurement: m,
			Reason:      "innovation covariance is not invertible",
			H:           H,
			Sigma:       f.Covariance(),
			S:           mat.DenseCopyOf(&S),
			Err:         err,
		}
	}

	// K = ΣHᵀS⁻¹
	var sht, K mat.Dense
	sht.Mul(f.sigma, H.T())
	K.Mul(&sht, &sInv)

	var step mat.VecDense
	step.MulVec(&K, res)
	f.mu.AddVec(f.mu, &step)
	f.mu.SetVec(2, geom.WrapAngle(f.mu.AtVec(2)))

	// Σ = (I - KH)Σ
	var kh, ikh, next mat.Dense
	kh.Mul(&K, H)
	ikh.Sub(eye(3), &kh)
	next.Mul(&ikh, f.sigma)
	symmetrize(&next)
	f.sigma.Copy(&next)
	return nil
}

func (f *Filter) checkFinite() error {
	for i := 0; i < 3; i++ {
		if v := f.mu.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
		for j := 0; j < 3; j++ {
			if v := f.sigma.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return ErrNonFinite
			}
		}
	}
	return nil
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// symmetrize replaces m with (m + mᵀ)/2 to drop rounding asymmetry.
func symmetrize(m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			v := (m.At(i, j) + m.At(j, i)) / 2
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}

func checkDims(name string, m mat.Matrix, r, c int) error {
	if m == nil {
		return &DimensionError{Name: name, WantR: r, WantC: c}
	}
	gr, gc := m.Dims()
	if gr != r || gc != c {
		return &DimensionError{Name: name, WantR: r, WantC: c, GotR: gr, GotC: gc}
	}
	return nil
}
