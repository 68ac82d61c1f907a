// Package sim owns one simulation run: the true robot, its sensors, the
// estimator and the controller, stepped together one tick at a time.
//
// Every tick runs the same sequence: the driver picks wheel speeds from the
// previous distance readings, the filter predicts from that command, the
// robot moves and resolves collisions, the sensors read the new true pose,
// and the filter corrects from noisy landmark measurements.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/jdeal-mediamath/clockwork"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"psykar.com/ekfbot/internal/config"
	"psykar.com/ekfbot/internal/driver"
	"psykar.com/ekfbot/internal/ekf"
	"psykar.com/ekfbot/internal/geom"
	"psykar.com/ekfbot/internal/logging"
	"psykar.com/ekfbot/internal/robot"
	"psykar.com/ekfbot/internal/sensor"
	"psykar.com/ekfbot/internal/world"
)

// maxCatchup bounds how many ticks Advance runs after a stall.
const maxCatchup = 10

// Simulation is the explicit state of one run. It is not safe for
// concurrent use; separate runs share nothing but the read-only map.
type Simulation struct {
	Map    *world.Map
	Robot  *robot.Robot
	Ring   *sensor.Ring
	Beacon *sensor.LandmarkSensor
	Filter *ekf.Filter
	Driver driver.Driver

	sensors []sensor.Sensor

	dt      float64
	step    time.Duration
	clock   clockwork.Clock
	last    time.Time
	pending time.Duration

	distNoise    distuv.Normal
	bearingNoise distuv.Normal

	tick   int
	halted error
	snap   Snapshot

	logger *slog.Logger
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithClock sets the clock Advance reads. The default is the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Simulation) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) {
		s.logger = l
	}
}

// New builds a simulation of cfg in m driven by d. A nil driver stands
// still.
func New(cfg *config.Config, m *world.Map, d driver.Driver, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	convention, err := sensor.ParseBearingConvention(cfg.Sensors.BearingConvention)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = driver.Constant{}
	}

	s := &Simulation{
		Map:    m,
		Driver: d,
		dt:     cfg.Sim.DT,
		step:   time.Duration(cfg.Sim.DT * float64(time.Second)),
		distNoise: distuv.Normal{
			Sigma: cfg.Sim.DistanceNoise,
			Src:   rand.NewSource(cfg.Sim.Seed),
		},
		bearingNoise: distuv.Normal{
			Sigma: cfg.Sim.BearingNoise,
			Src:   rand.NewSource(cfg.Sim.Seed + 1),
		},
	}
	for _, o := range opts {
		o(s)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	s.logger = logging.OrDiscard(s.logger)
	s.last = s.clock.Now()

	s.Robot = robot.New(cfg.Robot.StartX, cfg.Robot.StartY, cfg.Robot.StartTheta)
	s.Robot.Radius = cfg.Robot.Radius
	s.Robot.Power = cfg.Robot.Power

	s.Ring = sensor.NewRing(cfg.Sensors.Count, cfg.Sensors.Length, cfg.Robot.Radius)
	s.Beacon = sensor.NewLandmarkSensor(cfg.Sensors.LandmarkRange)
	s.Beacon.Convention = convention
	s.sensors = []sensor.Sensor{s.Ring, s.Beacon}

	filterOpts := []ekf.Option{ekf.WithLogger(s.logger)}
	if cfg.Filter.RecordEllipses {
		filterOpts = append(filterOpts, ekf.WithEllipses())
	}
	s.Filter, err = ekf.New(s.Robot.Pose(),
		ekf.Diagonal(cfg.Filter.InitialCovariance...),
		ekf.Diagonal(cfg.Filter.ProcessNoise...),
		ekf.Diagonal(cfg.Filter.MeasurementNoise...),
		filterOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating filter: %w", err)
	}

	s.snap = s.snapshot(robot.Command{})
	s.sense(&s.snap)
	return s, nil
}

// Tick is the number of completed ticks.
func (s *Simulation) Tick() int {
	return s.tick
}

// DT is the tick length in seconds.
func (s *Simulation) DT() float64 {
	return s.dt
}

// TickDuration is the tick length as a duration.
func (s *Simulation) TickDuration() time.Duration {
	return s.step
}

// Err is the error that halted the simulation, if any.
func (s *Simulation) Err() error {
	return s.halted
}

// Snapshot returns the state after the last completed tick.
func (s *Simulation) Snapshot() Snapshot {
	return s.snap
}

// Step runs one tick.
func (s *Simulation) Step() (Snapshot, error) {
	return s.stepContext(context.Background())
}

// Run steps n ticks or until ctx is done.
func (s *Simulation) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.stepContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Advance runs as many ticks as fit in the time the clock has moved since
// the last call, at most maxCatchup. It returns the number of ticks run.
func (s *Simulation) Advance() (int, error) {
	now := s.clock.Now()
	s.pending += now.Sub(s.last)
	s.last = now

	n := 0
	for s.pending >= s.step {
		if n == maxCatchup {
			s.logger.Debug("dropping simulation time", "behind", s.pending)
			s.pending = 0
			break
		}
		if _, err := s.Step(); err != nil {
			return n, err
		}
		s.pending -= s.step
		n++
	}
	return n, nil
}

// Resync forgets the time elapsed since the last Advance.
func (s *Simulation) Resync() {
	s.last = s.clock.Now()
	s.pending = 0
}

func (s *Simulation) stepContext(ctx context.Context) (Snapshot, error) {
	if s.halted != nil {
		return s.snap, ErrHalted
	}

	cmd := s.Driver.Drive(driver.Inputs{
		Distances: s.snap.Distances(),
		MaxRange:  s.Ring.MaxRange(),
		Tick:      s.tick,
	})
	s.Robot.Apply(cmd)

	v, omega := cmd.Control(s.Robot.Radius)
	s.Filter.Predict(v, omega, s.dt)

	s.Robot.Update(s.dt, s.Map.Walls)

	next := s.snapshot(cmd)
	s.sense(&next)

	if err := s.Filter.Update(next.Measurements, s.Map); err != nil {
		return s.halt(ctx, &TickError{Tick: s.tick, Op: "update", Err: err})
	}
	next.fillEstimate(s.Filter)

	s.tick++
	next.Tick = s.tick
	s.snap = next

	s.logger.Log(ctx, logging.LevelTrace, "tick",
		"n", s.tick,
		"pose", next.Pose,
		"estimate", next.Estimate,
		"detections", len(next.Detections))
	return s.snap, nil
}

func (s *Simulation) halt(ctx context.Context, err *TickError) (Snapshot, error) {
	s.halted = err
	attrs := []any{"tick", err.Tick, "op", err.Op, "error", err.Err}

	var sing *ekf.SingularityError
	if errors.As(err, &sing) {
		attrs = append(attrs, "matrices", sing.Matrices())
	}
	s.logger.Log(ctx, slog.LevelError, "estimator failed, halting simulation", attrs...)
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.Debug("last good snapshot", "dump", spew.Sdump(s.snap))
	}
	return s.snap, err
}

func (s *Simulation) snapshot(cmd robot.Command) Snapshot {
	snap := Snapshot{
		Tick:    s.tick,
		Pose:    s.Robot.Pose(),
		Command: cmd,
	}
	snap.fillEstimate(s.Filter)
	return snap
}

// sense reads every sensor at the true pose and turns the detections into
// noisy measurements for the filter.
func (s *Simulation) sense(snap *Snapshot) {
	for _, sn := range s.sensors {
		switch r := sn.Sense(snap.Pose, s.Map).(type) {
		case sensor.RingReading:
			snap.Rays = r.Rays
		case sensor.Detections:
			snap.Detections = r
		}
	}

	snap.Measurements = make([]ekf.Measurement, 0, len(snap.Detections))
	for _, d := range snap.Detections {
		snap.Measurements = append(snap.Measurements, ekf.Measurement{
			Distance: d.Distance + s.distNoise.Rand(),
			Bearing:  geom.WrapAngle(d.Bearing + s.bearingNoise.Rand()),
			Landmark: d.Landmark.ID,
		})
	}
}
