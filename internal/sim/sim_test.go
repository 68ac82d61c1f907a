package sim

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/faiface/pixel"
	"github.com/google/go-cmp/cmp"
	"github.com/jdeal-mediamath/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"psykar.com/ekfbot/internal/config"
	"psykar.com/ekfbot/internal/driver"
	"psykar.com/ekfbot/internal/ekf"
	"psykar.com/ekfbot/internal/geom"
	"psykar.com/ekfbot/internal/logging"
	"psykar.com/ekfbot/internal/robot"
	"psykar.com/ekfbot/internal/world"
)

func arena() *world.Map {
	return world.Arena(400, 400, 300)
}

func wander() driver.Script {
	return driver.Script{
		{Ticks: 90, Command: robot.Command{Left: 100, Right: 100}},
		{Ticks: 25, Command: robot.Command{Left: -60, Right: 60}},
		{Ticks: 60, Command: robot.Command{Left: 80, Right: 100}},
		{Ticks: 20, Command: robot.Command{Left: -100, Right: -100}},
	}
}

func newSim(t *testing.T, cfg *config.Config, m *world.Map, d driver.Driver, opts ...Option) *Simulation {
	t.Helper()
	s, err := New(cfg, m, d, opts...)
	require.NoError(t, err)
	return s
}

func TestStraightLineTick(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.DT = 1
	cfg.Robot.StartX, cfg.Robot.StartY, cfg.Robot.StartTheta = 0, 0, 0

	s := newSim(t, cfg, world.New(), driver.Constant{Left: 50, Right: 50})
	snap, err := s.Step()
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Tick)
	assert.InDelta(t, 50, snap.Pose.X, 1e-12)
	assert.InDelta(t, 0, snap.Pose.Y, 1e-12)
	assert.Equal(t, 0.0, snap.Pose.Theta)
	assert.Equal(t, robot.Command{Left: 50, Right: 50}, snap.Command)
}

func TestEstimateFollowsUnobstructedMotion(t *testing.T) {
	cfg := config.Default()
	cfg.Filter.ProcessNoise = []float64{0, 0, 0}

	// no walls and no landmarks, so prediction alone must track the robot
	s := newSim(t, cfg, world.New(), wander())
	require.NoError(t, s.Run(context.Background(), 400))

	snap := s.Snapshot()
	assert.InDelta(t, snap.Pose.X, snap.Estimate.X, 1e-6)
	assert.InDelta(t, snap.Pose.Y, snap.Estimate.Y, 1e-6)
	assert.InDelta(t, 0, geom.WrapSigned(snap.Pose.Theta-snap.Estimate.Theta), 1e-9)
	assert.Len(t, s.Filter.Path, 400)
	assert.Len(t, s.Robot.Path, 400)
}

func TestSimulationIsDeterministic(t *testing.T) {
	run := func(seed uint64) ([]Snapshot, []pixel.Vec) {
		cfg := config.Default()
		cfg.Sim.Seed = seed
		cfg.Filter.RecordEllipses = true
		d := driver.NewSeededNeuralDriver(cfg.Sensors.Count, cfg.Robot.Power, rand.NewSource(5))

		s := newSim(t, cfg, arena(), d)
		var snaps []Snapshot
		for i := 0; i < 300; i++ {
			snap, err := s.Step()
			require.NoError(t, err)
			snaps = append(snaps, snap)
		}
		return snaps, s.Filter.Path
	}

	a, pathA := run(3)
	b, pathB := run(3)
	assert.Empty(t, cmp.Diff(a, b))
	assert.Empty(t, cmp.Diff(pathA, pathB))

	c, _ := run(4)
	assert.NotEmpty(t, cmp.Diff(a, c), "a different seed draws different noise")
}

func TestSnapshotContents(t *testing.T) {
	cfg := config.Default()
	s := newSim(t, cfg, arena(), driver.Constant{})

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Tick)
	assert.Len(t, snap.Rays, 12)
	assert.Len(t, snap.Distances(), 12)

	// from (300, 400) only the two near corners of the inner square are
	// closer than 200 and in sight
	var ids []int
	for _, d := range snap.Detections {
		ids = append(ids, d.Landmark.ID)
		assert.Less(t, d.Distance, cfg.Sensors.LandmarkRange)
	}
	assert.Len(t, ids, 2)
	assert.Len(t, snap.Measurements, 2)

	assert.Greater(t, snap.Ellipse.Major, 0.0)
	assert.Equal(t, 1.0, snap.Covariance[0][0])
}

func TestRobotStaysOutOfWalls(t *testing.T) {
	cfg := config.Default()
	m := arena()
	s := newSim(t, cfg, m, wander())

	for i := 0; i < 2000; i++ {
		snap, err := s.Step()
		require.NoError(t, err)
		for _, w := range m.Walls {
			d := geom.PointSegmentDistance(snap.Pose.Vec(), w.A, w.B)
			require.GreaterOrEqual(t, d, cfg.Robot.Radius-1e-6, "tick %d wall %v", i, w)
		}
	}
}

func TestFilterConvergesInArena(t *testing.T) {
	cfg := config.Default()
	cfg.Filter.InitialCovariance = []float64{100, 100, 0.1}
	s := newSim(t, cfg, arena(), driver.Constant{})

	start := s.Filter.Trace()
	require.NoError(t, s.Run(context.Background(), 600))

	snap := s.Snapshot()
	assert.Less(t, s.Filter.Trace(), start)
	assert.InDelta(t, snap.Pose.X, snap.Estimate.X, 1)
	assert.InDelta(t, snap.Pose.Y, snap.Estimate.Y, 1)
}

func TestSingularUpdateHalts(t *testing.T) {
	cfg := config.Default()
	cfg.Filter.InitialCovariance = []float64{0, 0, 0}
	cfg.Filter.ProcessNoise = []float64{0, 0, 0}
	cfg.Filter.MeasurementNoise = []float64{0, 0}
	cfg.Sim.DistanceNoise, cfg.Sim.BearingNoise = 0, 0

	m := world.New()
	m.AddLandmark(geom.Landmark{ID: 7, Pos: pixel.V(350, 400)})

	var buf bytes.Buffer
	s := newSim(t, cfg, m, driver.Constant{}, WithLogger(logging.NewLogger("info", &buf)))

	_, err := s.Step()
	var tickErr *TickError
	require.True(t, errors.As(err, &tickErr))
	assert.Equal(t, 0, tickErr.Tick)
	assert.Equal(t, "update", tickErr.Op)

	var sing *ekf.SingularityError
	require.True(t, errors.As(err, &sing))
	assert.Equal(t, 7, sing.Measurement.Landmark)

	assert.Contains(t, buf.String(), "halting simulation")
	assert.Contains(t, buf.String(), "tick=0")

	_, err = s.Step()
	assert.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, tickErr, s.Err())
	assert.Equal(t, 0, s.Tick())
}

func TestAdvanceFollowsClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newSim(t, config.Default(), arena(), wander(), WithClock(clock))
	step := s.TickDuration()

	clock.Advance(3 * step)
	n, err := s.Advance()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	clock.Advance(step / 2)
	n, _ = s.Advance()
	assert.Equal(t, 0, n)

	clock.Advance(step - step/2)
	n, _ = s.Advance()
	assert.Equal(t, 1, n)

	clock.Advance(time.Minute)
	n, _ = s.Advance()
	assert.Equal(t, maxCatchup, n)
	n, _ = s.Advance()
	assert.Equal(t, 0, n, "a stall drops the backlog")

	assert.Equal(t, 3+1+maxCatchup, s.Tick())

	clock.Advance(5 * step)
	s.Resync()
	n, _ = s.Advance()
	assert.Equal(t, 0, n, "resync forgets paused time")
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newSim(t, config.Default(), arena(), driver.Constant{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Tick())
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.DT = 0
	_, err := New(cfg, arena(), nil)
	assert.ErrorContains(t, err, "invalid config")
}

func TestTraceLogging(t *testing.T) {
	var buf bytes.Buffer
	s := newSim(t, config.Default(), arena(), nil, WithLogger(logging.NewLogger("trace", &buf)))
	_, err := s.Step()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "level=TRACE")
	assert.Contains(t, buf.String(), "n=1")
}

func TestNorthConventionStillSenses(t *testing.T) {
	cfg := config.Default()
	cfg.Sensors.BearingConvention = "north"
	s := newSim(t, cfg, arena(), nil)

	snap := s.Snapshot()
	require.NotEmpty(t, snap.Detections)
	for _, d := range snap.Detections {
		dx := d.Landmark.Pos.X - snap.Pose.X
		dy := d.Landmark.Pos.Y - snap.Pose.Y
		assert.InDelta(t, geom.WrapAngle(math.Atan2(dx, dy)-snap.Pose.Theta), d.Bearing, 1e-12)
	}
}

func TestNonFiniteBeliefHalts(t *testing.T) {
	var buf bytes.Buffer
	s := newSim(t, config.Default(), world.New(), driver.Constant{Left: math.NaN(), Right: 1},
		WithLogger(logging.NewLogger("info", &buf)))

	_, err := s.Step()
	var tickErr *TickError
	require.True(t, errors.As(err, &tickErr))
	assert.Equal(t, "update", tickErr.Op)
	assert.ErrorIs(t, err, ekf.ErrNonFinite)
	assert.Contains(t, buf.String(), "halting simulation")

	_, err = s.Step()
	assert.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, 0, s.Tick())
}

func TestSmallTrainSectionDoesNotBlockSimulation(t *testing.T) {
	cfg := config.Default()
	cfg.Train.Population = 2
	_, err := New(cfg, arena(), nil)
	assert.NoError(t, err)
}
