package sensor

import (
	"math"
	"testing"

	"github.com/faiface/pixel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psykar.com/ekfbot/internal/geom"
	"psykar.com/ekfbot/internal/world"
)

func TestRingMaxRangeWithoutWalls(t *testing.T) {
	ring := NewRing(DefaultRingSize, DefaultLength, 20)
	reading := ring.Read(geom.Pose{X: 10, Y: -4, Theta: 1.3}, nil)

	require.Len(t, reading.Rays, 12)
	for _, d := range reading.Distances() {
		assert.Equal(t, 100.0, d)
	}
	for _, ray := range reading.Rays {
		assert.False(t, ray.Hit)
	}
}

func TestRingAngles(t *testing.T) {
	ring := NewRing(12, 120, 20)
	for i, a := range ring.Angles {
		assert.InDelta(t, geom.Radians(float64(30*i)), a, 1e-12)
	}
}

func TestRingDistanceFromRayStart(t *testing.T) {
	m := world.New()
	m.AddWall(70, -50, 70, 50)

	ring := NewRing(4, 120, 20)
	reading := ring.Sense(geom.Pose{}, m).(RingReading)

	front := reading.Rays[0]
	require.True(t, front.Hit)
	assert.InDelta(t, 50, front.Distance, 1e-9, "measured from the robot edge, not its centre")
	assert.InDelta(t, 70, front.Point.X, 1e-9)
	assert.InDelta(t, 20, front.Start.X, 1e-12)
	assert.InDelta(t, 120, front.End.X, 1e-12)

	for _, ray := range reading.Rays[1:] {
		assert.False(t, ray.Hit)
		assert.Equal(t, 100.0, ray.Distance)
	}
}

func TestRingNearestWallWins(t *testing.T) {
	walls := []geom.Wall{
		geom.NewWall(90, -50, 90, 50),
		geom.NewWall(40, -50, 40, 50),
	}
	reading := NewRing(1, 120, 20).Read(geom.Pose{}, walls)
	assert.InDelta(t, 20, reading.Rays[0].Distance, 1e-9)
}

func TestRingGrazingEndpoint(t *testing.T) {
	// wall ends exactly on the forward ray
	walls := []geom.Wall{geom.NewWall(60, 0, 60, 40)}
	reading := NewRing(1, 120, 20).Read(geom.Pose{}, walls)

	ray := reading.Rays[0]
	require.True(t, ray.Hit)
	assert.InDelta(t, 40, ray.Distance, 1e-9)
}

func TestRingIgnoresDegenerateWalls(t *testing.T) {
	walls := []geom.Wall{geom.NewWall(60, 0, 60, 0)}
	reading := NewRing(1, 120, 20).Read(geom.Pose{}, walls)
	assert.False(t, reading.Rays[0].Hit)
	assert.Equal(t, 100.0, reading.Rays[0].Distance)
}

func TestLandmarkRangeIsStrict(t *testing.T) {
	landmarks := []geom.Landmark{
		{ID: 1, Pos: pixel.V(200, 0)},
		{ID: 2, Pos: pixel.V(199.5, 0)},
	}
	s := NewLandmarkSensor(200)
	got := s.Detect(geom.Pose{}, landmarks, nil)

	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Landmark.ID)
	assert.InDelta(t, 199.5, got[0].Distance, 1e-12)
}

func TestLandmarkOcclusion(t *testing.T) {
	m := world.New()
	m.AddWall(50, -30, 50, 30)
	m.AddLandmark(geom.Landmark{ID: 3, Pos: pixel.V(100, 0)})

	s := NewLandmarkSensor(DefaultLandmarkRange)

	hidden := s.Sense(geom.Pose{X: 0, Y: 0}, m).(Detections)
	assert.Empty(t, hidden, "wall sits between robot and landmark")

	visible := s.Sense(geom.Pose{X: 0, Y: 80}, m).(Detections)
	require.Len(t, visible, 1)
	assert.Equal(t, 3, visible[0].Landmark.ID)
}

func TestLandmarkOnWallEndpointIsVisible(t *testing.T) {
	m := world.New()
	m.AddSquare(100, 100, 50)
	m.ExtractFeatures(world.DefaultFeatureRadius)

	got := NewLandmarkSensor(150).Detect(geom.Pose{X: 50, Y: 50}, m.Landmarks, m.Walls)

	// the corner facing the robot is visible, the far corner is hidden by
	// the square itself
	var ids []int
	for _, d := range got {
		ids = append(ids, d.Landmark.ID)
		assert.NotEqual(t, pixel.V(150, 150), d.Landmark.Pos)
	}
	assert.Contains(t, ids, 0)
}

func TestLandmarkBearingConventions(t *testing.T) {
	landmarks := []geom.Landmark{{ID: 0, Pos: pixel.V(0, 100)}}
	pose := geom.Pose{Theta: 0}

	north := NewLandmarkSensor(200).Detect(pose, landmarks, nil)
	require.Len(t, north, 1)
	// straight up is 0 from the y axis
	assert.InDelta(t, 0, north[0].Bearing, 1e-12)

	s := &LandmarkSensor{Range: 200, Convention: East}
	east := s.Detect(pose, landmarks, nil)
	require.Len(t, east, 1)
	assert.InDelta(t, math.Pi/2, east[0].Bearing, 1e-12)
	assert.InDelta(t, 90, east[0].BearingDegrees(), 1e-9)

	turned := s.Detect(geom.Pose{Theta: math.Pi}, landmarks, nil)
	assert.InDelta(t, 3*math.Pi/2, turned[0].Bearing, 1e-12)
}

func TestParseBearingConvention(t *testing.T) {
	c, err := ParseBearingConvention("EAST")
	require.NoError(t, err)
	assert.Equal(t, East, c)

	c, err = ParseBearingConvention("north")
	require.NoError(t, err)
	assert.Equal(t, North, c)

	_, err = ParseBearingConvention("up")
	assert.Error(t, err)
}
