// Package robot implements the differential drive robot: wheel commands,
// pose integration and sliding collision response against walls.
package robot

import (
	"math"

	"github.com/faiface/pixel"

	"psykar.com/ekfbot/internal/geom"
)

// Defaults taken from the reference robot.
const (
	DefaultRadius = 20.0
	DefaultPower  = 100.0
)

// Command is one tick of wheel speed targets.
type Command struct {
	Left, Right float64
}

// Control converts wheel speeds into forward and angular speed for a robot
// with the given radius. The wheel separation is twice the radius.
func (c Command) Control(radius float64) (v, omega float64) {
	l := 2 * radius
	return (c.Right + c.Left) / 2, (c.Right - c.Left) / l
}

// Robot is the ground truth robot state. It is owned by the simulation and
// only mutated through its methods.
type Robot struct {
	X, Y        float64
	Orientation float64

	Radius float64
	Power  float64

	VLeft, VRight float64

	V         float64
	Omega     float64
	Direction float64
	// Velocity is the displacement actually applied last tick divided by dt.
	Velocity pixel.Vec

	Path []pixel.Vec
}

// New places a robot at (x, y) facing orientation.
func New(x, y, orientation float64) *Robot {
	return &Robot{
		X:           x,
		Y:           y,
		Orientation: geom.WrapAngle(orientation),
		Radius:      DefaultRadius,
		Power:       DefaultPower,
		Direction:   1,
	}
}

// Pose returns the current pose.
func (r *Robot) Pose() geom.Pose {
	return geom.Pose{X: r.X, Y: r.Y, Theta: r.Orientation}
}

// Pos returns the current position.
func (r *Robot) Pos() pixel.Vec {
	return pixel.V(r.X, r.Y)
}

// LeftMotor switches the left wheel to full power forward or backward, or
// stops it.
func (r *Robot) LeftMotor(on, forward bool) {
	r.VLeft = r.motor(on, forward)
}

// RightMotor is LeftMotor for the right wheel.
func (r *Robot) RightMotor(on, forward bool) {
	r.VRight = r.motor(on, forward)
}

func (r *Robot) motor(on, forward bool) float64 {
	switch {
	case !on:
		return 0
	case forward:
		return r.Power
	default:
		return -r.Power
	}
}

// Apply sets both wheel speeds.
func (r *Robot) Apply(c Command) {
	r.VLeft = c.Left
	r.VRight = c.Right
}

// Command returns the wheel speeds currently set.
func (r *Robot) Command() Command {
	return Command{Left: r.VLeft, Right: r.VRight}
}

// Update advances the robot by dt seconds, sliding along walls it would
// otherwise drive into.
func (r *Robot) Update(dt float64, walls []geom.Wall) {
	r.V, r.Omega = r.Command().Control(r.Radius)

	r.Direction = 1
	if r.V < 0 {
		r.Direction = -1
	}

	r.Orientation = geom.WrapAngle(r.Orientation + r.Omega*dt)

	cos, sin := math.Cos(r.Orientation), math.Sin(r.Orientation)
	dx := r.V * dt * cos
	dy := r.V * dt * sin

	from := r.Pos()
	to := from.Add(pixel.V(dx, dy))

	// first hit wins, not the nearest one
	for _, w := range walls {
		if !geom.ThickIntersects(from, to, r.Radius, w) {
			continue
		}
		motion := pixel.V(r.Direction*r.Power*cos, r.Direction*r.Power*sin)
		along := w.Dir.Scaled(motion.Dot(w.Dir))
		dx = along.X * dt
		dy = along.Y * dt
		break
	}

	to = from.Add(pixel.V(dx, dy))
	for _, w := range walls {
		if geom.ThickIntersects(from, to, r.Radius, w) {
			// sliding still penetrates something, usually a corner
			dx, dy = 0, 0
			break
		}
	}

	r.X += dx
	r.Y += dy
	r.Path = append(r.Path, r.Pos())
	if dt != 0 {
		r.Velocity = pixel.V(dx/dt, dy/dt)
	} else {
		r.Velocity = pixel.ZV
	}
}
