// Package driver turns what the robot senses into wheel commands.
package driver

import (
	"psykar.com/ekfbot/internal/robot"
)

// Inputs is what a driver sees each tick.
type Inputs struct {
	// Distances is one reading per ring sensor, in ring order.
	Distances []float64
	// MaxRange is the reading of a sensor that sees nothing.
	MaxRange float64
	// Tick is the index of the current tick.
	Tick int
}

// Driver decides the wheel speeds for the next tick.
type Driver interface {
	Drive(Inputs) robot.Command
}

// Func adapts a plain function to a Driver.
type Func func(Inputs) robot.Command

func (f Func) Drive(i Inputs) robot.Command {
	return f(i)
}

// Constant always returns the same command.
type Constant robot.Command

func (c Constant) Drive(Inputs) robot.Command {
	return robot.Command(c)
}

// Step is one leg of a Script.
type Step struct {
	Ticks   int           `yaml:"ticks"`
	Command robot.Command `yaml:"command"`
}

// Script replays a fixed list of commands, looping when it runs out.
type Script []Step

func (s Script) Drive(i Inputs) robot.Command {
	total := 0
	for _, st := range s {
		total += st.Ticks
	}
	if total <= 0 {
		return robot.Command{}
	}
	t := i.Tick % total
	for _, st := range s {
		if t < st.Ticks {
			return st.Command
		}
		t -= st.Ticks
	}
	return robot.Command{}
}
