package main

import (
	"github.com/faiface/pixel/pixelgl"

	"psykar.com/ekfbot/internal/driver"
	"psykar.com/ekfbot/internal/robot"
)

// ManualDriver reads the keyboard. Numpad 4/1 run the left wheel forward or
// back and 6/3 the right one. The arrow keys drive both wheels together.
type ManualDriver struct {
	win   *pixelgl.Window
	power float64
}

func NewManualDriver(win *pixelgl.Window, power float64) ManualDriver {
	return ManualDriver{win: win, power: power}
}

func (d ManualDriver) Drive(driver.Inputs) robot.Command {
	left := d.wheel(pixelgl.KeyKP4, pixelgl.KeyKP1)
	right := d.wheel(pixelgl.KeyKP6, pixelgl.KeyKP3)

	switch {
	case d.win.Pressed(pixelgl.KeyUp):
		left, right = d.power, d.power
	case d.win.Pressed(pixelgl.KeyDown):
		left, right = -d.power, -d.power
	case d.win.Pressed(pixelgl.KeyLeft):
		left, right = -d.power/2, d.power/2
	case d.win.Pressed(pixelgl.KeyRight):
		left, right = d.power/2, -d.power/2
	}
	return robot.Command{Left: left, Right: right}
}

func (d ManualDriver) wheel(forward, back pixelgl.Button) float64 {
	switch {
	case d.win.Pressed(forward):
		return d.power
	case d.win.Pressed(back):
		return -d.power
	default:
		return 0
	}
}

// defaultScript wanders without a trained controller.
func defaultScript() driver.Script {
	return driver.Script{
		{Ticks: 120, Command: robot.Command{Left: 100, Right: 100}},
		{Ticks: 40, Command: robot.Command{Left: -50, Right: 50}},
		{Ticks: 90, Command: robot.Command{Left: 100, Right: 80}},
		{Ticks: 30, Command: robot.Command{Left: -100, Right: -100}},
		{Ticks: 25, Command: robot.Command{Left: 60, Right: -60}},
	}
}
