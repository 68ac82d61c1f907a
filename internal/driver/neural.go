package driver

import (
	"fmt"

	"github.com/NOX73/go-neural"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"psykar.com/ekfbot/internal/robot"
)

// Hidden is the size of the hidden layer of a default NeuralDriver.
const Hidden = 24

// NeuralDriver maps normalised distance readings through a feed forward
// network to two wheel speeds in [-Power, Power].
type NeuralDriver struct {
	network *neural.Network

	Inputs int
	Layers []int
	Power  float64
}

// NewNeuralDriver builds a driver for the given number of distance sensors
// with one hidden layer. Weights start random.
func NewNeuralDriver(sensors int, power float64) *NeuralDriver {
	d := newNeuralDriver(sensors, []int{Hidden, 2}, power)
	d.network.RandomizeSynapses()
	return d
}

// NewSeededNeuralDriver is NewNeuralDriver with weights drawn from a
// standard normal seeded by src.
func NewSeededNeuralDriver(sensors int, power float64, src rand.Source) *NeuralDriver {
	d := newNeuralDriver(sensors, []int{Hidden, 2}, power)
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	g := d.Genome()
	for i := range g {
		g[i] = noise.Rand()
	}
	// length always matches
	_ = d.SetGenome(g)
	return d
}

func newNeuralDriver(inputs int, layers []int, power float64) *NeuralDriver {
	// Last layer is network output.
	return &NeuralDriver{
		network: neural.NewNetwork(inputs, layers),
		Inputs:  inputs,
		Layers:  append([]int(nil), layers...),
		Power:   power,
	}
}

// Drive implements Driver.
func (d *NeuralDriver) Drive(i Inputs) robot.Command {
	in := make([]float64, d.Inputs)
	for k := range in {
		if k >= len(i.Distances) {
			break
		}
		if i.MaxRange > 0 {
			in[k] = i.Distances[k] / i.MaxRange
		}
	}
	out := d.network.Calculate(in)

	// sigmoid outputs in (0, 1)
	return robot.Command{
		Left:  (2*out[0] - 1) * d.Power,
		Right: (2*out[1] - 1) * d.Power,
	}
}

// Genome returns every synapse weight, layer by layer.
func (d *NeuralDriver) Genome() []float64 {
	var g []float64
	for _, l := range d.network.Layers {
		for _, n := range l.Neurons {
			for _, s := range n.InSynapses {
				g = append(g, s.Weight)
			}
		}
	}
	return g
}

// SetGenome overwrites every synapse weight.
func (d *NeuralDriver) SetGenome(g []float64) error {
	if want := d.GenomeLen(); len(g) != want {
		return fmt.Errorf("genome has %d weights, network needs %d", len(g), want)
	}
	i := 0
	for _, l := range d.network.Layers {
		for _, n := range l.Neurons {
			for _, s := range n.InSynapses {
				s.Weight = g[i]
				i++
			}
		}
	}
	return nil
}

// GenomeLen is the number of weights in the network.
func (d *NeuralDriver) GenomeLen() int {
	n := 0
	for _, l := range d.network.Layers {
		for _, nr := range l.Neurons {
			n += len(nr.InSynapses)
		}
	}
	return n
}

// Clone returns an independent driver with the same weights.
func (d *NeuralDriver) Clone() *NeuralDriver {
	c := newNeuralDriver(d.Inputs, d.Layers, d.Power)
	_ = c.SetGenome(d.Genome())
	return c
}

// Breed averages the weights of a and b and adds noise to each one. The
// parents must share a layout.
func Breed(a, b *NeuralDriver, noise distuv.Normal) *NeuralDriver {
	child := newNeuralDriver(a.Inputs, a.Layers, a.Power)
	ga, gb := a.Genome(), b.Genome()
	g := make([]float64, len(ga))
	for i := range ga {
		g[i] = (ga[i]+gb[i])/2 + noise.Rand()
	}
	_ = child.SetGenome(g)
	return child
}

// Mutate copies a with noise added to every weight.
func Mutate(a *NeuralDriver, noise distuv.Normal) *NeuralDriver {
	child := newNeuralDriver(a.Inputs, a.Layers, a.Power)
	g := a.Genome()
	for i := range g {
		g[i] += noise.Rand()
	}
	_ = child.SetGenome(g)
	return child
}
