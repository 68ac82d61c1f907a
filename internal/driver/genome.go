package driver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GenomeFile is the YAML form of a trained NeuralDriver.
type GenomeFile struct {
	Inputs  int       `yaml:"inputs"`
	Layers  []int     `yaml:"layers"`
	Power   float64   `yaml:"power"`
	Weights []float64 `yaml:"weights"`

	// Fitness and Source describe where the genome came from.
	Fitness float64 `yaml:"fitness,omitempty"`
	Source  string  `yaml:"source,omitempty"`
	RunID   string  `yaml:"run_id,omitempty"`
}

// File captures d for saving.
func (d *NeuralDriver) File() GenomeFile {
	return GenomeFile{
		Inputs:  d.Inputs,
		Layers:  append([]int(nil), d.Layers...),
		Power:   d.Power,
		Weights: d.Genome(),
	}
}

// Driver rebuilds the network described by f.
func (f GenomeFile) Driver() (*NeuralDriver, error) {
	if f.Inputs < 1 || len(f.Layers) == 0 || f.Layers[len(f.Layers)-1] != 2 {
		return nil, fmt.Errorf("genome layout %d -> %v cannot drive two wheels", f.Inputs, f.Layers)
	}
	d := newNeuralDriver(f.Inputs, f.Layers, f.Power)
	if err := d.SetGenome(f.Weights); err != nil {
		return nil, err
	}
	return d, nil
}

// SaveGenome writes f to path.
func SaveGenome(path string, f GenomeFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode genome: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write genome %s: %w", path, err)
	}
	return nil
}

// LoadGenome reads a genome file and rebuilds its driver.
func LoadGenome(path string) (*NeuralDriver, GenomeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, GenomeFile{}, fmt.Errorf("failed to read genome %s: %w", path, err)
	}
	var f GenomeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, GenomeFile{}, fmt.Errorf("failed to parse genome %s: %w", path, err)
	}
	d, err := f.Driver()
	if err != nil {
		return nil, f, fmt.Errorf("genome %s: %w", path, err)
	}
	return d, f, nil
}
