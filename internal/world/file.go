package world

import (
	"fmt"
	"os"

	"github.com/faiface/pixel"
	"gopkg.in/yaml.v3"

	"psykar.com/ekfbot/internal/geom"
)

// File is the YAML form of a map.
//
//	walls:
//	  - [100, 100, 700, 100]
//	squares:
//	  - [300, 300, 80]
//	hexagons:
//	  - [400, 400, 300]
//	landmarks:
//	  - {id: 0, x: 100, y: 100}
//	extract_features: true
type File struct {
	Walls           [][4]float64   `yaml:"walls,omitempty"`
	Squares         [][3]float64   `yaml:"squares,omitempty"`
	Hexagons        [][3]float64   `yaml:"hexagons,omitempty"`
	Landmarks       []LandmarkSpec `yaml:"landmarks,omitempty"`
	ExtractFeatures bool           `yaml:"extract_features,omitempty"`
	FeatureRadius   float64        `yaml:"feature_radius,omitempty"`
}

// LandmarkSpec is one landmark entry of a map file.
type LandmarkSpec struct {
	ID int     `yaml:"id"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
}

// Build turns the file description into a Map. Explicit landmarks are added
// before extracted ones, so their ids are kept.
func (f File) Build() *Map {
	radius := f.FeatureRadius
	if radius <= 0 {
		radius = DefaultFeatureRadius
	}

	m := New()
	for _, w := range f.Walls {
		m.AddWall(w[0], w[1], w[2], w[3])
	}
	for _, s := range f.Squares {
		m.AddSquare(s[0], s[1], s[2])
	}
	for _, h := range f.Hexagons {
		m.AddHexagon(h[0], h[1], h[2])
	}
	for _, l := range f.Landmarks {
		m.AddLandmark(geom.Landmark{ID: l.ID, Pos: pixel.V(l.X, l.Y), Radius: radius})
	}
	if f.ExtractFeatures {
		m.ExtractFeatures(radius)
	}
	return m
}

// Parse decodes a YAML map.
func Parse(data []byte) (*Map, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse map: %w", err)
	}
	return f.Build(), nil
}

// Load reads a YAML map file.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map %s: %w", path, err)
	}
	return Parse(data)
}

// Save writes m as explicit walls and landmarks.
func Save(path string, m *Map) error {
	var f File
	for _, w := range m.Walls {
		f.Walls = append(f.Walls, [4]float64{w.A.X, w.A.Y, w.B.X, w.B.Y})
	}
	for _, l := range m.Landmarks {
		f.Landmarks = append(f.Landmarks, LandmarkSpec{ID: l.ID, X: l.Pos.X, Y: l.Pos.Y})
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode map: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write map %s: %w", path, err)
	}
	return nil
}
