package evolve

import (
	"math"

	"github.com/faiface/pixel"
)

// CellSize is the side of the grid cells counted by Coverage.
const CellSize = 10.0

type cell struct {
	x, y int
}

// Coverage counts the distinct cells of side size that path passes through.
// Points are sampled, not the segments between them, so a path moving more
// than a cell per tick can skip cells.
func Coverage(path []pixel.Vec, size float64) int {
	if size <= 0 {
		return 0
	}
	seen := make(map[cell]struct{}, len(path))
	for _, p := range path {
		c := cell{int(math.Floor(p.X / size)), int(math.Floor(p.Y / size))}
		seen[c] = struct{}{}
	}
	return len(seen)
}
