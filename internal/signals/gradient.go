package signals

import (
	"sort"

	"github.com/talgya/mini-colony/internal/world"
)

// GradientSample is a copied-out (cell, concentration) pair.
type GradientSample struct {
	Cell          world.HexCoord `json:"cell"`
	Concentration float64        `json:"concentration"`
}

// GradientOptions tunes StrongestNeighbor.
type GradientOptions struct {
	// IncludeSelf compares the queried cell too. It is checked first, so on a tie
	// the agent stays where it is.
	IncludeSelf bool `json:"include_self" yaml:"include_self"`
}

// strongest picks the maximum over the neighbors (and optionally the cell itself).
// Ties resolve to the earliest candidate in neighbor order. A nil field is empty.
func strongest(f *Field, cell world.HexCoord, opts GradientOptions) (GradientSample, bool) {
	var best GradientSample
	found := false

	consider := func(c world.HexCoord) {
		v := f.value(c)
		if v > 0 && (!found || v > best.Concentration) {
			best = GradientSample{Cell: c, Concentration: v}
			found = true
		}
	}

	if opts.IncludeSelf {
		consider(cell)
	}
	for _, n := range cell.Neighbors() {
		consider(n)
	}
	return best, found
}

// ranked returns all six neighbors sorted by concentration descending, ties kept
// in neighbor order.
func ranked(f *Field, cell world.HexCoord) []GradientSample {
	out := make([]GradientSample, 0, 6)
	for _, n := range cell.Neighbors() {
		out = append(out, GradientSample{Cell: n, Concentration: f.value(n)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Concentration > out[j].Concentration
	})
	return out
}

func (f *Field) value(c world.HexCoord) float64 {
	if f == nil {
		return 0
	}
	return f.cells[c]
}
