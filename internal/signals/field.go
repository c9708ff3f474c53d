package signals

import (
	"iter"
	"math"

	"github.com/talgya/mini-colony/internal/world"
)

// DefaultEpsilon is the concentration at or below which a cell counts as empty.
const DefaultEpsilon = 1e-4

// Field is a sparse hex-cell → concentration mapping for a single signal kind.
// Every stored value is > epsilon and <= MaxConcentration; absence means zero.
type Field struct {
	params  Params
	epsilon float64
	cells   map[world.HexCoord]float64
}

// NewField creates an empty field for a kind with the given parameters.
func NewField(p Params, epsilon float64) *Field {
	return newField(p, epsilon, 0)
}

func newField(p Params, epsilon float64, sizeHint int) *Field {
	return &Field{
		params:  p,
		epsilon: epsilon,
		cells:   make(map[world.HexCoord]float64, sizeHint),
	}
}

// Params returns the kind parameters the field was built with.
func (f *Field) Params() Params {
	return f.params
}

// Get returns the concentration at cell, zero when absent.
func (f *Field) Get(cell world.HexCoord) float64 {
	return f.cells[cell]
}

// Set clamps value to [0, MaxConcentration] and stores it, or removes the cell
// when the clamped value is at or below epsilon.
func (f *Field) Set(cell world.HexCoord, value float64) {
	v := f.clamp(value)
	if v <= f.epsilon {
		delete(f.cells, cell)
		return
	}
	f.cells[cell] = v
}

// Add is Set(cell, Get(cell)+delta).
func (f *Field) Add(cell world.HexCoord, delta float64) {
	f.Set(cell, f.cells[cell]+delta)
}

func (f *Field) clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > f.params.MaxConcentration:
		return f.params.MaxConcentration
	}
	return v
}

// Len returns the number of active cells.
func (f *Field) Len() int {
	return len(f.cells)
}

// ActiveCells yields every cell with non-zero concentration, in no particular order.
// The sequence can be ranged over repeatedly; it must not be held across a tick.
func (f *Field) ActiveCells() iter.Seq[world.HexCoord] {
	return func(yield func(world.HexCoord) bool) {
		for c := range f.cells {
			if !yield(c) {
				return
			}
		}
	}
}

// Total returns the sum of all concentrations.
func (f *Field) Total() float64 {
	sum := 0.0
	for _, v := range f.cells {
		sum += v
	}
	return sum
}

// Max returns the highest stored concentration, zero for an empty field.
func (f *Field) Max() float64 {
	m := 0.0
	for _, v := range f.cells {
		if v > m {
			m = v
		}
	}
	return m
}

// Clone returns an independent copy.
func (f *Field) Clone() *Field {
	out := newField(f.params, f.epsilon, len(f.cells))
	for c, v := range f.cells {
		out.cells[c] = v
	}
	return out
}
