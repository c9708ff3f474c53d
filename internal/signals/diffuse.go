package signals

import "github.com/talgya/mini-colony/internal/world"

// Diffuse computes one decay-and-diffusion step and returns the result as a new
// field. The receiver is only read.
//
// Each cell keeps (1 - diffusion_rate) of its value and sends diffusion_rate/6 to
// every neighbor; the accumulated value is then multiplied by (1 - decay_rate) and
// dropped if at or below epsilon. The step is computed in gather form: each target
// cell sums its retained amount and the inflow from its neighbors in the fixed
// neighbor order, so the result does not depend on map iteration order.
func (f *Field) Diffuse() *Field {
	retain := 1 - f.params.DecayRate

	if f.params.DiffusionRate == 0 {
		next := newField(f.params, f.epsilon, len(f.cells))
		for c, v := range f.cells {
			next.Set(c, v*retain)
		}
		return next
	}

	keep := 1 - f.params.DiffusionRate
	share := f.params.DiffusionRate / 6

	// Every cell that can receive mass: the active cells and their neighbors.
	next := newField(f.params, f.epsilon, len(f.cells)*3)
	seen := make(map[world.HexCoord]struct{}, len(f.cells)*4)

	gather := func(t world.HexCoord) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}

		v := f.cells[t] * keep
		for _, n := range t.Neighbors() {
			v += f.cells[n] * share
		}
		next.Set(t, v*retain)
	}

	for c := range f.cells {
		gather(c)
		for _, n := range c.Neighbors() {
			gather(n)
		}
	}
	return next
}
