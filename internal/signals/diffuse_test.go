package signals

import (
	"math"
	"math/rand"
	"testing"

	"github.com/talgya/mini-colony/internal/world"
)

const tolerance = 1e-9

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// randomField scatters n emissions of up to maxAmount around the origin.
func randomField(p Params, epsilon float64, seed int64, n int, maxAmount float64) *Field {
	rng := rand.New(rand.NewSource(seed))
	f := NewField(p, epsilon)
	for i := 0; i < n; i++ {
		c := world.HexCoord{Q: rng.Intn(21) - 10, R: rng.Intn(21) - 10}
		f.Add(c, 1+rng.Float64()*(maxAmount-1))
	}
	return f
}

func TestDiffuse_SingleCellScenario(t *testing.T) {
	f := NewField(pheromone, DefaultEpsilon)
	f.Set(origin, 60)

	next := f.Diffuse()

	if v := next.Get(origin); !approxEqual(v, 27, tolerance) {
		t.Errorf("center = %v, want 27", v)
	}
	for _, n := range origin.Neighbors() {
		if v := next.Get(n); !approxEqual(v, 4.5, tolerance) {
			t.Errorf("neighbor %v = %v, want 4.5", n, v)
		}
	}
	if next.Len() != 7 {
		t.Errorf("expected 7 active cells, got %d", next.Len())
	}
	// The input field is not touched.
	if f.Get(origin) != 60 || f.Len() != 1 {
		t.Errorf("Diffuse mutated its input: %v, len %d", f.Get(origin), f.Len())
	}
}

func TestDiffuse_ConservationWithoutDecay(t *testing.T) {
	for _, rate := range []float64{0.1, 0.35, 0.9, 1} {
		p := Params{DiffusionRate: rate, DecayRate: 0, MaxConcentration: 1000}
		// A tiny epsilon keeps the far fringe from being dropped during the check.
		f := randomField(p, 1e-12, 7, 40, 50)
		before := f.Total()

		for tick := 0; tick < 3; tick++ {
			f = f.Diffuse()
			if after := f.Total(); !approxEqual(after, before, 1e-9) {
				t.Fatalf("rate %.2f tick %d: total %v, want %v", rate, tick, after, before)
			}
		}
	}
}

func TestDiffuse_PureDecay(t *testing.T) {
	p := Params{DiffusionRate: 0, DecayRate: 0.3, MaxConcentration: 100}
	f := randomField(p, DefaultEpsilon, 11, 30, 90)
	old := f.Clone()

	next := f.Diffuse()
	if next.Len() != old.Len() {
		t.Fatalf("pure decay changed cell count: %d -> %d", old.Len(), next.Len())
	}
	for c := range old.ActiveCells() {
		want := old.Get(c) * (1 - p.DecayRate)
		if got := next.Get(c); got != want {
			t.Errorf("cell %v = %v, want exactly %v", c, got, want)
		}
	}
}

func TestDiffuse_Sparsity(t *testing.T) {
	p := Params{DiffusionRate: 0.6, DecayRate: 0.2, MaxConcentration: 100}
	f := randomField(p, DefaultEpsilon, 3, 25, 100)

	for tick := 0; tick < 60; tick++ {
		f = f.Diffuse()
		for c := range f.ActiveCells() {
			if v := f.Get(c); v <= DefaultEpsilon || v > p.MaxConcentration {
				t.Fatalf("tick %d: cell %v holds %v", tick, c, v)
			}
		}
	}
	// Enough ticks of 20% decay drain the field completely.
	for tick := 0; tick < 200 && f.Len() > 0; tick++ {
		f = f.Diffuse()
	}
	if f.Len() != 0 {
		t.Errorf("field should have decayed to empty, %d cells left", f.Len())
	}
}

func TestDiffuse_OrderIndependent(t *testing.T) {
	p := Params{DiffusionRate: 0.45, DecayRate: 0.07, MaxConcentration: 100}

	// Build the same field from two different insertion orders.
	cells := make([]world.HexCoord, 0, 50)
	rng := rand.New(rand.NewSource(99))
	values := make(map[world.HexCoord]float64)
	for len(cells) < 50 {
		c := world.HexCoord{Q: rng.Intn(15) - 7, R: rng.Intn(15) - 7}
		if _, dup := values[c]; dup {
			continue
		}
		values[c] = 1 + rng.Float64()*50
		cells = append(cells, c)
	}
	a := NewField(p, DefaultEpsilon)
	b := NewField(p, DefaultEpsilon)
	for i := range cells {
		a.Set(cells[i], values[cells[i]])
		j := len(cells) - 1 - i
		b.Set(cells[j], values[cells[j]])
	}

	for tick := 0; tick < 10; tick++ {
		a = a.Diffuse()
		b = b.Diffuse()
	}
	if a.Len() != b.Len() {
		t.Fatalf("cell counts differ: %d vs %d", a.Len(), b.Len())
	}
	for c := range a.ActiveCells() {
		if a.Get(c) != b.Get(c) {
			t.Fatalf("cell %v differs: %v vs %v", c, a.Get(c), b.Get(c))
		}
	}
}
