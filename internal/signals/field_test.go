package signals

import (
	"testing"

	"github.com/talgya/mini-colony/internal/world"
)

var origin = world.HexCoord{}

func TestField_GetAbsentIsZero(t *testing.T) {
	f := NewField(pheromone, DefaultEpsilon)
	if v := f.Get(world.HexCoord{Q: 1000, R: -1000}); v != 0 {
		t.Errorf("Get on empty field = %v, want 0", v)
	}
}

func TestField_SetClampsAndRemoves(t *testing.T) {
	f := NewField(pheromone, DefaultEpsilon)

	f.Set(origin, 250)
	if v := f.Get(origin); v != pheromone.MaxConcentration {
		t.Errorf("Set(250) stored %v, want %v", v, pheromone.MaxConcentration)
	}

	f.Set(origin, -5)
	if f.Len() != 0 {
		t.Errorf("Set(-5) should remove the cell, len=%d", f.Len())
	}

	f.Set(origin, DefaultEpsilon)
	if f.Len() != 0 {
		t.Errorf("Set(epsilon) should not store, len=%d", f.Len())
	}

	// Removing an absent cell is a no-op.
	f.Set(origin, 0)
	f.Set(origin, 0)
	if f.Len() != 0 {
		t.Errorf("repeated removal changed len to %d", f.Len())
	}

	f.Set(origin, 2*DefaultEpsilon)
	if f.Len() != 1 {
		t.Errorf("Set(2*epsilon) should store, len=%d", f.Len())
	}
}

func TestField_Add(t *testing.T) {
	f := NewField(pheromone, DefaultEpsilon)
	c := world.HexCoord{Q: 2, R: 3}

	f.Add(c, 30)
	f.Add(c, 45)
	if v := f.Get(c); v != 75 {
		t.Errorf("Get = %v, want 75", v)
	}
	f.Add(c, 50)
	if v := f.Get(c); v != 100 {
		t.Errorf("Add past max = %v, want 100", v)
	}
	f.Add(c, -100)
	if f.Len() != 0 {
		t.Errorf("Add(-100) should remove, len=%d", f.Len())
	}
}

func TestField_ActiveCellsRestartable(t *testing.T) {
	f := NewField(pheromone, DefaultEpsilon)
	want := map[world.HexCoord]bool{
		{Q: 0, R: 0}:  true,
		{Q: 5, R: -2}: true,
		{Q: -3, R: 9}: true,
	}
	for c := range want {
		f.Set(c, 1)
	}

	for pass := 0; pass < 2; pass++ {
		seen := make(map[world.HexCoord]bool)
		for c := range f.ActiveCells() {
			seen[c] = true
		}
		if len(seen) != len(want) {
			t.Fatalf("pass %d: saw %d cells, want %d", pass, len(seen), len(want))
		}
		for c := range want {
			if !seen[c] {
				t.Errorf("pass %d: missing %v", pass, c)
			}
		}
	}

	// Early break stops the iteration.
	n := 0
	for range f.ActiveCells() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("break yielded %d cells", n)
	}
}

func TestField_TotalMaxClone(t *testing.T) {
	f := NewField(pheromone, DefaultEpsilon)
	f.Set(origin, 10)
	f.Set(world.HexCoord{Q: 1, R: 0}, 30)

	if f.Total() != 40 {
		t.Errorf("Total = %v, want 40", f.Total())
	}
	if f.Max() != 30 {
		t.Errorf("Max = %v, want 30", f.Max())
	}

	c := f.Clone()
	c.Set(origin, 0)
	if f.Get(origin) != 10 {
		t.Error("mutating clone changed the original")
	}
}
