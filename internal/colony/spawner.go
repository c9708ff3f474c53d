package colony

import (
	"fmt"

	"github.com/talgya/mini-colony/internal/signals"
	"github.com/talgya/mini-colony/internal/world"
)

// Spawn adds count foragers around the nest. Items are assigned round robin so
// every source gets a crew; with no sources the foragers only wander.
func (c *Colony) Spawn(count int) []*Forager {
	cells := c.spawnCells()
	spawned := make([]*Forager, 0, count)

	for i := 0; i < count; i++ {
		f := &Forager{
			ID:       c.nextID,
			Position: c.Nest.Cell,
		}
		c.nextID++

		if len(cells) > 0 {
			f.Position = cells[c.rng.Intn(len(cells))]
		}
		if len(c.items) > 0 {
			f.Home = c.items[i%len(c.items)]
		}
		f.Goal = c.seekGoal(f)

		spawned = append(spawned, f)
	}

	c.Foragers = append(c.Foragers, spawned...)
	return spawned
}

// spawnCells returns the passable cells within one step of the nest.
func (c *Colony) spawnCells() []world.HexCoord {
	var cells []world.HexCoord
	for _, cell := range world.Disc(c.Nest.Cell, 1) {
		if c.terrain.Passable(cell) {
			cells = append(cells, cell)
		}
	}
	return cells
}

// ForagerByID returns the forager with the given id, or nil.
func (c *Colony) ForagerByID(id ForagerID) *Forager {
	for _, f := range c.Foragers {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// GoalCounts tallies foragers by goal, keyed by the goal's display form.
func (c *Colony) GoalCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range c.Foragers {
		counts[f.Goal.String()]++
	}
	return counts
}

// compile-time check that the signal map satisfies the forager sensor.
var _ Sensor = (*signals.SignalMap)(nil)

// State copies out the nest, sources and foragers for a snapshot.
func (c *Colony) State() (Nest, []FoodSource, []Forager) {
	nest := Nest{Cell: c.Nest.Cell, Stored: make(map[string]int, len(c.Nest.Stored))}
	for k, v := range c.Nest.Stored {
		nest.Stored[k] = v
	}
	sources := make([]FoodSource, len(c.Sources))
	for i, s := range c.Sources {
		sources[i] = *s
	}
	foragers := make([]Forager, len(c.Foragers))
	for i, f := range c.Foragers {
		foragers[i] = *f
	}
	return nest, sources, foragers
}

// Restore replaces the colony state with a snapshot taken by State. Sources must
// hold items the colony was created with.
func (c *Colony) Restore(nest Nest, sources []FoodSource, foragers []Forager) error {
	for _, s := range sources {
		if _, ok := c.kinds[s.Item]; !ok {
			return fmt.Errorf("restore source at %v: item %s has no registered kinds", s.Cell, s.Item)
		}
	}

	if nest.Stored == nil {
		nest.Stored = make(map[string]int)
	}
	c.Nest = &nest
	c.Sources = make([]*FoodSource, len(sources))
	for i := range sources {
		s := sources[i]
		c.Sources[i] = &s
	}
	c.Foragers = make([]*Forager, len(foragers))
	c.nextID = 1
	for i := range foragers {
		f := foragers[i]
		c.Foragers[i] = &f
		if f.ID >= c.nextID {
			c.nextID = f.ID + 1
		}
	}
	return nil
}
