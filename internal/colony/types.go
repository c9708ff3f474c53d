// Package colony provides the foragers that live on the signal map: a nest,
// food sources and the ants that shuttle items between them by climbing
// signal gradients.
package colony

import (
	"fmt"

	"github.com/talgya/mini-colony/internal/signals"
	"github.com/talgya/mini-colony/internal/world"
)

// ForagerID is a unique identifier for a forager.
type ForagerID uint64

// Forager is a single ant.
type Forager struct {
	ID       ForagerID      `json:"id"`
	Position world.HexCoord `json:"position"`
	Goal     signals.Goal   `json:"goal"`
	Carrying string         `json:"carrying,omitempty"` // Item id, empty when unladen
	Home     string         `json:"home"`               // Item the forager is assigned to collect

	Trips uint32 `json:"trips"` // Completed deliveries
	Moves uint64 `json:"moves"`
}

// Laden reports whether the forager is carrying an item.
func (f *Forager) Laden() bool {
	return f.Carrying != ""
}

func (f *Forager) String() string {
	if f.Laden() {
		return fmt.Sprintf("forager %d at %v carrying %s (%s)", f.ID, f.Position, f.Carrying, f.Goal)
	}
	return fmt.Sprintf("forager %d at %v (%s)", f.ID, f.Position, f.Goal)
}

// Nest is where collected items are stored. It advertises storage for every item.
type Nest struct {
	Cell   world.HexCoord `json:"cell"`
	Stored map[string]int `json:"stored"`
}

// NewNest creates an empty nest at cell.
func NewNest(cell world.HexCoord) *Nest {
	return &Nest{Cell: cell, Stored: make(map[string]int)}
}

// Total returns the number of stored items of every kind.
func (n *Nest) Total() int {
	total := 0
	for _, c := range n.Stored {
		total += c
	}
	return total
}

// FoodSource is a cell holding a finite stock of one item.
type FoodSource struct {
	Cell  world.HexCoord `json:"cell"`
	Item  string         `json:"item"`
	Stock int            `json:"stock"`
}

// Depleted reports whether nothing is left to pick up.
func (s *FoodSource) Depleted() bool {
	return s.Stock <= 0
}

// Strengths sets how much the colony's emitters release per tick.
type Strengths struct {
	Nest   float64 `yaml:"nest" json:"nest"`     // stores:<item> at the nest
	Source float64 `yaml:"source" json:"source"` // contains:<item> at a stocked source
	Trail  float64 `yaml:"trail" json:"trail"`   // contains:<item> under a laden forager
}

// DefaultStrengths returns emission strengths tuned for the default kind parameters.
func DefaultStrengths() Strengths {
	return Strengths{Nest: 20, Source: 15, Trail: 2}
}

// kindSet holds the resolved handles for one item.
type kindSet struct {
	contains signals.KindHandle
	stores   signals.KindHandle
}
