package signals

import (
	"fmt"

	"github.com/talgya/mini-colony/internal/world"
)

// Emitter is a persistent source that releases the same amount of one kind at a
// fixed cell every tick, like a nest or a food source.
type Emitter struct {
	Cell   world.HexCoord `json:"cell"`
	Kind   KindHandle     `json:"kind"`
	Amount float64        `json:"amount"`
}

// Request returns the emission this emitter makes on one tick.
func (e Emitter) Request() EmissionRequest {
	return EmissionRequest{Cell: e.Cell, Kind: e.Kind, Amount: e.Amount}
}

// EmitAll enqueues one emission per emitter. It stops at the first emitter
// whose kind is unknown.
func (m *SignalMap) EmitAll(emitters []Emitter) error {
	for i, e := range emitters {
		if err := m.EnqueueEmission(e.Request()); err != nil {
			return fmt.Errorf("emitter %d at %v: %w", i, e.Cell, err)
		}
	}
	return nil
}
