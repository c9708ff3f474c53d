package signals

import (
	"fmt"

	"github.com/talgya/mini-colony/internal/world"
)

// CellValue is one exported (cell, concentration) entry.
type CellValue struct {
	Q     int     `json:"q"`
	R     int     `json:"r"`
	Value float64 `json:"value"`
}

// FieldExport is a copied-out field, keyed by kind name so it survives a
// re-registration in a different order.
type FieldExport struct {
	Kind   string      `json:"kind"`
	Params Params      `json:"params"`
	Cells  []CellValue `json:"cells"`
}

// Export copies every non-empty field, cells sorted by coordinate.
// It returns the tick the export reflects; the whole export is read under one lock.
func (m *SignalMap) Export() (uint64, []FieldExport) {
	kinds := m.registry.Kinds()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]FieldExport, 0, len(kinds))
	for _, k := range kinds {
		samples, err := m.samplesLocked(k.Handle)
		if err != nil || len(samples) == 0 {
			continue
		}
		fe := FieldExport{Kind: k.Name, Params: k.Params, Cells: make([]CellValue, len(samples))}
		for i, s := range samples {
			fe.Cells[i] = CellValue{Q: s.Cell.Q, R: s.Cell.R, Value: s.Concentration}
		}
		out = append(out, fe)
	}
	return m.tick, out
}

// Restore enqueues an emission for every exported cell. After the next flush an
// empty map holds exactly the exported values. Every kind is resolved before
// anything is queued, so an unknown kind leaves the queue untouched.
func (m *SignalMap) Restore(fields []FieldExport) error {
	handles := make([]KindHandle, len(fields))
	for i, fe := range fields {
		h, err := m.registry.Lookup(fe.Kind)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		handles[i] = h
	}

	for i, fe := range fields {
		for _, c := range fe.Cells {
			m.queue.Enqueue(EmissionRequest{
				Cell:   world.HexCoord{Q: c.Q, R: c.R},
				Kind:   handles[i],
				Amount: c.Value,
			})
		}
	}
	return nil
}
