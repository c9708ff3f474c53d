// Package signals implements the signal field engine: a sparse, multi-kind
// concentration map over an unbounded hex grid that agents emit into and read
// gradients from. Markers diffuse to neighboring cells and decay every tick.
//
// A tick has two phases. The emission flush applies buffered requests, then every
// non-empty field is diffused into a fresh field, one task per kind. Both phases
// hold the map's write lock; queries hold the read lock, so readers never observe
// a partially applied tick.
package signals

import (
	"iter"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/mini-colony/internal/world"
)

// Options holds SignalMap tuning.
type Options struct {
	// Epsilon is the concentration at or below which a cell is dropped.
	Epsilon float64 `json:"epsilon" yaml:"epsilon"`

	// Workers bounds how many kinds diffuse in parallel. 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultOptions returns the default SignalMap tuning.
func DefaultOptions() Options {
	return Options{
		Epsilon: DefaultEpsilon,
		Workers: 0,
	}
}

// SignalMap owns one Field per registered kind. Fields never leave the map by
// reference; all mutation goes through the emission queue or the tick.
type SignalMap struct {
	registry *Registry
	opts     Options
	queue    EmissionQueue

	mu     sync.RWMutex
	fields []*Field // indexed by KindHandle; nil until the kind's first emission
	tick   uint64
}

// NewSignalMap creates a map over the kinds of reg. Kinds may still be registered
// until the first Tick freezes the registry.
func NewSignalMap(reg *Registry, opts Options) *SignalMap {
	if opts.Epsilon <= 0 {
		opts.Epsilon = DefaultEpsilon
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &SignalMap{
		registry: reg,
		opts:     opts,
	}
}

// Registry returns the kind catalog backing the map.
func (m *SignalMap) Registry() *Registry {
	return m.registry
}

// Epsilon returns the sparsity threshold in use.
func (m *SignalMap) Epsilon() float64 {
	return m.opts.Epsilon
}

// EnqueueEmission buffers an emission for the next flush. An unregistered kind is
// a caller bug and is reported instead of queued; negative amounts are clamped to zero.
func (m *SignalMap) EnqueueEmission(req EmissionRequest) error {
	if _, err := m.registry.Kind(req.Kind); err != nil {
		return err
	}
	m.queue.Enqueue(req)
	return nil
}

// PendingEmissions returns the number of buffered requests.
func (m *SignalMap) PendingEmissions() int {
	return m.queue.Len()
}

// Flush applies buffered emissions without diffusing. Tick calls it first; it is
// exported for restores and for callers that want to observe the pre-diffusion state.
func (m *SignalMap) Flush() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked()
}

func (m *SignalMap) flushLocked() int {
	return m.queue.Flush(m.fieldLocked)
}

// fieldLocked returns the field for h, creating it. Caller holds the write lock and
// has validated h.
func (m *SignalMap) fieldLocked(h KindHandle) *Field {
	for int(h) >= len(m.fields) {
		m.fields = append(m.fields, nil)
	}
	if m.fields[h] == nil {
		p, _ := m.registry.Params(h)
		m.fields[h] = NewField(p, m.opts.Epsilon)
	}
	return m.fields[h]
}

// Tick advances the map by one simulation step: freeze the registry, flush the
// emission queue, then decay and diffuse every non-empty field. Fields of different
// kinds are independent and diffuse in parallel; the tick returns once all are done.
func (m *SignalMap) Tick() {
	m.registry.Freeze()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.flushLocked()

	next := make([]*Field, len(m.fields))
	var g errgroup.Group
	g.SetLimit(m.opts.Workers)
	for i, f := range m.fields {
		if f == nil || f.Len() == 0 {
			continue
		}
		g.Go(func() error {
			next[i] = f.Diffuse()
			return nil
		})
	}
	_ = g.Wait()

	for i, f := range next {
		if f != nil {
			m.fields[i] = f
		}
	}
	m.tick++
}

// TickCount returns the number of completed ticks.
func (m *SignalMap) TickCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tick
}

// readField returns the field for kind (nil if it never received an emission).
// Caller holds the read lock.
func (m *SignalMap) readField(kind KindHandle) (*Field, error) {
	if _, err := m.registry.Kind(kind); err != nil {
		return nil, err
	}
	if int(kind) >= len(m.fields) {
		return nil, nil
	}
	return m.fields[kind], nil
}

// ConcentrationAt returns the concentration of kind at cell.
func (m *SignalMap) ConcentrationAt(kind KindHandle, cell world.HexCoord) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, err := m.readField(kind)
	if err != nil {
		return 0, err
	}
	return f.value(cell), nil
}

// StrongestNeighbor returns the neighbor of cell with the highest concentration of
// kind, or false when every candidate is zero. Ties go to the earliest neighbor in
// the fixed enumeration order.
func (m *SignalMap) StrongestNeighbor(kind KindHandle, cell world.HexCoord, opts GradientOptions) (GradientSample, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, err := m.readField(kind)
	if err != nil {
		return GradientSample{}, false, err
	}
	s, ok := strongest(f, cell, opts)
	return s, ok, nil
}

// RankedNeighbors returns the six neighbors of cell ordered by concentration,
// strongest first, ties in neighbor order. The samples are copied when this is
// called, so the sequence is stable and can be ranged over any number of times.
func (m *SignalMap) RankedNeighbors(kind KindHandle, cell world.HexCoord) (iter.Seq[GradientSample], error) {
	m.mu.RLock()
	f, err := m.readField(kind)
	if err != nil {
		m.mu.RUnlock()
		return nil, err
	}
	samples := ranked(f, cell)
	m.mu.RUnlock()

	return func(yield func(GradientSample) bool) {
		for _, s := range samples {
			if !yield(s) {
				return
			}
		}
	}, nil
}

// GradientReport is the local gradient of one kind around a cell, read in a
// single pass so every part describes the same tick.
type GradientReport struct {
	Tick      uint64           `json:"tick"`
	Value     float64          `json:"value"`
	Strongest *GradientSample  `json:"strongest,omitempty"`
	Ranked    []GradientSample `json:"ranked"`
}

// Gradient returns the concentration at cell, the strongest neighbor and the
// ranked neighbors of kind under one read lock.
func (m *SignalMap) Gradient(kind KindHandle, cell world.HexCoord, opts GradientOptions) (GradientReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, err := m.readField(kind)
	if err != nil {
		return GradientReport{}, err
	}
	rep := GradientReport{Tick: m.tick, Value: f.value(cell), Ranked: ranked(f, cell)}
	if top, ok := strongest(f, cell, opts); ok {
		rep.Strongest = &top
	}
	return rep, nil
}

// ActiveCells returns the cells currently holding kind. The cells are copied out,
// so the sequence never aliases the live field.
func (m *SignalMap) ActiveCells(kind KindHandle) (iter.Seq[world.HexCoord], error) {
	samples, err := m.Samples(kind)
	if err != nil {
		return nil, err
	}
	return func(yield func(world.HexCoord) bool) {
		for _, s := range samples {
			if !yield(s.Cell) {
				return
			}
		}
	}, nil
}

// Samples copies out every active cell of kind with its concentration, sorted by
// coordinate. Used by overlay rendering and export.
func (m *SignalMap) Samples(kind KindHandle) ([]GradientSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.samplesLocked(kind)
}

// samplesLocked is Samples for callers already holding the read lock.
func (m *SignalMap) samplesLocked(kind KindHandle) ([]GradientSample, error) {
	f, err := m.readField(kind)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return []GradientSample{}, nil
	}
	out := make([]GradientSample, 0, f.Len())
	for c, v := range f.cells {
		out = append(out, GradientSample{Cell: c, Concentration: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cell.Less(out[j].Cell)
	})
	return out, nil
}

// KindStats summarises one field.
type KindStats struct {
	Kind        string  `json:"kind"`
	ActiveCells int     `json:"active_cells"`
	Total       float64 `json:"total"`
	Max         float64 `json:"max"`
}

// MapStats summarises the whole map between ticks.
type MapStats struct {
	Tick    uint64      `json:"tick"`
	Pending int         `json:"pending_emissions"`
	Kinds   []KindStats `json:"kinds"`
}

// ActiveCellTotal sums active cells across kinds.
func (s MapStats) ActiveCellTotal() int {
	n := 0
	for _, k := range s.Kinds {
		n += k.ActiveCells
	}
	return n
}

// TotalMass sums concentration across kinds.
func (s MapStats) TotalMass() float64 {
	total := 0.0
	for _, k := range s.Kinds {
		total += k.Total
	}
	return total
}

// Stats reports per-kind field sizes and mass, in handle order.
func (m *SignalMap) Stats() MapStats {
	kinds := m.registry.Kinds()

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := MapStats{Tick: m.tick, Pending: m.queue.Len(), Kinds: make([]KindStats, 0, len(kinds))}
	for _, k := range kinds {
		ks := KindStats{Kind: k.Name}
		if int(k.Handle) < len(m.fields) && m.fields[k.Handle] != nil {
			f := m.fields[k.Handle]
			ks.ActiveCells = f.Len()
			ks.Total = f.Total()
			ks.Max = f.Max()
		}
		stats.Kinds = append(stats.Kinds, ks)
	}
	return stats
}
