// Simulation ties the terrain, the signal map and the colony together and
// runs them each tick.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/talgya/mini-colony/internal/colony"
	"github.com/talgya/mini-colony/internal/logging"
	"github.com/talgya/mini-colony/internal/persistence/snapshot"
	"github.com/talgya/mini-colony/internal/signals"
	"github.com/talgya/mini-colony/internal/world"
)

// maxEvents bounds the recent event ring.
const maxEvents = 1000

// Store is the part of the run database the simulation writes to.
type Store interface {
	SaveStats(runID string, stats signals.MapStats) error
	SaveField(runID string, tick uint64, fields []signals.FieldExport) error
	SaveMeta(runID, key, value string) error
}

// Simulation holds the complete colony state.
type Simulation struct {
	WorldMap *world.Map
	Signals  *signals.SignalMap
	Colony   *colony.Colony

	// Emitters are the configured fixed sources, released every tick next to
	// the colony's own nest and source emitters.
	Emitters []signals.Emitter

	RunID       string
	Seed        int64
	Store       Store // nil disables the run database
	SnapshotDir string
	EventLog    *logging.EventLogger

	mu         sync.RWMutex
	events     []Event
	lastTick   uint64
	lastCounts colony.StepCounts
	deposits   uint64
}

// Event is a notable occurrence in the colony.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "pickup", "deposit"
}

// Status summarises the simulation between ticks.
type Status struct {
	Tick           uint64           `json:"tick"`
	Nest           world.HexCoord   `json:"nest"`
	Foragers       int              `json:"foragers"`
	Laden          int              `json:"laden"`
	Stored         map[string]int   `json:"stored"`
	RemainingStock int              `json:"remaining_stock"`
	Deposits       uint64           `json:"deposits"`
	Actions        map[string]int   `json:"actions"`
	Goals          map[string]int   `json:"goals"`
	Signals        signals.MapStats `json:"signals"`
}

// NewSimulation creates a Simulation from built components.
func NewSimulation(m *world.Map, sm *signals.SignalMap, c *colony.Colony) *Simulation {
	return &Simulation{
		WorldMap: m,
		Signals:  sm,
		Colony:   c,
	}
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

// TickStep runs one tick: foragers read the map and enqueue trails, the
// emitters enqueue, then the map flushes and diffuses.
func (s *Simulation) TickStep(tick uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.Colony.Step(s.Signals)
	if err != nil {
		return fmt.Errorf("tick %d: colony step: %w", tick, err)
	}
	if err := s.Signals.EmitAll(s.Colony.Emitters()); err != nil {
		return fmt.Errorf("tick %d: colony emitters: %w", tick, err)
	}
	if err := s.Signals.EmitAll(s.Emitters); err != nil {
		return fmt.Errorf("tick %d: fixed emitters: %w", tick, err)
	}
	s.Signals.Tick()

	s.lastTick = tick
	s.lastCounts = res.Counts
	for _, a := range res.Notable {
		if a.Kind == colony.ActionDeposit {
			s.deposits++
		}
		s.events = append(s.events, Event{
			Tick:        tick,
			Description: a.Detail,
			Category:    a.Kind.String(),
		})
		s.EventLog.Log(map[string]any{
			"tick":    tick,
			"kind":    a.Kind.String(),
			"forager": a.ForagerID,
			"detail":  a.Detail,
		})
	}
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	return nil
}

// Report logs the periodic summary and records per-kind statistics.
func (s *Simulation) Report(tick uint64) {
	st := s.Status()
	// The map counter restarts on resume; rows are keyed by the run's tick.
	st.Signals.Tick = tick

	slog.Info("colony report",
		"tick", tick,
		"active_cells", st.Signals.ActiveCellTotal(),
		"mass", fmt.Sprintf("%.2f", st.Signals.TotalMass()),
		"stored", total(st.Stored),
		"deposits", st.Deposits,
		"laden", st.Laden,
		"stock", st.RemainingStock,
		"climb", st.Actions[colony.ActionClimb.String()],
		"wander", st.Actions[colony.ActionWander.String()],
	)
	for _, k := range st.Signals.Kinds {
		if k.ActiveCells == 0 {
			continue
		}
		slog.Log(context.Background(), logging.LevelTrace, "kind report",
			"tick", tick,
			"kind", k.Kind,
			"active_cells", k.ActiveCells,
			"total", k.Total,
			"max", k.Max,
		)
	}

	if s.Store == nil {
		return
	}
	if err := s.Store.SaveStats(s.RunID, st.Signals); err != nil {
		slog.Warn("save stats failed", "tick", tick, "error", err)
	}
}

// Snapshot writes the full state to the snapshot directory and mirrors the
// fields into the run database. It returns the snapshot path.
func (s *Simulation) Snapshot(tick uint64) (string, error) {
	snap := s.State(tick)
	path := snapshot.Path(s.SnapshotDir, tick)
	if err := snapshot.Write(path, snap); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	slog.Debug("snapshot written", "tick", tick, "path", path, "kinds", len(snap.Fields))

	if s.Store != nil {
		if err := s.Store.SaveField(s.RunID, tick, snap.Fields); err != nil {
			return path, fmt.Errorf("save fields: %w", err)
		}
		if err := s.Store.SaveMeta(s.RunID, "last_snapshot", strconv.FormatUint(tick, 10)); err != nil {
			return path, fmt.Errorf("save meta: %w", err)
		}
	}
	return path, nil
}

// State captures a restorable snapshot labelled with tick.
func (s *Simulation) State(tick uint64) snapshot.SnapshotV1 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, fields := s.Signals.Export()
	nest, sources, foragers := s.Colony.State()
	return snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, RunID: s.RunID, Tick: tick, Seed: s.Seed},
		Fields:   fields,
		Nest:     nest,
		Sources:  sources,
		Foragers: foragers,
	}
}

// Restore loads a snapshot into a freshly built simulation. The fields go
// through the emission queue and are flushed before the next tick reads them.
func (s *Simulation) Restore(snap snapshot.SnapshotV1) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Signals.Restore(snap.Fields); err != nil {
		return err
	}
	if err := s.Colony.Restore(snap.Nest, snap.Sources, snap.Foragers); err != nil {
		return err
	}
	s.Signals.Flush()
	s.lastTick = snap.Header.Tick
	if snap.Header.RunID != "" {
		s.RunID = snap.Header.RunID
	}
	slog.Info("simulation restored", "tick", snap.Header.Tick, "run", s.RunID, "foragers", len(snap.Foragers))
	return nil
}

// Status returns a copy of the current summary.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nest, _, _ := s.Colony.State()
	st := Status{
		Tick:           s.lastTick,
		Nest:           nest.Cell,
		Foragers:       len(s.Colony.Foragers),
		Laden:          s.Colony.Laden(),
		Stored:         nest.Stored,
		RemainingStock: s.Colony.RemainingStock(),
		Deposits:       s.deposits,
		Actions:        make(map[string]int, len(s.lastCounts)),
		Goals:          s.Colony.GoalCounts(),
		Signals:        s.Signals.Stats(),
	}
	for k, n := range s.lastCounts {
		st.Actions[k.String()] = n
	}
	return st
}

// Foragers returns a copy of every forager.
func (s *Simulation) Foragers() []colony.Forager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, _, foragers := s.Colony.State()
	return foragers
}

// Sources returns a copy of every food source.
func (s *Simulation) Sources() []colony.FoodSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, sources, _ := s.Colony.State()
	return sources
}

// Field copies out the active cells of kind with the tick they belong to.
func (s *Simulation) Field(kind signals.KindHandle) (uint64, []signals.GradientSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	samples, err := s.Signals.Samples(kind)
	return s.lastTick, samples, err
}

// Gradient reads the local gradient of kind around cell. The report's tick is
// the simulation tick, which survives a resume.
func (s *Simulation) Gradient(kind signals.KindHandle, cell world.HexCoord, opts signals.GradientOptions) (signals.GradientReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rep, err := s.Signals.Gradient(kind, cell, opts)
	rep.Tick = s.lastTick
	return rep, err
}

// RecentEvents returns up to n of the newest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	return append([]Event(nil), s.events[len(s.events)-n:]...)
}

func total(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
