package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/mini-colony/internal/colony"
	"github.com/talgya/mini-colony/internal/config"
	"github.com/talgya/mini-colony/internal/signals"
	"github.com/talgya/mini-colony/internal/world"
)

// Build generates the terrain, registers every signal kind and seeds the colony
// described by cfg. The registry stays open until the first tick.
func Build(cfg *config.Config) (*Simulation, error) {
	m := world.Generate(cfg.World.GenConfig())

	reg := signals.NewRegistry()
	var emitters []signals.Emitter
	for _, k := range cfg.Signals.Kinds {
		h, err := reg.Register(k.Name, k.Params)
		if err != nil {
			return nil, fmt.Errorf("signal kind %s: %w", k.Name, err)
		}
		for _, e := range k.Emitters {
			emitters = append(emitters, signals.Emitter{Cell: e.Coord(), Kind: h, Amount: e.Amount})
		}
	}

	defaults, err := cfg.Signals.Defaults()
	if err != nil {
		return nil, err
	}
	if err := reg.RegisterGoalKinds(cfg.Colony.Items(), cfg.Colony.Structures, defaults); err != nil {
		return nil, fmt.Errorf("goal kinds: %w", err)
	}

	sm := signals.NewSignalMap(reg, signals.Options{
		Epsilon: cfg.Simulation.Epsilon,
		Workers: cfg.Simulation.Workers,
	})

	nest := colony.NewNest(cfg.Colony.Nest.Coord())
	m.Clear(nest.Cell)
	sources := make([]*colony.FoodSource, 0, len(cfg.Colony.Sources))
	for _, sc := range cfg.Colony.Sources {
		// Sources may sit on rock or water before clearing; foragers must be able to reach them.
		m.Clear(sc.Coord())
		sources = append(sources, &colony.FoodSource{Cell: sc.Coord(), Item: sc.Item, Stock: sc.Stock})
	}
	sources = append(sources, scatterSources(m, nest.Cell, sources, cfg.Colony.Scatter, cfg.World.Seed)...)

	c, err := colony.New(m, reg, nest, sources, cfg.Colony.Strengths, cfg.World.Seed)
	if err != nil {
		return nil, fmt.Errorf("colony: %w", err)
	}
	c.IncludeSelf = cfg.Simulation.IncludeSelf
	c.Spawn(cfg.Colony.Foragers)

	sim := NewSimulation(m, sm, c)
	sim.Emitters = emitters
	sim.Seed = cfg.World.Seed
	sim.SnapshotDir = cfg.Persistence.SnapshotDir

	slog.Info("simulation built",
		"map", m.String(),
		"kinds", reg.Len(),
		"foragers", len(c.Foragers),
		"sources", len(sources),
		"items", c.Items(),
	)
	return sim, nil
}

// scatterSources places the configured extra sources on open terrain, skipping
// cells that already hold a source.
func scatterSources(m *world.Map, nest world.HexCoord, listed []*colony.FoodSource, sc config.ScatterConfig, seed int64) []*colony.FoodSource {
	if sc.Count <= 0 || len(sc.Items) == 0 {
		return nil
	}
	taken := make(map[world.HexCoord]bool, len(listed))
	for _, src := range listed {
		taken[src.Cell] = true
	}

	var out []*colony.FoodSource
	for _, site := range world.PlaceSources(m, nest, sc.Count, max(sc.MinDistance, 2), seed) {
		if taken[site.Coord] {
			continue
		}
		item := sc.Items[len(out)%len(sc.Items)]
		out = append(out, &colony.FoodSource{Cell: site.Coord, Item: item, Stock: sc.Stock})
	}
	return out
}

// Wire connects an engine's callbacks to the simulation. A tick error is a bug
// in the colony or the config; it is logged and the loop stops.
func Wire(eng *Engine, sim *Simulation) {
	eng.OnTick = func(tick uint64) {
		if err := sim.TickStep(tick); err != nil {
			slog.Error("tick failed", "tick", tick, "error", err)
			eng.Stop()
		}
	}
	eng.OnReport = sim.Report
	eng.OnSnapshot = func(tick uint64) {
		if sim.SnapshotDir == "" {
			return
		}
		if _, err := sim.Snapshot(tick); err != nil {
			slog.Warn("snapshot failed", "tick", tick, "error", err)
		}
	}
}
