// Forager behavior: a small state machine driven by signal gradients.
// Every tick each forager reads the map, takes one action, and laden foragers
// leave a trail for the next tick.
package colony

import (
	"fmt"
	"iter"
	"math/rand"

	"github.com/talgya/mini-colony/internal/signals"
	"github.com/talgya/mini-colony/internal/world"
)

// Action represents what a forager decided to do this tick.
type Action struct {
	ForagerID ForagerID
	Kind      ActionKind
	To        world.HexCoord // Destination for movement actions
	Detail    string         // Human-readable description for the event log
}

// ActionKind enumerates the possible forager actions.
type ActionKind uint8

const (
	ActionIdle     ActionKind = iota
	ActionClimb               // Step to the strongest neighbor
	ActionFallback            // Top choice blocked; step to the best passable neighbor
	ActionWander              // No usable signal; random step
	ActionPickup              // Take one item from a source
	ActionDeposit             // Drop the carried item at the nest
)

func (k ActionKind) String() string {
	switch k {
	case ActionClimb:
		return "climb"
	case ActionFallback:
		return "fallback"
	case ActionWander:
		return "wander"
	case ActionPickup:
		return "pickup"
	case ActionDeposit:
		return "deposit"
	default:
		return "idle"
	}
}

// Sensor is the part of the signal map a forager reads and writes.
type Sensor interface {
	Upstream(cell world.HexCoord, goal signals.Goal) (world.HexCoord, bool, error)
	StrongestNeighbor(kind signals.KindHandle, cell world.HexCoord, opts signals.GradientOptions) (signals.GradientSample, bool, error)
	RankedNeighbors(kind signals.KindHandle, cell world.HexCoord) (iter.Seq[signals.GradientSample], error)
	EnqueueEmission(req signals.EmissionRequest) error
}

// Colony holds the nest, the sources and every forager.
type Colony struct {
	Nest      *Nest
	Sources   []*FoodSource
	Foragers  []*Forager
	Strengths Strengths

	// IncludeSelf compares the forager's own cell with its neighbors. A forager
	// on a peak with nothing to pick up or deposit wanders off it.
	IncludeSelf bool

	terrain *world.Map
	items   []string
	kinds   map[string]kindSet
	rng     *rand.Rand
	nextID  ForagerID
}

// New creates a colony on terrain. Every item held by a source must already have
// its goal kinds registered in reg.
func New(terrain *world.Map, reg *signals.Registry, nest *Nest, sources []*FoodSource, s Strengths, seed int64) (*Colony, error) {
	c := &Colony{
		Nest:      nest,
		Sources:   sources,
		Strengths: s,
		terrain:   terrain,
		kinds:     make(map[string]kindSet),
		rng:       rand.New(rand.NewSource(seed + 500)),
		nextID:    1,
	}

	for _, src := range sources {
		if _, ok := c.kinds[src.Item]; ok {
			continue
		}
		contains, err := reg.Lookup(signals.KindName(signals.SignalContains, src.Item))
		if err != nil {
			return nil, fmt.Errorf("source item %s: %w", src.Item, err)
		}
		stores, err := reg.Lookup(signals.KindName(signals.SignalStores, src.Item))
		if err != nil {
			return nil, fmt.Errorf("source item %s: %w", src.Item, err)
		}
		c.kinds[src.Item] = kindSet{contains: contains, stores: stores}
		c.items = append(c.items, src.Item)
	}
	return c, nil
}

// Items returns the distinct source items in first-seen order.
func (c *Colony) Items() []string {
	return append([]string(nil), c.items...)
}

// StepCounts tallies the actions taken in one Step.
type StepCounts map[ActionKind]int

// StepResult reports one Step: action counts plus every pickup and deposit.
type StepResult struct {
	Counts  StepCounts
	Notable []Action
}

// Step runs every forager once, in ID order, and enqueues trail emissions for the
// laden ones. It must run in the query phase, between ticks.
func (c *Colony) Step(sensor Sensor) (StepResult, error) {
	res := StepResult{Counts: make(StepCounts)}
	for _, f := range c.Foragers {
		a, err := c.Decide(sensor, f)
		if err != nil {
			return res, fmt.Errorf("forager %d: %w", f.ID, err)
		}
		c.Apply(f, a)
		res.Counts[a.Kind]++
		if a.Kind == ActionPickup || a.Kind == ActionDeposit {
			res.Notable = append(res.Notable, a)
		}

		if f.Laden() && c.Strengths.Trail > 0 {
			err := sensor.EnqueueEmission(signals.EmissionRequest{
				Cell:   f.Position,
				Kind:   c.kinds[f.Carrying].contains,
				Amount: c.Strengths.Trail,
			})
			if err != nil {
				return res, fmt.Errorf("forager %d trail: %w", f.ID, err)
			}
		}
	}
	return res, nil
}

// Decide determines what a forager does this tick.
func (c *Colony) Decide(sensor Sensor, f *Forager) (Action, error) {
	if f.Laden() && f.Position == c.Nest.Cell {
		return Action{ForagerID: f.ID, Kind: ActionDeposit, Detail: fmt.Sprintf("forager %d stores %s", f.ID, f.Carrying)}, nil
	}
	if !f.Laden() {
		if src := c.sourceAt(f.Position); src != nil && !src.Depleted() && (f.Home == "" || src.Item == f.Home) {
			return Action{ForagerID: f.ID, Kind: ActionPickup, Detail: fmt.Sprintf("forager %d picks up %s", f.ID, src.Item)}, nil
		}
	}

	h, ok := c.handleFor(f.Goal)
	if !ok {
		return c.wander(f), nil
	}

	top, found, err := c.top(sensor, h, f)
	if err != nil {
		return Action{}, err
	}
	if !found {
		return c.wander(f), nil
	}
	if top == f.Position {
		// Nothing to pick up or deposit here, so a local peak is a dead end.
		return c.wander(f), nil
	}
	if c.terrain.Passable(top) {
		return Action{ForagerID: f.ID, Kind: ActionClimb, To: top}, nil
	}

	seq, err := sensor.RankedNeighbors(h, f.Position)
	if err != nil {
		return Action{}, err
	}
	for s := range seq {
		if s.Concentration <= 0 {
			break
		}
		if s.Cell != top && c.terrain.Passable(s.Cell) {
			return Action{ForagerID: f.ID, Kind: ActionFallback, To: s.Cell}, nil
		}
	}
	return c.wander(f), nil
}

// top returns the forager's preferred cell for kind h.
func (c *Colony) top(sensor Sensor, h signals.KindHandle, f *Forager) (world.HexCoord, bool, error) {
	if !c.IncludeSelf {
		return sensor.Upstream(f.Position, f.Goal)
	}
	s, found, err := sensor.StrongestNeighbor(h, f.Position, signals.GradientOptions{IncludeSelf: true})
	return s.Cell, found, err
}

// wander picks a random passable neighbor, or idles when boxed in.
func (c *Colony) wander(f *Forager) Action {
	start := c.rng.Intn(len(world.HexNeighborDirections))
	for i := 0; i < len(world.HexNeighborDirections); i++ {
		n := f.Position.Neighbor((start + i) % len(world.HexNeighborDirections))
		if c.terrain.Passable(n) {
			return Action{ForagerID: f.ID, Kind: ActionWander, To: n}
		}
	}
	return Action{ForagerID: f.ID, Kind: ActionIdle}
}

// Apply executes an action's effects on the forager and the colony.
func (c *Colony) Apply(f *Forager, a Action) {
	switch a.Kind {
	case ActionClimb, ActionFallback, ActionWander:
		f.Position = a.To
		f.Moves++
	case ActionPickup:
		src := c.sourceAt(f.Position)
		if src == nil || src.Depleted() {
			return
		}
		src.Stock--
		f.Carrying = src.Item
		f.Goal = signals.Goal{Kind: signals.GoalStore, Target: src.Item}
	case ActionDeposit:
		c.Nest.Stored[f.Carrying]++
		f.Trips++
		f.Carrying = ""
		f.Goal = c.seekGoal(f)
	}
}

// Emitters returns this tick's persistent emissions: storage at the nest for every
// item and availability at every stocked source.
func (c *Colony) Emitters() []signals.Emitter {
	var out []signals.Emitter
	if c.Strengths.Nest > 0 {
		for _, item := range c.items {
			out = append(out, signals.Emitter{Cell: c.Nest.Cell, Kind: c.kinds[item].stores, Amount: c.Strengths.Nest})
		}
	}
	if c.Strengths.Source > 0 {
		for _, src := range c.Sources {
			if src.Depleted() {
				continue
			}
			out = append(out, signals.Emitter{Cell: src.Cell, Kind: c.kinds[src.Item].contains, Amount: c.Strengths.Source})
		}
	}
	return out
}

// RemainingStock sums the stock of every source.
func (c *Colony) RemainingStock() int {
	total := 0
	for _, src := range c.Sources {
		total += src.Stock
	}
	return total
}

// Laden returns how many foragers carry an item.
func (c *Colony) Laden() int {
	n := 0
	for _, f := range c.Foragers {
		if f.Laden() {
			n++
		}
	}
	return n
}

func (c *Colony) seekGoal(f *Forager) signals.Goal {
	if f.Home == "" {
		return signals.Goal{Kind: signals.GoalWander}
	}
	return signals.Goal{Kind: signals.GoalPickup, Target: f.Home}
}

// handleFor resolves the kind a goal climbs. Goals outside the colony's items
// have no handle and make the forager wander.
func (c *Colony) handleFor(g signals.Goal) (signals.KindHandle, bool) {
	t, ok := g.SignalType()
	if !ok {
		return 0, false
	}
	ks, ok := c.kinds[g.Target]
	if !ok {
		return 0, false
	}
	switch t {
	case signals.SignalContains:
		return ks.contains, true
	case signals.SignalStores:
		return ks.stores, true
	default:
		return 0, false
	}
}

func (c *Colony) sourceAt(cell world.HexCoord) *FoodSource {
	for _, src := range c.Sources {
		if src.Cell == cell {
			return src
		}
	}
	return nil
}
