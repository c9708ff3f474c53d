package signals

import (
	"errors"
	"fmt"

	"github.com/talgya/mini-colony/internal/world"
)

// SignalType is the family a goal-derived kind belongs to. Item families are
// parameterised by an item id, structure families by a structure id.
type SignalType uint8

const (
	SignalPush     SignalType = iota // Item wants to leave a structure
	SignalPull                       // Structure wants an item delivered
	SignalContains                   // Item is available here
	SignalStores                     // Item can be stored here
	SignalWork                       // Structure needs workers
	SignalDemolish                   // Structure is marked for removal
)

// ItemSignalTypes are the families registered once per item.
var ItemSignalTypes = []SignalType{SignalPush, SignalPull, SignalContains, SignalStores}

// StructureSignalTypes are the families registered once per structure.
var StructureSignalTypes = []SignalType{SignalWork, SignalDemolish}

func (t SignalType) String() string {
	switch t {
	case SignalPush:
		return "push"
	case SignalPull:
		return "pull"
	case SignalContains:
		return "contains"
	case SignalStores:
		return "stores"
	case SignalWork:
		return "work"
	case SignalDemolish:
		return "demolish"
	default:
		return fmt.Sprintf("signal(%d)", uint8(t))
	}
}

// ParseSignalType maps the config spelling of a family to its SignalType.
func ParseSignalType(s string) (SignalType, bool) {
	for t := SignalPush; t <= SignalDemolish; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// KindName returns the canonical kind id for a family and target, e.g. "contains:leaf".
func KindName(t SignalType, target string) string {
	return t.String() + ":" + target
}

// DefaultTypeParams returns the default parameters for each family.
// Item availability spreads wide and fades slowly; work requests stay local.
func DefaultTypeParams() map[SignalType]Params {
	return map[SignalType]Params{
		SignalPush:     {DiffusionRate: 0.3, DecayRate: 0.10, MaxConcentration: 100},
		SignalPull:     {DiffusionRate: 0.3, DecayRate: 0.10, MaxConcentration: 100},
		SignalContains: {DiffusionRate: 0.4, DecayRate: 0.05, MaxConcentration: 100},
		SignalStores:   {DiffusionRate: 0.4, DecayRate: 0.05, MaxConcentration: 100},
		SignalWork:     {DiffusionRate: 0.2, DecayRate: 0.15, MaxConcentration: 50},
		SignalDemolish: {DiffusionRate: 0.2, DecayRate: 0.15, MaxConcentration: 50},
	}
}

// RegisterGoalKinds registers every item and structure family. Families missing from
// defaults use DefaultTypeParams. Kinds that already exist are left as they are, so
// explicit registrations made earlier take precedence.
func (r *Registry) RegisterGoalKinds(items, structures []string, defaults map[SignalType]Params) error {
	builtin := DefaultTypeParams()
	register := func(t SignalType, target string) error {
		p, ok := defaults[t]
		if !ok {
			p = builtin[t]
		}
		_, err := r.Register(KindName(t, target), p)
		if errors.Is(err, ErrDuplicateKind) {
			return nil
		}
		return err
	}

	for _, item := range items {
		for _, t := range ItemSignalTypes {
			if err := register(t, item); err != nil {
				return err
			}
		}
	}
	for _, s := range structures {
		for _, t := range StructureSignalTypes {
			if err := register(t, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// GoalKind enumerates what a unit is trying to do.
type GoalKind uint8

const (
	GoalWander   GoalKind = iota // No target; has no signal
	GoalPickup                   // Collect an item
	GoalStore                    // Put a carried item into storage
	GoalDeliver                  // Bring a carried item to a structure that wants it
	GoalEat                      // Find food
	GoalWork                     // Staff a structure
	GoalDemolish                 // Tear a structure down
)

// Goal is a unit's current objective. Target names the item or structure.
type Goal struct {
	Kind   GoalKind `json:"kind"`
	Target string   `json:"target,omitempty"`
}

func (g Goal) String() string {
	names := [...]string{"wander", "pickup", "store", "deliver", "eat", "work", "demolish"}
	name := "unknown"
	if int(g.Kind) < len(names) {
		name = names[g.Kind]
	}
	if g.Target == "" {
		return name
	}
	return name + "(" + g.Target + ")"
}

// SignalType returns the family a unit with this goal climbs. Wander has none.
func (g Goal) SignalType() (SignalType, bool) {
	switch g.Kind {
	case GoalPickup, GoalEat:
		return SignalContains, true
	case GoalStore:
		return SignalStores, true
	case GoalDeliver:
		return SignalPull, true
	case GoalWork:
		return SignalWork, true
	case GoalDemolish:
		return SignalDemolish, true
	default:
		return 0, false
	}
}

// KindName returns the kind id a unit with this goal follows.
func (g Goal) KindName() (string, bool) {
	t, ok := g.SignalType()
	if !ok {
		return "", false
	}
	return KindName(t, g.Target), true
}

// Upstream returns the neighbor of cell with the strongest signal for goal.
// It reports false for goals without a signal and for an empty neighborhood, and
// fails with ErrUnknownKind when the goal's kind was never registered.
func (m *SignalMap) Upstream(cell world.HexCoord, goal Goal) (world.HexCoord, bool, error) {
	name, ok := goal.KindName()
	if !ok {
		return world.HexCoord{}, false, nil
	}
	h, err := m.registry.Lookup(name)
	if err != nil {
		return world.HexCoord{}, false, err
	}
	s, found, err := m.StrongestNeighbor(h, cell, GradientOptions{})
	if err != nil || !found {
		return world.HexCoord{}, false, err
	}
	return s.Cell, true, nil
}
