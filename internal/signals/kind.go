package signals

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Params holds the static diffusion and decay parameters of one signal kind.
type Params struct {
	// DiffusionRate is the fraction of a cell's concentration that leaves it each tick,
	// split evenly across its six neighbors. Range: 0.0 to 1.0.
	DiffusionRate float64 `json:"diffusion_rate" yaml:"diffusion_rate"`

	// DecayRate is the fraction of concentration lost each tick after diffusion.
	// Range: 0.0 to 1.0.
	DecayRate float64 `json:"decay_rate" yaml:"decay_rate"`

	// MaxConcentration caps the stored value of any cell. Must be > 0.
	MaxConcentration float64 `json:"max_concentration" yaml:"max_concentration"`
}

// Validate checks that rates are within [0,1] and the cap is positive and finite.
func (p Params) Validate() error {
	if !(p.DiffusionRate >= 0 && p.DiffusionRate <= 1) {
		return fmt.Errorf("%w: diffusion_rate must be between 0 and 1, got %v", ErrInvalidParams, p.DiffusionRate)
	}
	if !(p.DecayRate >= 0 && p.DecayRate <= 1) {
		return fmt.Errorf("%w: decay_rate must be between 0 and 1, got %v", ErrInvalidParams, p.DecayRate)
	}
	if !(p.MaxConcentration > 0) || math.IsInf(p.MaxConcentration, 1) {
		return fmt.Errorf("%w: max_concentration must be positive and finite, got %v", ErrInvalidParams, p.MaxConcentration)
	}
	return nil
}

// KindHandle identifies a registered signal kind. Handles are dense indexes
// assigned in registration order.
type KindHandle int

// Kind is a registered signal kind.
type Kind struct {
	Handle KindHandle `json:"handle"`
	Name   string     `json:"name"`
	Params Params     `json:"params"`
}

// Registry is the catalog of signal kinds. It is open for registration until
// Freeze is called (the first tick does this), then read-only for the rest of the run.
type Registry struct {
	mu     sync.RWMutex
	kinds  []Kind
	byName map[string]KindHandle
	frozen bool
}

// NewRegistry creates an empty, open registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]KindHandle)}
}

// Register adds a kind and returns its handle.
func (r *Registry) Register(name string, p Params) (KindHandle, error) {
	if err := p.Validate(); err != nil {
		return -1, fmt.Errorf("register %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, fmt.Errorf("register %q: %w", name, ErrRegistrationClosed)
	}
	if _, exists := r.byName[name]; exists {
		return -1, fmt.Errorf("register %q: %w", name, ErrDuplicateKind)
	}

	h := KindHandle(len(r.kinds))
	r.kinds = append(r.kinds, Kind{Handle: h, Name: name, Params: p})
	r.byName[name] = h
	return h, nil
}

// MustRegister is Register for static setup code; it panics on error.
func (r *Registry) MustRegister(name string, p Params) KindHandle {
	h, err := r.Register(name, p)
	if err != nil {
		panic(err)
	}
	return h
}

// Params returns the immutable parameters for a handle.
func (r *Registry) Params(h KindHandle) (Params, error) {
	k, err := r.Kind(h)
	return k.Params, err
}

// Kind returns the full registration for a handle.
func (r *Registry) Kind(h KindHandle) (Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h < 0 || int(h) >= len(r.kinds) {
		return Kind{}, fmt.Errorf("handle %d: %w", h, ErrUnknownKind)
	}
	return r.kinds[h], nil
}

// Lookup returns the handle registered under name.
func (r *Registry) Lookup(name string) (KindHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.byName[name]
	if !ok {
		return -1, fmt.Errorf("%q: %w", name, ErrUnknownKind)
	}
	return h, nil
}

// Kinds returns a copy of every registration in handle order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Kind, len(r.kinds))
	copy(out, r.kinds)
	return out
}

// Len returns the number of registered kinds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kinds)
}

// Freeze closes registration. Idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return
	}
	r.frozen = true
	slog.Debug("signal registry frozen", "kinds", len(r.kinds))
}

// Frozen reports whether registration is closed.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
