// Package engine provides the tick-based simulation loop.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MaxSpeed bounds the speed multiplier the admin API can set.
const MaxSpeed = 1000

// Engine drives the simulation forward.
type Engine struct {
	Interval time.Duration // Base tick interval (default 100ms)

	// Periods for the slower layers. Zero disables a layer.
	ReportEvery   uint64
	SnapshotEvery uint64

	// Callbacks for each tick layer, populated during setup.
	OnTick     func(tick uint64) // Every tick
	OnReport   func(tick uint64) // Every ReportEvery ticks
	OnSnapshot func(tick uint64) // Every SnapshotEvery ticks

	mu      sync.Mutex
	tick    uint64  // Current tick counter (monotonic, never resets)
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool
	stopped bool
	cancel  context.CancelFunc
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval:    100 * time.Millisecond,
		ReportEvery: 100,
		speed:       1.0,
	}
}

// Tick returns the last completed tick.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// SetTick sets the counter, used when resuming from a snapshot.
func (e *Engine) SetTick(t uint64) {
	e.mu.Lock()
	e.tick = t
	e.mu.Unlock()
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. 0 pauses the loop.
func (e *Engine) SetSpeed(s float64) {
	e.mu.Lock()
	e.speed = s
	e.mu.Unlock()
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the simulation loop. Blocks until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.running = true
	e.stopped = false
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	for {
		speed := e.Speed()
		if speed <= 0 {
			// Paused, check again shortly.
			if !sleep(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()
		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			if !sleep(ctx, target-elapsed) {
				break
			}
		} else if ctx.Err() != nil {
			break
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick())
}

// RunTicks advances n ticks as fast as possible, ignoring speed. Used headless.
// It returns the number of ticks run, fewer than n when Stop was called.
func (e *Engine) RunTicks(n uint64) uint64 {
	e.mu.Lock()
	e.stopped = false
	e.mu.Unlock()

	for i := uint64(0); i < n; i++ {
		if e.isStopped() {
			return i
		}
		e.step()
	}
	return n
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Stop halts a running loop or a RunTicks batch after the current tick.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(tick)
	}
	if e.ReportEvery > 0 && tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(tick)
	}
	if e.SnapshotEvery > 0 && tick%e.SnapshotEvery == 0 && e.OnSnapshot != nil {
		e.OnSnapshot(tick)
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
