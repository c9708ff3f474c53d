package signals

import (
	"math"
	"sync"

	"github.com/talgya/mini-colony/internal/world"
)

// EmissionRequest asks for amount of kind to be added at cell on the next flush.
type EmissionRequest struct {
	Cell   world.HexCoord `json:"cell"`
	Kind   KindHandle     `json:"kind"`
	Amount float64        `json:"amount"`
}

// EmissionQueue buffers emission requests between flushes. Safe for concurrent
// Enqueue calls.
type EmissionQueue struct {
	mu      sync.Mutex
	pending []EmissionRequest
}

// Enqueue appends a request. Negative or NaN amounts are clamped to zero,
// meaning "no emission".
func (q *EmissionQueue) Enqueue(req EmissionRequest) {
	if math.IsNaN(req.Amount) || req.Amount < 0 {
		req.Amount = 0
	}
	q.mu.Lock()
	q.pending = append(q.pending, req)
	q.mu.Unlock()
}

// Len returns the number of buffered requests.
func (q *EmissionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// drain hands back the buffered requests and leaves the queue empty.
func (q *EmissionQueue) drain() []EmissionRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.pending
	q.pending = make([]EmissionRequest, 0, cap(out))
	return out
}

// Flush applies every buffered request to fields via Field.Add and clears the buffer.
// fieldFor returns the field for a kind, creating it on first use; it is not called
// for zero-amount requests, so a kind's field only appears on its first real emission.
func (q *EmissionQueue) Flush(fieldFor func(KindHandle) *Field) int {
	reqs := q.drain()
	applied := 0
	for _, req := range reqs {
		if req.Amount == 0 {
			continue
		}
		fieldFor(req.Kind).Add(req.Cell, req.Amount)
		applied++
	}
	return applied
}
