// Package trace implements the append-only refinement trace: the only
// channel by which operators communicate provenance to a host. No operator
// reads the trace back.
package trace

import (
	"sync"

	"github.com/aporia-systems/aporia/internal/state"
)

// Tracer collects RefinementRecords in the order they are appended. It is
// safe for concurrent use by a host even though the engine itself is
// single-threaded and synchronous: multiple (target, context) refinement
// chains may be driven from different goroutines.
type Tracer struct {
	mu      sync.Mutex
	records []state.RefinementRecord
}

// New returns an empty Tracer.
func New() *Tracer {
	return &Tracer{}
}

// Append adds rec to the trace.
func (t *Tracer) Append(rec state.RefinementRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, rec)
}

// Records returns a copy of every record appended so far, in append order.
func (t *Tracer) Records() []state.RefinementRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]state.RefinementRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Len reports how many records have been appended.
func (t *Tracer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Reset clears every record appended so far, for hosts that export a batch
// and don't want it re-exported on the next call.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = nil
}
