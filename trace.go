package aporia

import "github.com/aporia-systems/aporia/internal/trace"

// Tracer collects RefinementRecords in the order they are appended. It is
// safe for concurrent use by a host even though the engine itself is
// single-threaded and synchronous: multiple (target, context) refinement
// chains may be driven from different goroutines.
type Tracer = trace.Tracer

// NewTracer returns an empty Tracer.
func NewTracer() *Tracer { return trace.New() }
