package aporia

import (
	"time"

	"github.com/aporia-systems/aporia/internal/clock"
)

// Clock produces monotonically non-decreasing timestamps. Operators never
// call time.Now directly; every timestamp on a State or RefinementRecord is
// read once, at operator entry, from a Clock the host provides.
type Clock = clock.Clock

// SystemClock returns the real wall-clock implementation.
func SystemClock() Clock { return clock.System{} }

// MockClock is a deterministic clock for hosts that want explicit control
// over cooldown/decay-window arithmetic in tests.
type MockClock = clock.Mock

// NewMockClock creates a MockClock starting at t.
func NewMockClock(t time.Time) *MockClock { return clock.NewMock(t) }
