package operators

import (
	"context"
	"math"
	"time"

	"github.com/aporia-systems/aporia/internal/clock"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

// decaySteps is the number of discrete decay steps a full penalty_clear_window
// is divided into (N ~= 24, per spec.md section 4.6).
const decaySteps = 24

// removeFloor is the value below which a decayed penalty is removed rather
// than kept as a vanishingly small residual.
const removeFloor = 1e-6

// PenaltyDecay decays or clears each penalty whose clearing condition has
// held. In v0.3.1 only the conflict penalty uses penalty_clear_start as its
// clearing condition; every other penalty source decays unconditionally
// whenever PenaltyDecayEnabled is set. Does not recompute nu_raw: penalties
// are the only thing that changes.
func PenaltyDecay(_ context.Context, s state.State, p policy.Policy, clk clock.Clock) (state.State, state.RefinementRecord) {
	now := clk.Now()
	before := s
	beforeNu := s.Nu(p.PenaltyMode)

	out := s.Clone()
	if !p.PenaltyDecayEnabled {
		out.Touch(now, "PenaltyDecay")
		rec := newRecord("PenaltyDecay", now, before, beforeNu, out, p)
		return out, rec
	}

	stepSize := p.PenaltyClearWindow / decaySteps

	for source, value := range out.Penalties {
		var elapsed time.Duration
		switch source {
		case types.PenaltyConflict:
			if out.Meta.PenaltyClearStart == nil {
				continue // clearing condition has not started yet
			}
			elapsed = now.Sub(*out.Meta.PenaltyClearStart)
		default:
			elapsed = stepSize // unconditional: always at least one step eligible
		}
		if elapsed <= 0 {
			continue
		}

		steps := math.Floor(float64(elapsed) / float64(stepSize))
		if steps <= 0 {
			continue
		}

		next := value * math.Pow(p.PenaltyDecayFactor, steps)
		if next < removeFloor {
			delete(out.Penalties, source)
		} else {
			out.Penalties[source] = next
		}
	}

	out.Touch(now, "PenaltyDecay")

	rec := newRecord("PenaltyDecay", now, before, beforeNu, out, p)
	rec.PenaltiesDelta = penaltiesDelta(before.Penalties, out.Penalties)
	return out, rec
}
