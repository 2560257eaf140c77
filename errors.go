package aporia

import "github.com/aporia-systems/aporia/internal/apperr"

// Kind is a stable, inspectable tag identifying the category of engine
// failure (spec.md §7). Callers should branch on Kind via errors.As against
// *EngineError, not on the error message.
type Kind = apperr.Kind

const (
	// KindInvalidPolicy: weights do not sum to 1.0, a threshold outside
	// [0,1], a non-positive duration. Reported by NewPolicy.
	KindInvalidPolicy = apperr.KindInvalidPolicy
	// KindInvalidEvidence: valence outside [-1,+1], trust outside [0,1],
	// or a kind outside the closed set. Reported by Incorporate before any
	// state mutation is computed.
	KindInvalidEvidence = apperr.KindInvalidEvidence
	// KindInvariantViolation: an operator produced a state violating
	// I1..I7. Fatal; indicates a defect in the engine itself.
	KindInvariantViolation = apperr.KindInvariantViolation
	// KindDomainMisuse: Merge of states whose targets differ,
	// Recontextualize to an identical context, or Split with zero
	// children.
	KindDomainMisuse = apperr.KindDomainMisuse
	// KindProviderFailure: the pluggable semantic-definedness provider
	// errored or returned a value outside [0,1]. An out-of-range value is
	// clamped with a logged warning and never surfaces this kind; only a
	// provider that itself returns an error does.
	KindProviderFailure = apperr.KindProviderFailure
)

// EngineError wraps an error with a stable Kind tag and the name of the
// offending field or argument.
//
//	s, rec, err := aporia.Incorporate(ctx, s, items, p, clk, roleFn, sem)
//	var ee *aporia.EngineError
//	if errors.As(err, &ee) && ee.Kind == aporia.KindInvalidEvidence {
//	    // report the offending field back to the caller
//	}
type EngineError = apperr.EngineError
