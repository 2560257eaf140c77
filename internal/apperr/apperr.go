// Package apperr defines the closed, inspectable error kinds the engine
// reports (spec.md §7): invalid-policy, invalid-evidence, invariant-violation,
// domain-misuse, and provider-failure. It has no dependency on the rest of
// the module so every package can construct a tagged error without risking
// an import cycle; the root aporia package re-exports Kind and EngineError
// as its public error surface.
package apperr

import "fmt"

// Kind is a stable, inspectable tag identifying the category of engine
// failure. The message on an EngineError is advisory; callers should branch
// on Kind, not on message text.
type Kind string

const (
	// KindInvalidPolicy: weights do not sum to 1.0, a threshold outside
	// [0,1], a non-positive duration. Detected at Policy construction.
	KindInvalidPolicy Kind = "invalid-policy"
	// KindInvalidEvidence: valence outside [-1,+1], trust outside [0,1],
	// or a kind outside the closed set. Detected at operator entry, before
	// any state mutation is computed.
	KindInvalidEvidence Kind = "invalid-evidence"
	// KindInvariantViolation: an operator produced a state violating
	// I1..I7. Fatal; indicates a defect in the engine itself.
	KindInvariantViolation Kind = "invariant-violation"
	// KindDomainMisuse: a caller bug such as Merge of states whose targets
	// differ, Recontextualize to an identical context, or Split with zero
	// children. Reported identically to invalid-evidence.
	KindDomainMisuse Kind = "domain-misuse"
	// KindProviderFailure: the pluggable semantic-definedness provider
	// returned a value outside [0,1]. Never fatal on its own — the engine
	// clamps and continues — but a provider that errors outright surfaces
	// with this kind.
	KindProviderFailure Kind = "provider-failure"
)

// EngineError wraps an error with a stable Kind tag and the name of the
// offending field or argument, so a host can branch on Kind via errors.As
// without parsing the message.
type EngineError struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Err }

// New builds an EngineError with no wrapped cause.
func New(kind Kind, field, message string) *EngineError {
	return &EngineError{Kind: kind, Field: field, Message: message}
}

// Wrap builds an EngineError tagging an existing error with kind.
func Wrap(kind Kind, field string, err error) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{Kind: kind, Field: field, Message: err.Error(), Err: err}
}
