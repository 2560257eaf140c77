package aporia

import "github.com/aporia-systems/aporia/internal/query"

// Decision is the result of License: whether downstream truth evaluation
// may proceed against the queried state, and why.
type Decision = query.Decision

// Ranked is one entry in QueryNext's output: the (target, context) key and
// the state it was ranked from.
type Ranked = query.Ranked

// License evaluates s against p's thresholds. It is licensed exactly when
// ν_raw <= θ_eval_raw AND ν <= θ_eval; null_classified shadows every other
// reason once ν >= θ_null, regardless of the other checks.
func License(s State, p Policy) Decision {
	return query.License(s, p)
}

// QueryNext returns sigma's entries ranked by ν descending, then ν_raw
// descending, then last-modified ascending (oldest first) — the order a
// host should prioritize for further refinement.
func QueryNext(sigma Sigma, p Policy) []Ranked {
	return query.QueryNext(sigma, p)
}
