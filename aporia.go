// Package aporia is the public API for a definedness calculus engine: it
// tracks, per (target, context) pair, a score ν ∈ [0,1] derived from
// semantic, epistemic, and procedural sub-scores plus situational
// penalties, and exposes the eight pure operators that refine it.
//
// A minimal refinement loop:
//
//	p, err := aporia.NewPolicy()
//	if err != nil { ... }
//	clk := aporia.SystemClock()
//	sigma := aporia.Sigma{}
//
//	s := sigma.Get("widget-spec", "team-a", p, clk.Now())
//	s, rec, err := aporia.Incorporate(ctx, s, evidence, p, clk, roleFn, aporia.DefaultSemanticProvider{})
//	if err != nil { ... }
//	sigma = sigma.With(s)
//
//	decision := aporia.License(s, p)
//
// The import graph enforces a strict no-cycle rule: aporia (root) imports
// internal/*, but internal/* never imports aporia (root). Every exported
// type here is a direct alias onto the internal type it fronts, so values
// built through this package interoperate exactly with the internal engine
// — there is no conversion boundary to keep in sync.
package aporia
