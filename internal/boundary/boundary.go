// Package boundary implements the trust transform applied once at evidence
// ingestion: effective_trust(e, context) = e.trust * factor(context.role(e.src)).
package boundary

import (
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/types"
)

// Factor returns the context-role discount a policy applies to raw trust.
// RoleI carries no discount; Both (coalition membership on both sides of a
// context) and NotI/Unknown sources are discounted per policy, reflecting
// that evidence from outside (or ambiguously within) the context's governed
// side is less directly authoritative.
func Factor(role types.Role, p policy.Policy) float64 {
	switch role {
	case types.RoleI:
		return 1.0
	case types.RoleBoth:
		return p.CoalitionTrustFactor
	case types.RoleNotI:
		return p.NotITrustFactor
	default:
		return p.UnknownTrustFactor
	}
}

// EffectiveTrust applies the boundary transform to rawTrust for an agent
// resolved to role by the context's RoleFunc.
func EffectiveTrust(rawTrust float64, role types.Role, p policy.Policy) float64 {
	return rawTrust * Factor(role, p)
}

// Apply transforms item's trust in place of a copy: it sets PreTransformTrust
// to item.Trust (the raw value the caller supplied) and Trust to the
// boundary-transformed value, using roleFn to resolve item.Src. This is
// called exactly once, at Incorporate ingestion (spec.md §9); Merge unions
// items that were already transformed, and later
// operators consult the already-stored PreTransformTrust instead of
// re-invoking this function, except Recontextualize which calls it again
// under the new context's role function.
func Apply(item types.EvidenceItem, roleFn types.RoleFunc, p policy.Policy) types.EvidenceItem {
	out := item.Clone()
	out.PreTransformTrust = item.Trust
	role := types.RoleUnknown
	if roleFn != nil {
		role = roleFn(item.Src)
	}
	out.Trust = EffectiveTrust(item.Trust, role, p)
	return out
}

// Recontextualize re-derives Trust from the item's stored PreTransformTrust
// under a new context's role function, without replaying the original
// ingestion. PreTransformTrust itself is untouched.
func Recontextualize(item types.EvidenceItem, roleFn types.RoleFunc, p policy.Policy) types.EvidenceItem {
	out := item.Clone()
	role := types.RoleUnknown
	if roleFn != nil {
		role = roleFn(item.Src)
	}
	out.Trust = EffectiveTrust(item.PreTransformTrust, role, p)
	return out
}
