package aporia

import "github.com/aporia-systems/aporia/internal/types"

// Identifiers. TargetID names a concept or proposition whose definedness is
// tracked; ContextID names a scope of refinement; AgentID names an
// evidence source or context role-holder; EvidenceID identifies a single
// evidence item. Incorporate keeps the ID the caller supplies; NegDefine
// derives one from the content of each constraint it synthesizes.
type (
	TargetID   = types.TargetID
	ContextID  = types.ContextID
	AgentID    = types.AgentID
	EvidenceID = types.EvidenceID
)

// EvidenceKind partitions evidence into the three disjoint subsets
// aggregation treats differently: epistemic items drive pos/neg mass and
// conflict, definitional items feed Def_sem's default provider instead,
// procedural items drive Def_proc alone.
type EvidenceKind = types.EvidenceKind

const (
	KindEpistemic    = types.KindEpistemic
	KindDefinitional = types.KindDefinitional
	KindProcedural   = types.KindProcedural
)

// Role is an agent's standing within a context's I-side/NotI-side
// partition, consulted by the boundary transform at ingestion.
type Role = types.Role

const (
	RoleI       = types.RoleI
	RoleNotI    = types.RoleNotI
	RoleBoth    = types.RoleBoth
	RoleUnknown = types.RoleUnknown
)

// PenaltySource is the closed set of situational-penalty origins a State's
// Penalties map may carry.
type PenaltySource = types.PenaltySource

const (
	PenaltyConflict       = types.PenaltyConflict
	PenaltyScopeExpansion = types.PenaltyScopeExpansion
	PenaltyMergeRupture   = types.PenaltyMergeRupture
	PenaltyCategoryError  = types.PenaltyCategoryError
	PenaltyManual         = types.PenaltyManual
)

// DedupMode selects how an evidence set treats items with equal derived
// IDs: strict rejects any duplicate, corroboration retains a duplicate
// submitted by a new source.
type DedupMode = types.DedupMode

const (
	DedupStrict        = types.DedupStrict
	DedupCorroboration = types.DedupCorroboration
)

// PenaltyCombine selects how a state's ν_penalties map folds into the
// single offset Nu adds to ν_raw.
type PenaltyCombine = types.PenaltyCombine

const (
	CombineMax = types.CombineMax
	CombineSum = types.CombineSum
)

// LicenseReason is the closed set of explanations License returns.
type LicenseReason = types.LicenseReason

const (
	ReasonLicensed          = types.ReasonLicensed
	ReasonStructurallyVague = types.ReasonStructurallyVague
	ReasonPenaltyBlock      = types.ReasonPenaltyBlock
	ReasonNullClassified    = types.ReasonNullClassified
)

// RoleFunc resolves an agent's role within a context. Hosts supply one;
// the engine never invents a role assignment.
type RoleFunc = types.RoleFunc

// EvidenceItem is a single piece of evidence (spec data model): a claim
// with a valence in [-1,+1], a source, a trust in [0,1], and a kind. Trust
// is the boundary-transformed value aggregation reads; PreTransformTrust is
// retained so Recontextualize can re-derive trust under a different
// context's role function without replaying Incorporate.
type EvidenceItem = types.EvidenceItem
