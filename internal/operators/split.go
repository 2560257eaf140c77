package operators

import (
	"context"

	"github.com/aporia-systems/aporia/internal/apperr"
	"github.com/aporia-systems/aporia/internal/clock"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/semanticdef"
	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

// ChildSpec describes one Split child: the target it tracks and an optional
// relevance override used instead of the policy's relevance_fn when
// aggregating that child's evidence.
type ChildSpec struct {
	Target            types.TargetID
	RelevanceOverride policy.RelevanceFunc
}

// Split creates one fresh state per entry in childSpecs, each holding a copy
// of the parent's evidence (not a partition), empty penalties, and metadata
// seeded with a Split marker referencing the parent. The loop iterates over
// indices 0..n exclusive of n, the off-by-one fix the source changelog calls
// out explicitly.
func Split(ctx context.Context, parent state.State, childSpecs []ChildSpec, p policy.Policy, clk clock.Clock, sem semanticdef.Provider) ([]state.State, []state.RefinementRecord, error) {
	if len(childSpecs) == 0 {
		return nil, nil, apperr.New(apperr.KindDomainMisuse, "childSpecs", "Split requires at least one child")
	}

	now := clk.Now()
	n := len(childSpecs)

	children := make([]state.State, 0, n)
	records := make([]state.RefinementRecord, 0, n)

	for i := 0; i < n; i++ {
		spec := childSpecs[i]

		child := state.New(spec.Target, parent.Ctx, types.DedupStrict, now)
		// Copy (not partition) the parent's evidence, preserving its dedup mode.
		child.Evidence = parent.Evidence.Filter(func(types.EvidenceItem) bool { return true })
		child.Meta.Tags = make(map[string]string, len(parent.Meta.Tags))
		for k, v := range parent.Meta.Tags {
			child.Meta.Tags[k] = v
		}
		marker := "split(parent=" + string(parent.Target) + ")"
		child.Meta.History = []string{marker}

		childPolicy := p
		if spec.RelevanceOverride != nil {
			childPolicy.Relevance = spec.RelevanceOverride
			child.Meta.Tags["relevance_override"] = "true"
		}

		nuRaw, err := recomputeNuRaw(ctx, child, childPolicy, sem, now)
		if err != nil {
			return nil, nil, err
		}
		child.NuRaw = nuRaw

		rec := state.RefinementRecord{
			Operator:    "Split",
			Time:        now,
			Target:      child.Target,
			Ctx:         child.Ctx,
			BeforeNuRaw: parent.NuRaw,
			BeforeNu:    parent.Nu(p.PenaltyMode),
			AfterNuRaw:  child.NuRaw,
			AfterNu:     child.Nu(p.PenaltyMode),
			Notes:       marker,
		}

		children = append(children, child)
		records = append(records, rec)
	}

	return children, records, nil
}
