package operators

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aporia-systems/aporia/internal/apperr"
	"github.com/aporia-systems/aporia/internal/clock"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/semanticdef"
	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

func roleIAlways(types.AgentID) types.Role { return types.RoleI }

func newTestPolicy(t *testing.T) policy.Policy {
	t.Helper()
	p, err := policy.New()
	require.NoError(t, err)
	return p
}

func TestIncorporateInsertsEvidenceAndRecomputesNuRaw(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())

	items := []types.EvidenceItem{
		{ID: "e1", Kind: types.KindEpistemic, Valence: 0.7, Trust: 0.8, Src: "agentA", Time: clk.Now().UnixNano()},
	}

	out, rec, err := Incorporate(context.Background(), s, items, p, clk, roleIAlways, semanticdef.DefaultProvider{})
	require.NoError(t, err)
	assert.True(t, out.Evidence.Contains("e1"))
	assert.Less(t, out.NuRaw, s.NuRaw)
	assert.Equal(t, "Incorporate", rec.Operator)
	assert.Equal(t, []types.EvidenceID{"e1"}, rec.EvidenceAdded)
	assert.Equal(t, []string{"Incorporate"}, out.Meta.History)
}

func TestIncorporateRejectsStrictDuplicate(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", types.DedupStrict, clk.Now())

	item := types.EvidenceItem{ID: "e1", Kind: types.KindEpistemic, Valence: 0.5, Trust: 1, Src: "a", Time: clk.Now().UnixNano()}
	s, _, err := Incorporate(context.Background(), s, []types.EvidenceItem{item}, p, clk, roleIAlways, semanticdef.DefaultProvider{})
	require.NoError(t, err)

	out, rec, err := Incorporate(context.Background(), s, []types.EvidenceItem{item}, p, clk, roleIAlways, semanticdef.DefaultProvider{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Evidence.Len())
	assert.Empty(t, rec.EvidenceAdded)
}

func TestIncorporateTriggersConflictPenaltyAboveThreshold(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())

	items := []types.EvidenceItem{
		{ID: "e1", Kind: types.KindEpistemic, Valence: 1, Trust: 1, Src: "a", Time: clk.Now().UnixNano()},
		{ID: "e2", Kind: types.KindEpistemic, Valence: -1, Trust: 1, Src: "b", Time: clk.Now().UnixNano()},
	}

	out, _, err := Incorporate(context.Background(), s, items, p, clk, roleIAlways, semanticdef.DefaultProvider{})
	require.NoError(t, err)
	assert.Contains(t, out.Penalties, types.PenaltyConflict)
	assert.InDelta(t, p.MaxConflictPenalty, out.Penalties[types.PenaltyConflict], 1e-9) // conflict=1.0 saturates the bound
}

func TestNegDefineIncrementsConstraintCoverageAndRecomputes(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())

	constraints := make([]Constraint, 5)
	for i := range constraints {
		constraints[i] = Constraint{Claim: "constraint " + strconv.Itoa(i)}
	}

	out, rec, err := NegDefine(context.Background(), s, constraints, p, clk, semanticdef.DefaultProvider{})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, tagFloatForTest(out.Meta.Tags), 1e-9)
	assert.Len(t, rec.EvidenceAdded, 5)
	assert.Less(t, out.NuRaw, s.NuRaw)
}

func tagFloatForTest(tags map[string]string) float64 {
	v, ok := tags["constraint_coverage"]
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func TestMergeAddsRuptureOnlyWhenUnionCreatesNewConflict(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))

	a := state.New("t1", "c1", p.DedupMode, clk.Now())
	a.Evidence, _ = a.Evidence.Insert(types.EvidenceItem{ID: "e1", Kind: types.KindEpistemic, Valence: 1, Trust: 1, Src: "a", Time: clk.Now().UnixNano()})

	b := state.New("t1", "c2", p.DedupMode, clk.Now())
	b.Evidence, _ = b.Evidence.Insert(types.EvidenceItem{ID: "e2", Kind: types.KindEpistemic, Valence: -1, Trust: 1, Src: "b", Time: clk.Now().UnixNano()})

	out, rec, err := Merge(context.Background(), a, b, p, clk, semanticdef.DefaultProvider{})
	require.NoError(t, err)
	assert.Contains(t, out.Penalties, types.PenaltyMergeRupture)
	assert.Equal(t, 2, out.Evidence.Len())
	assert.Equal(t, a.Ctx, out.Ctx)
	assert.Equal(t, "Merge", rec.Operator)
}

func TestRecontextualizeRederivesTrustFromPreTransform(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))

	s := state.New("t1", "c1", p.DedupMode, clk.Now())
	s, _, err := Incorporate(context.Background(), s, []types.EvidenceItem{
		{ID: "e1", Kind: types.KindEpistemic, Valence: 0.5, Trust: 0.8, Src: "a", Time: clk.Now().UnixNano()},
	}, p, clk, roleIAlways, semanticdef.DefaultProvider{})
	require.NoError(t, err)

	roleNotI := func(types.AgentID) types.Role { return types.RoleNotI }
	out, rec, err := Recontextualize(context.Background(), s, "c2", roleNotI, 0, p, clk, semanticdef.DefaultProvider{})
	require.NoError(t, err)

	items := out.Evidence.All()
	require.Len(t, items, 1)
	assert.InDelta(t, 0.8*p.NotITrustFactor, items[0].Trust, 1e-9)
	assert.Equal(t, 0.8, items[0].PreTransformTrust)
	assert.Equal(t, types.ContextID("c2"), out.Ctx)
	assert.Len(t, out.Meta.Crossings, 1)
	assert.Equal(t, "Recontextualize", rec.Operator)
}

func TestRecontextualizeScopeExpansionPenalty(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())

	out, _, err := Recontextualize(context.Background(), s, "c2", roleIAlways, 1.0, p, clk, semanticdef.DefaultProvider{})
	require.NoError(t, err)
	assert.InDelta(t, p.MaxConflictPenalty, out.Penalties[types.PenaltyScopeExpansion], 1e-9)
}

func TestConflictRespectsCooldown(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())
	s.Evidence, _ = s.Evidence.Insert(types.EvidenceItem{ID: "e1", Kind: types.KindEpistemic, Valence: 1, Trust: 1, Src: "a", Time: clk.Now().UnixNano()})
	s.Evidence, _ = s.Evidence.Insert(types.EvidenceItem{ID: "e2", Kind: types.KindEpistemic, Valence: -1, Trust: 1, Src: "b", Time: clk.Now().UnixNano()})

	out1, _ := Conflict(context.Background(), s, p, clk)
	require.Contains(t, out1.Penalties, types.PenaltyConflict)
	firstPenalty := out1.Penalties[types.PenaltyConflict]

	clk.Advance(1 * time.Minute) // well within the 1-hour default cooldown
	out2, _ := Conflict(context.Background(), out1, p, clk)
	assert.Equal(t, firstPenalty, out2.Penalties[types.PenaltyConflict])
}

func TestConflictAppliesAgainAfterCooldownElapses(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())
	s.Evidence, _ = s.Evidence.Insert(types.EvidenceItem{ID: "e1", Kind: types.KindEpistemic, Valence: 1, Trust: 1, Src: "a", Time: clk.Now().UnixNano()})
	s.Evidence, _ = s.Evidence.Insert(types.EvidenceItem{ID: "e2", Kind: types.KindEpistemic, Valence: -1, Trust: 1, Src: "b", Time: clk.Now().UnixNano()})

	out1, _ := Conflict(context.Background(), s, p, clk)
	require.Contains(t, out1.Penalties, types.PenaltyConflict)

	clk.Advance(2 * time.Hour)
	out2, rec := Conflict(context.Background(), out1, p, clk)
	assert.Contains(t, out2.Penalties, types.PenaltyConflict)
	assert.NotNil(t, out2.Meta.ConflictLastApplied)
	assert.Equal(t, "Conflict", rec.Operator)
}

func TestPenaltyDecayDecaysUnconditionalSourcesEachCall(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())
	s.Penalties[types.PenaltyScopeExpansion] = 0.1

	out, _ := PenaltyDecay(context.Background(), s, p, clk)
	assert.Less(t, out.Penalties[types.PenaltyScopeExpansion], 0.1)
}

func TestPenaltyDecayRemovesBelowFloor(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())
	s.Penalties[types.PenaltyScopeExpansion] = 1e-7

	out, _ := PenaltyDecay(context.Background(), s, p, clk)
	assert.NotContains(t, out.Penalties, types.PenaltyScopeExpansion)
}

func TestPenaltyDecayOnlyTouchesConflictAfterClearStart(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())
	s.Penalties[types.PenaltyConflict] = 0.2
	// No PenaltyClearStart set: clearing condition has not begun.

	out, _ := PenaltyDecay(context.Background(), s, p, clk)
	assert.Equal(t, 0.2, out.Penalties[types.PenaltyConflict])
}

func TestSplitIteratesExactlyNChildrenNotNPlusOne(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	parent := state.New("parent", "c1", p.DedupMode, clk.Now())

	specs := []ChildSpec{{Target: "child1"}, {Target: "child2"}, {Target: "child3"}}
	children, records, err := Split(context.Background(), parent, specs, p, clk, semanticdef.DefaultProvider{})
	require.NoError(t, err)
	assert.Len(t, children, 3)
	assert.Len(t, records, 3)
}

func TestSplitChildHasFreshPenalties(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	parent := state.New("parent", "c1", p.DedupMode, clk.Now())
	parent.Penalties[types.PenaltyConflict] = 0.2

	children, _, err := Split(context.Background(), parent, []ChildSpec{{Target: "child1"}}, p, clk, semanticdef.DefaultProvider{})
	require.NoError(t, err)
	assert.Empty(t, children[0].Penalties)
}

func TestSplitCopiesNotPartitionsEvidence(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	parent := state.New("parent", "c1", p.DedupMode, clk.Now())
	parent.Evidence, _ = parent.Evidence.Insert(types.EvidenceItem{ID: "e1", Kind: types.KindEpistemic, Valence: 1, Trust: 1, Src: "a", Time: clk.Now().UnixNano()})

	children, _, err := Split(context.Background(), parent, []ChildSpec{{Target: "c1"}, {Target: "c2"}}, p, clk, semanticdef.DefaultProvider{})
	require.NoError(t, err)
	assert.Equal(t, 1, children[0].Evidence.Len())
	assert.Equal(t, 1, children[1].Evidence.Len())
}

func TestSplitRecordsRelevanceOverrideInChildTags(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	parent := state.New("parent", "c1", p.DedupMode, clk.Now())

	override := func(types.EvidenceItem, types.TargetID, types.ContextID) float64 { return 1 }
	specs := []ChildSpec{{Target: "child1", RelevanceOverride: override}, {Target: "child2"}}
	children, _, err := Split(context.Background(), parent, specs, p, clk, semanticdef.DefaultProvider{})
	require.NoError(t, err)

	assert.Equal(t, "true", children[0].Meta.Tags["relevance_override"])
	assert.NotContains(t, children[1].Meta.Tags, "relevance_override")
}

func TestDecayRefreshesLastModifiedWithoutTouchingEvidence(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())
	s.Evidence, _ = s.Evidence.Insert(types.EvidenceItem{ID: "e1", Kind: types.KindEpistemic, Valence: 1, Trust: 1, Src: "a", Time: clk.Now().UnixNano()})

	fresh, _, err := Decay(context.Background(), s, p, clk, semanticdef.DefaultProvider{})
	require.NoError(t, err)

	clk.Advance(100 * time.Hour)
	out, rec, err := Decay(context.Background(), fresh, p, clk, semanticdef.DefaultProvider{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Evidence.Len())
	assert.Equal(t, clk.Now(), out.Meta.LastModifiedTime)
	assert.Greater(t, out.NuRaw, fresh.NuRaw) // old evidence decays toward less mass -> more undefined-by-evidence, nu_raw rises
	assert.Equal(t, "Decay", rec.Operator)
}

func TestIncorporateRejectsValenceOutOfRange(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())

	items := []types.EvidenceItem{
		{ID: "e1", Kind: types.KindEpistemic, Valence: 1.5, Trust: 0.8, Src: "agentA", Time: clk.Now().UnixNano()},
	}

	_, _, err := Incorporate(context.Background(), s, items, p, clk, roleIAlways, semanticdef.DefaultProvider{})
	require.Error(t, err)
	var ee *apperr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, apperr.KindInvalidEvidence, ee.Kind)
	assert.Equal(t, 0, s.Evidence.Len()) // rejected before any mutation
}

func TestIncorporateRejectsTrustOutOfRange(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())

	items := []types.EvidenceItem{
		{ID: "e1", Kind: types.KindEpistemic, Valence: 0.5, Trust: -0.1, Src: "agentA", Time: clk.Now().UnixNano()},
	}

	_, _, err := Incorporate(context.Background(), s, items, p, clk, roleIAlways, semanticdef.DefaultProvider{})
	require.Error(t, err)
	var ee *apperr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, apperr.KindInvalidEvidence, ee.Kind)
}

func TestMergeRejectsMismatchedTargets(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	a := state.New("t1", "c1", p.DedupMode, clk.Now())
	b := state.New("t2", "c1", p.DedupMode, clk.Now())

	_, _, err := Merge(context.Background(), a, b, p, clk, semanticdef.DefaultProvider{})
	require.Error(t, err)
	var ee *apperr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, apperr.KindDomainMisuse, ee.Kind)
}

func TestRecontextualizeRejectsIdenticalContext(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	s := state.New("t1", "c1", p.DedupMode, clk.Now())

	_, _, err := Recontextualize(context.Background(), s, "c1", roleIAlways, 0, p, clk, semanticdef.DefaultProvider{})
	require.Error(t, err)
	var ee *apperr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, apperr.KindDomainMisuse, ee.Kind)
}

func TestSplitRejectsZeroChildren(t *testing.T) {
	p := newTestPolicy(t)
	clk := clock.NewMock(time.Unix(1000, 0))
	parent := state.New("t1", "c1", p.DedupMode, clk.Now())

	_, _, err := Split(context.Background(), parent, nil, p, clk, semanticdef.DefaultProvider{})
	require.Error(t, err)
	var ee *apperr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, apperr.KindDomainMisuse, ee.Kind)
}
