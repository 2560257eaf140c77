package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aporia-systems/aporia/internal/evidence"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/types"
)

func TestDecayAtZeroIsOne(t *testing.T) {
	assert.Equal(t, 1.0, Decay(0, time.Hour))
}

func TestDecayAtHalfLifeIsOneHalf(t *testing.T) {
	assert.InDelta(t, 0.5, Decay(time.Hour, time.Hour), 1e-9)
}

func TestDecayIsMonotoneNonIncreasing(t *testing.T) {
	d1 := Decay(time.Hour, 24*time.Hour)
	d2 := Decay(2*time.Hour, 24*time.Hour)
	assert.GreaterOrEqual(t, d1, d2)
}

func TestConflictZeroWhenNoMass(t *testing.T) {
	p, err := policy.New()
	require.NoError(t, err)
	set := evidence.New(types.DedupStrict)
	res := Aggregate(set, "t", "c", p, time.Unix(0, 0))
	assert.Equal(t, 0.0, res.Conflict)
	assert.Equal(t, 0.0, res.DefEp)
}

func TestAggregateSeparatesPositiveAndNegativeMass(t *testing.T) {
	p, err := policy.New()
	require.NoError(t, err)

	now := time.Unix(1000, 0)
	set := evidence.New(types.DedupStrict)
	set, _ = set.Insert(types.EvidenceItem{
		ID: "e1", Kind: types.KindEpistemic, Valence: 1.0, Trust: 0.8, Time: now.UnixNano(),
	})
	set, _ = set.Insert(types.EvidenceItem{
		ID: "e2", Kind: types.KindEpistemic, Valence: -1.0, Trust: 0.5, Time: now.UnixNano(),
	})

	res := Aggregate(set, "t", "c", p, now)
	assert.InDelta(t, 0.8, res.PosMass, 1e-9)
	assert.InDelta(t, 0.5, res.NegMass, 1e-9)
}

func TestConflictIsOneWhenMassEquallyBalanced(t *testing.T) {
	p, err := policy.New()
	require.NoError(t, err)
	now := time.Unix(1000, 0)
	set := evidence.New(types.DedupStrict)
	set, _ = set.Insert(types.EvidenceItem{ID: "e1", Kind: types.KindEpistemic, Valence: 1, Trust: 1, Time: now.UnixNano()})
	set, _ = set.Insert(types.EvidenceItem{ID: "e2", Kind: types.KindEpistemic, Valence: -1, Trust: 1, Time: now.UnixNano()})

	res := Aggregate(set, "t", "c", p, now)
	assert.InDelta(t, 1.0, res.Conflict, 1e-9)
}

func TestDefEpMassTwoYieldsApproximatelyPointEightFive(t *testing.T) {
	p, err := policy.New()
	require.NoError(t, err)
	now := time.Unix(1000, 0)
	set := evidence.New(types.DedupStrict)
	set, _ = set.Insert(types.EvidenceItem{ID: "e1", Kind: types.KindEpistemic, Valence: 1, Trust: 2, Time: now.UnixNano()})

	res := Aggregate(set, "t", "c", p, now)
	assert.InDelta(t, 0.85, res.DefEp, 0.01)
}

func TestDefinitionalItemsExcludedFromAggregation(t *testing.T) {
	p, err := policy.New()
	require.NoError(t, err)
	now := time.Unix(1000, 0)
	set := evidence.New(types.DedupStrict)
	set, _ = set.Insert(types.EvidenceItem{ID: "e1", Kind: types.KindDefinitional, Valence: 0, Trust: 1, Time: now.UnixNano()})

	res := Aggregate(set, "t", "c", p, now)
	assert.Equal(t, 0.0, res.PosMass)
	assert.Equal(t, 0.0, res.DefProc)
}

func TestCombineDefAndNuRaw(t *testing.T) {
	p, err := policy.New()
	require.NoError(t, err)
	def := CombineDef(0.5, 0.5, 0.5, p)
	assert.InDelta(t, 0.5, def, 1e-9)
	assert.InDelta(t, 0.5, NuRaw(def), 1e-9)
}
