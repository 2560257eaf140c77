package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

func sampleState(t *testing.T) state.State {
	t.Helper()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := state.New(types.TargetID("widget-42"), types.ContextID("prod"), types.DedupStrict, now)
	s.NuRaw = 0.73
	s.Penalties = map[types.PenaltySource]float64{
		types.PenaltyConflict:       0.2,
		types.PenaltyScopeExpansion: 0.05,
	}

	item := types.EvidenceItem{
		ID:                types.EvidenceID("ev-1"),
		Kind:              types.KindEpistemic,
		Claim:             "widget-42 supports dark mode",
		Valence:           0.8,
		Src:               types.AgentID("agent-a"),
		Time:              now.UnixNano(),
		Trust:             0.6,
		PreTransformTrust: 0.9,
		Metadata:          map[string]string{"source_doc": "release-notes"},
	}
	var ok bool
	s.Evidence, ok = s.Evidence.Insert(item)
	require.True(t, ok)

	s.Meta.History = []string{"Incorporate", "Conflict"}
	s.Meta.Crossings = []state.Crossing{
		{From: types.ContextID("staging"), To: types.ContextID("prod"), Time: now.Add(time.Hour)},
	}
	clearStart := now.Add(-24 * time.Hour)
	s.Meta.ConflictLastApplied = &now
	s.Meta.PenaltyClearStart = &clearStart
	s.Meta.Tags = map[string]string{"team": "platform"}
	s.Meta.LastModifiedTime = now.Add(2 * time.Hour)

	return s
}

func TestToRowFromRowRoundTrips(t *testing.T) {
	s := sampleState(t)

	r := toRow(s)
	got, err := fromRow(r, types.DedupStrict)
	require.NoError(t, err)

	assert.Equal(t, s.Target, got.Target)
	assert.Equal(t, s.Ctx, got.Ctx)
	assert.Equal(t, s.NuRaw, got.NuRaw)
	assert.Equal(t, s.Penalties, got.Penalties)
	assert.Equal(t, s.Evidence.All(), got.Evidence.All())
	assert.Equal(t, s.Meta.History, got.Meta.History)
	assert.Equal(t, s.Meta.Crossings, got.Meta.Crossings)
	assert.Equal(t, s.Meta.Tags, got.Meta.Tags)
	require.NotNil(t, got.Meta.ConflictLastApplied)
	assert.True(t, s.Meta.ConflictLastApplied.Equal(*got.Meta.ConflictLastApplied))
	require.NotNil(t, got.Meta.PenaltyClearStart)
	assert.True(t, s.Meta.PenaltyClearStart.Equal(*got.Meta.PenaltyClearStart))
}

func TestMarshalUnmarshalRowRoundTrips(t *testing.T) {
	s := sampleState(t)

	penalties, evidence, metadata, err := marshalRow(s)
	require.NoError(t, err)

	got, err := unmarshalRow(string(s.Target), string(s.Ctx), s.NuRaw, penalties, evidence, metadata, s.Meta.LastModifiedTime, types.DedupStrict)
	require.NoError(t, err)

	assert.Equal(t, s.Target, got.Target)
	assert.Equal(t, s.NuRaw, got.NuRaw)
	assert.Equal(t, s.Penalties, got.Penalties)
	assert.Equal(t, s.Evidence.All(), got.Evidence.All())
	assert.Equal(t, s.Meta.Tags, got.Meta.Tags)
}

func TestFromRowRejectsUnknownPenaltySource(t *testing.T) {
	r := row{
		TargetID:  "t",
		ContextID: "c",
		Penalties: map[string]float64{"not_a_real_source": 1},
		Metadata:  metadataRow{},
	}
	_, err := fromRow(r, types.DedupStrict)
	assert.Error(t, err)
}

func TestFromRowRejectsUnknownEvidenceKind(t *testing.T) {
	r := row{
		TargetID:  "t",
		ContextID: "c",
		Evidence:  []evidenceRow{{ID: "e1", Kind: "not_a_real_kind"}},
		Metadata:  metadataRow{},
	}
	_, err := fromRow(r, types.DedupStrict)
	assert.Error(t, err)
}

func TestFromRowRejectsDuplicateEvidenceIDOnLoad(t *testing.T) {
	r := row{
		TargetID:  "t",
		ContextID: "c",
		Evidence: []evidenceRow{
			{ID: "e1", Kind: string(types.KindEpistemic), Src: "a"},
			{ID: "e1", Kind: string(types.KindEpistemic), Src: "a"},
		},
		Metadata: metadataRow{},
	}
	_, err := fromRow(r, types.DedupStrict)
	assert.Error(t, err)
}
