// Package storage provides reference Σ-persistence layers for hosts that
// want to survive process restarts: a PostgreSQL/pgvector-backed Store for
// server deployments and a modernc.org/sqlite-backed Store for embedded or
// offline hosts, both implementing the same interface (spec.md §6
// "Persisted state layout"). The engine itself never depends on this
// package — State is pure and in-memory; persistence is a host concern.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

// Store persists and loads definedness states keyed by (target, context).
// Implementations must round-trip a State exactly, including evidence
// items' pre-boundary-transform trust, so Recontextualize keeps working
// correctly across a save/load cycle.
type Store interface {
	// SaveState upserts s at its (Target, Ctx) key.
	SaveState(ctx context.Context, s state.State) error
	// LoadState returns the state at (target, ctxID), or ok=false if none
	// has been saved.
	LoadState(ctx context.Context, target types.TargetID, ctxID types.ContextID) (s state.State, ok bool, err error)
	// LoadSigma returns every saved state as a Sigma.
	LoadSigma(ctx context.Context) (state.Sigma, error)
	// Close releases the store's underlying connection or handle.
	Close(ctx context.Context) error
}

// row is the serializable shape of a State, matching spec.md §6's
// persisted state layout: {target_id, context_id, nu_raw, nu_penalties,
// evidence, metadata}. Forward compatibility: additional metadata fields
// are ignored on load, since metadataRow is decoded leniently by
// encoding/json.
type row struct {
	TargetID  string             `json:"target_id"`
	ContextID string             `json:"context_id"`
	NuRaw     float64            `json:"nu_raw"`
	Penalties map[string]float64 `json:"penalties"`
	Evidence  []evidenceRow      `json:"evidence"`
	Metadata  metadataRow        `json:"metadata"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type evidenceRow struct {
	ID                string            `json:"id"`
	Kind              string            `json:"kind"`
	Claim             string            `json:"claim"`
	Valence           float64           `json:"valence"`
	Src               string            `json:"src"`
	Time              int64             `json:"time"`
	Trust             float64           `json:"trust"`
	PreTransformTrust float64           `json:"pre_transform_trust"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type crossingRow struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	Time time.Time `json:"time"`
}

type metadataRow struct {
	CreationTime        time.Time         `json:"creation_time"`
	LastModifiedTime    time.Time         `json:"last_modified_time"`
	History             []string          `json:"history"`
	Crossings           []crossingRow     `json:"crossings"`
	ConflictLastApplied *time.Time        `json:"conflict_last_applied,omitempty"`
	PenaltyClearStart   *time.Time        `json:"penalty_clear_start,omitempty"`
	Tags                map[string]string `json:"tags,omitempty"`
}

func toRow(s state.State) row {
	penalties := make(map[string]float64, len(s.Penalties))
	for k, v := range s.Penalties {
		penalties[string(k)] = v
	}

	items := s.Evidence.All()
	evidence := make([]evidenceRow, len(items))
	for i, e := range items {
		evidence[i] = evidenceRow{
			ID:                string(e.ID),
			Kind:              string(e.Kind),
			Claim:             e.Claim,
			Valence:           e.Valence,
			Src:               string(e.Src),
			Time:              e.Time,
			Trust:             e.Trust,
			PreTransformTrust: e.PreTransformTrust,
			Metadata:          e.Metadata,
		}
	}

	crossings := make([]crossingRow, len(s.Meta.Crossings))
	for i, c := range s.Meta.Crossings {
		crossings[i] = crossingRow{From: string(c.From), To: string(c.To), Time: c.Time}
	}

	return row{
		TargetID:  string(s.Target),
		ContextID: string(s.Ctx),
		NuRaw:     s.NuRaw,
		Penalties: penalties,
		Evidence:  evidence,
		Metadata: metadataRow{
			CreationTime:        s.Meta.CreationTime,
			LastModifiedTime:    s.Meta.LastModifiedTime,
			History:             s.Meta.History,
			Crossings:           crossings,
			ConflictLastApplied: s.Meta.ConflictLastApplied,
			PenaltyClearStart:   s.Meta.PenaltyClearStart,
			Tags:                s.Meta.Tags,
		},
		UpdatedAt: s.Meta.LastModifiedTime,
	}
}

func fromRow(r row, mode types.DedupMode) (state.State, error) {
	out := state.New(types.TargetID(r.TargetID), types.ContextID(r.ContextID), mode, r.Metadata.CreationTime)
	out.NuRaw = r.NuRaw

	penalties := make(map[types.PenaltySource]float64, len(r.Penalties))
	for k, v := range r.Penalties {
		src := types.PenaltySource(k)
		if !src.Valid() {
			return state.State{}, fmt.Errorf("storage: unknown penalty source %q", k)
		}
		penalties[src] = v
	}
	out.Penalties = penalties

	for _, e := range r.Evidence {
		kind := types.EvidenceKind(e.Kind)
		if !kind.Valid() {
			return state.State{}, fmt.Errorf("storage: unknown evidence kind %q", e.Kind)
		}
		item := types.EvidenceItem{
			ID:                types.EvidenceID(e.ID),
			Kind:              kind,
			Claim:             e.Claim,
			Valence:           e.Valence,
			Src:               types.AgentID(e.Src),
			Time:              e.Time,
			Trust:             e.Trust,
			PreTransformTrust: e.PreTransformTrust,
			Metadata:          e.Metadata,
		}
		var ok bool
		out.Evidence, ok = out.Evidence.Insert(item)
		if !ok {
			return state.State{}, fmt.Errorf("storage: duplicate evidence id %q on load", e.ID)
		}
	}

	crossings := make([]state.Crossing, len(r.Metadata.Crossings))
	for i, c := range r.Metadata.Crossings {
		crossings[i] = state.Crossing{From: types.ContextID(c.From), To: types.ContextID(c.To), Time: c.Time}
	}

	out.Meta = state.Metadata{
		CreationTime:        r.Metadata.CreationTime,
		LastModifiedTime:    r.Metadata.LastModifiedTime,
		History:             r.Metadata.History,
		Crossings:           crossings,
		ConflictLastApplied: r.Metadata.ConflictLastApplied,
		PenaltyClearStart:   r.Metadata.PenaltyClearStart,
		Tags:                r.Metadata.Tags,
	}
	if out.Meta.Tags == nil {
		out.Meta.Tags = map[string]string{}
	}

	return out, nil
}

func marshalRow(s state.State) ([]byte, []byte, []byte, error) {
	r := toRow(s)
	penalties, err := json.Marshal(r.Penalties)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("storage: marshal penalties: %w", err)
	}
	evidence, err := json.Marshal(r.Evidence)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("storage: marshal evidence: %w", err)
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("storage: marshal metadata: %w", err)
	}
	return penalties, evidence, metadata, nil
}

func unmarshalRow(targetID, contextID string, nuRaw float64, penaltiesJSON, evidenceJSON, metadataJSON []byte, updatedAt time.Time, mode types.DedupMode) (state.State, error) {
	r := row{TargetID: targetID, ContextID: contextID, NuRaw: nuRaw, UpdatedAt: updatedAt}
	if err := json.Unmarshal(penaltiesJSON, &r.Penalties); err != nil {
		return state.State{}, fmt.Errorf("storage: unmarshal penalties: %w", err)
	}
	if err := json.Unmarshal(evidenceJSON, &r.Evidence); err != nil {
		return state.State{}, fmt.Errorf("storage: unmarshal evidence: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
		return state.State{}, fmt.Errorf("storage: unmarshal metadata: %w", err)
	}
	return fromRow(r, mode)
}
