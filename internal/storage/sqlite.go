package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/storage/migrations"
	"github.com/aporia-systems/aporia/internal/types"
)

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: parse updated_at: %w", err)
	}
	return t, nil
}

// SQLiteStore persists Σ to a CGO-free embedded SQLite database, for hosts
// that want the same Store interface as PostgresStore without a server
// dependency. It has no reference-index support: the embedding-backed
// semantic-definedness provider's nearest-concept lookup is a
// Postgres/pgvector or Qdrant concern only.
type SQLiteStore struct {
	db   *sql.DB
	mode types.DedupMode
}

// NewSQLiteStore opens (or creates) the SQLite database at path and runs
// the embedded migrations.
func NewSQLiteStore(ctx context.Context, path string, mode types.DedupMode) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}

	store := &SQLiteStore{db: db, mode: mode}
	if err := store.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	entries, err := migrations.SQLite.ReadDir("sqlite")
	if err != nil {
		return fmt.Errorf("storage: read sqlite migrations: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := migrations.SQLite.ReadFile("sqlite/" + entry.Name())
		if err != nil {
			return fmt.Errorf("storage: read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("storage: execute migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// SaveState implements Store.
func (s *SQLiteStore) SaveState(ctx context.Context, st state.State) error {
	penalties, evidence, metadata, err := marshalRow(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO definedness_states (target_id, context_id, nu_raw, penalties, evidence, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (target_id, context_id) DO UPDATE SET
			nu_raw = excluded.nu_raw,
			penalties = excluded.penalties,
			evidence = excluded.evidence,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		string(st.Target), string(st.Ctx), st.NuRaw, string(penalties), string(evidence), string(metadata), st.Meta.LastModifiedTime.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: save state: %w", err)
	}
	return nil
}

// LoadState implements Store.
func (s *SQLiteStore) LoadState(ctx context.Context, target types.TargetID, ctxID types.ContextID) (state.State, bool, error) {
	var nuRaw float64
	var penalties, evidence, metadata string
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT nu_raw, penalties, evidence, metadata, updated_at
		FROM definedness_states WHERE target_id = ? AND context_id = ?`,
		string(target), string(ctxID)).Scan(&nuRaw, &penalties, &evidence, &metadata, &updatedAt)
	if err == sql.ErrNoRows {
		return state.State{}, false, nil
	}
	if err != nil {
		return state.State{}, false, fmt.Errorf("storage: load state: %w", err)
	}
	ts, err := parseSQLiteTime(updatedAt)
	if err != nil {
		return state.State{}, false, err
	}
	out, err := unmarshalRow(string(target), string(ctxID), nuRaw, []byte(penalties), []byte(evidence), []byte(metadata), ts, s.mode)
	if err != nil {
		return state.State{}, false, err
	}
	return out, true, nil
}

// LoadSigma implements Store.
func (s *SQLiteStore) LoadSigma(ctx context.Context) (state.Sigma, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT target_id, context_id, nu_raw, penalties, evidence, metadata, updated_at FROM definedness_states`)
	if err != nil {
		return nil, fmt.Errorf("storage: load sigma: %w", err)
	}
	defer rows.Close()

	sigma := state.Sigma{}
	for rows.Next() {
		var targetID, contextID, penalties, evidence, metadata, updatedAt string
		var nuRaw float64
		if err := rows.Scan(&targetID, &contextID, &nuRaw, &penalties, &evidence, &metadata, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan state row: %w", err)
		}
		ts, err := parseSQLiteTime(updatedAt)
		if err != nil {
			return nil, err
		}
		st, err := unmarshalRow(targetID, contextID, nuRaw, []byte(penalties), []byte(evidence), []byte(metadata), ts, s.mode)
		if err != nil {
			return nil, err
		}
		sigma = sigma.With(st)
	}
	return sigma, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}
