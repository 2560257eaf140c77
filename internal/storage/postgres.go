package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/storage/migrations"
	"github.com/aporia-systems/aporia/internal/types"
)

// PostgresStore persists Σ to PostgreSQL, with evidence/penalties/metadata
// stored as JSONB and canonical concept embeddings in a pgvector column for
// the embedding-backed semantic-definedness provider's reference index.
type PostgresStore struct {
	pool   *pgxpool.Pool
	mode   types.DedupMode
	logger *slog.Logger
}

// NewPostgresStore opens a connection pool at dsn, registers pgvector
// types on each new connection, and runs the embedded migrations.
func NewPostgresStore(ctx context.Context, dsn string, mode types.DedupMode, logger *slog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
			logger.Debug("storage: pgvector types not registered (extension may not exist yet)", "error", err)
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	store := &PostgresStore{pool: pool, mode: mode, logger: logger}
	if err := store.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	entries, err := migrations.Postgres.ReadDir("postgres")
	if err != nil {
		return fmt.Errorf("storage: read postgres migrations: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := migrations.Postgres.ReadFile("postgres/" + entry.Name())
		if err != nil {
			return fmt.Errorf("storage: read migration %s: %w", entry.Name(), err)
		}
		s.logger.Info("storage: running postgres migration", "file", entry.Name())
		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("storage: execute migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// SaveState implements Store. Writes are retried on Postgres serialization
// failures and deadlocks, since concurrent refinement of the same (target,
// context) is an expected access pattern under this store.
func (s *PostgresStore) SaveState(ctx context.Context, st state.State) error {
	penalties, evidence, metadata, err := marshalRow(st)
	if err != nil {
		return err
	}
	return WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO definedness_states (target_id, context_id, nu_raw, penalties, evidence, metadata, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (target_id, context_id) DO UPDATE SET
				nu_raw = EXCLUDED.nu_raw,
				penalties = EXCLUDED.penalties,
				evidence = EXCLUDED.evidence,
				metadata = EXCLUDED.metadata,
				updated_at = EXCLUDED.updated_at`,
			string(st.Target), string(st.Ctx), st.NuRaw, penalties, evidence, metadata, st.Meta.LastModifiedTime)
		if err != nil {
			return fmt.Errorf("storage: save state: %w", err)
		}
		return nil
	})
}

// LoadState implements Store.
func (s *PostgresStore) LoadState(ctx context.Context, target types.TargetID, ctxID types.ContextID) (state.State, bool, error) {
	var nuRaw float64
	var penalties, evidence, metadata []byte
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT nu_raw, penalties, evidence, metadata, updated_at
		FROM definedness_states WHERE target_id = $1 AND context_id = $2`,
		string(target), string(ctxID)).Scan(&nuRaw, &penalties, &evidence, &metadata, &updatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return state.State{}, false, nil
		}
		return state.State{}, false, fmt.Errorf("storage: load state: %w", err)
	}
	out, err := unmarshalRow(string(target), string(ctxID), nuRaw, penalties, evidence, metadata, updatedAt, s.mode)
	if err != nil {
		return state.State{}, false, err
	}
	return out, true, nil
}

// LoadSigma implements Store.
func (s *PostgresStore) LoadSigma(ctx context.Context) (state.Sigma, error) {
	rows, err := s.pool.Query(ctx, `SELECT target_id, context_id, nu_raw, penalties, evidence, metadata, updated_at FROM definedness_states`)
	if err != nil {
		return nil, fmt.Errorf("storage: load sigma: %w", err)
	}
	defer rows.Close()

	sigma := state.Sigma{}
	for rows.Next() {
		var targetID, contextID string
		var nuRaw float64
		var penalties, evidence, metadata []byte
		var updatedAt time.Time
		if err := rows.Scan(&targetID, &contextID, &nuRaw, &penalties, &evidence, &metadata, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan state row: %w", err)
		}
		st, err := unmarshalRow(targetID, contextID, nuRaw, penalties, evidence, metadata, updatedAt, s.mode)
		if err != nil {
			return nil, err
		}
		sigma = sigma.With(st)
	}
	return sigma, rows.Err()
}

// Close implements Store.
func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

// UpsertReferenceConcept stores target's canonical claim embedding for the
// embedding-backed semantic-definedness provider's reference index.
func (s *PostgresStore) UpsertReferenceConcept(ctx context.Context, target types.TargetID, claim string, embedding []float32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reference_concepts (target_id, claim, embedding) VALUES ($1, $2, $3)`,
		string(target), claim, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("storage: upsert reference concept: %w", err)
	}
	return nil
}

// SearchReference implements semanticdef.ReferenceIndex against the
// reference_concepts table's HNSW cosine-distance index, so a host can use
// Postgres as the reference index instead of standing up Qdrant.
func (s *PostgresStore) SearchReference(ctx context.Context, target types.TargetID, query []float32, limit int) ([]float32, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT 1 - (embedding <=> $2) AS cosine_similarity
		 FROM reference_concepts
		 WHERE target_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		string(target), pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: search reference concepts: %w", err)
	}
	defer rows.Close()

	var out []float32
	for rows.Next() {
		var sim float32
		if err := rows.Scan(&sim); err != nil {
			return nil, fmt.Errorf("storage: scan reference similarity: %w", err)
		}
		out = append(out, sim)
	}
	return out, rows.Err()
}
