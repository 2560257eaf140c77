// Package migrations embeds SQL migration files for both storage backends
// so they work regardless of the process's working directory.
package migrations

import "embed"

// Postgres contains the .sql migrations for the pgx/pgvector-backed store.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite contains the .sql migrations for the modernc.org/sqlite-backed
// store.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
