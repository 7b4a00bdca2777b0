// Package store persists the pipeline's relational schema to Postgres and
// runs the transactional write path the Persister needs (spec.md §4.F, §4.G).
//
// Grounded on codenerd's internal/store: the transaction-scoped write
// pattern (tx.Begin / defer tx.Rollback / tx.Commit) used throughout
// internal/store/local_knowledge.go and local.go, and the same package's
// role as the sole owner of schema migrations. The storage engine itself
// is enriched from jordigilh-kubernaut's go.mod (jackc/pgx/v5, jmoiron/sqlx,
// pressly/goose/v3, DATA-DOG/go-sqlmock for unit tests) since spec.md's
// DATABASE_URL + "relational schedule database" contract describes a
// production RDBMS the teacher's own SQLite store was never built for.
package store

import (
	"context"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/oemforge/oemforge/internal/obslog"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Open connects to dsn (a DATABASE_URL-style Postgres connection string)
// via the pgx stdlib driver and wraps it in an sqlx.DB.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to connect: %w", err)
	}
	return db, nil
}

// Migrate brings the schema up to the latest embedded migration. Safe to
// call on every process start; goose tracks applied versions itself.
func Migrate(db *sqlx.DB) error {
	timer := obslog.StartTimer(obslog.CategoryStore, "Migrate")
	defer timer.Stop()

	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("store: failed to set dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return fmt.Errorf("store: migration failed: %w", err)
	}
	return nil
}

// Ping exercises the connection once at startup, analogous to codenerd's
// NewLocalStore opening and PRAGMA-configuring its SQLite handle eagerly
// rather than lazily on first query.
func Ping(ctx context.Context, db *sqlx.DB) error {
	return db.PingContext(ctx)
}
