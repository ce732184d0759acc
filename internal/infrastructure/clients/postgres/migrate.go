package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/clinicbook/backend/internal/infrastructure/observability"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const createLedger = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    VARCHAR(255) PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// migrationLockKey serialises Migrate across every instance sharing the database
const migrationLockKey = 72410013

// Migration is one embedded schema change
type Migration struct {
	Version string
	SQL     string
}

// Migrations lists the embedded migrations in apply order
func Migrations() ([]Migration, error) {
	entries, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)

	out := make([]Migration, 0, len(entries))
	for _, name := range entries {
		body, err := migrationFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".sql")
		out = append(out, Migration{Version: version, SQL: string(body)})
	}
	return out, nil
}

// Migrate applies every embedded migration that is not yet recorded in
// schema_migrations. Each migration runs in its own transaction together with
// its ledger row. A session advisory lock makes concurrent callers wait and
// then find the ledger already filled.
func (c *Client) Migrate(ctx context.Context) (int, error) {
	migrations, err := Migrations()
	if err != nil {
		return 0, err
	}

	dialect := goqu.Dialect("postgres")
	lock, _, err := dialect.Select(goqu.Func("pg_advisory_lock", migrationLockKey)).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build migration lock: %w", err)
	}
	unlock, _, err := dialect.Select(goqu.Func("pg_advisory_unlock", migrationLockKey)).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build migration unlock: %w", err)
	}

	// Advisory locks belong to a session, so everything runs on one connection.
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, lock); err != nil {
		return 0, fmt.Errorf("take migration lock: %w", err)
	}
	logger := observability.LoggerFromContext(ctx)
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), unlock); err != nil {
			logger.Warn().Err(err).Msg("failed to release migration lock")
		}
	}()

	if _, err := conn.ExecContext(ctx, createLedger); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		insert, _, err := dialect.Insert("schema_migrations").
			Rows(goqu.Record{"version": m.Version}).
			ToSQL()
		if err != nil {
			return count, fmt.Errorf("build ledger insert: %w", err)
		}

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return count, fmt.Errorf("begin %s: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return count, fmt.Errorf("apply %s: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, insert); err != nil {
			tx.Rollback()
			return count, fmt.Errorf("record %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return count, fmt.Errorf("commit %s: %w", m.Version, err)
		}

		logger.Info().Str("version", m.Version).Msg("migration applied")
		count++
	}
	return count, nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[string]bool, error) {
	query, _, err := goqu.Dialect("postgres").
		From("schema_migrations").
		Select("version").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build ledger query: %w", err)
	}

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
