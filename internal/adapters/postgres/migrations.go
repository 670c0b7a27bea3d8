package postgres

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is one embedded schema step. Steps are idempotent and applied in Version order.
type Migration struct {
	Version string // file name without extension, e.g. "001_prompts"
	SQL     string
}

// Migrations returns the embedded migrations in application order.
func Migrations() ([]Migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := migrationFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: strings.TrimSuffix(e.Name(), ".sql"),
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrate applies every embedded migration not yet recorded in memoir_schema_migrations.
// It returns the versions applied by this call.
func Migrate(ctx context.Context, tm *TransactionManager) ([]string, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}

	var applied []string
	err = tm.WithTransaction(ctx, func(ctx context.Context) error {
		db := GetTx(ctx)
		if _, err := db.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS memoir_schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`); err != nil {
			return fmt.Errorf("failed to create migrations table: %w", err)
		}

		for _, m := range migrations {
			var exists bool
			if err := db.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM memoir_schema_migrations WHERE version = $1)`,
				m.Version,
			).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check migration %s: %w", m.Version, err)
			}
			if exists {
				continue
			}
			if _, err := db.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
			}
			if _, err := db.Exec(ctx,
				`INSERT INTO memoir_schema_migrations (version) VALUES ($1)`,
				m.Version,
			); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
			}
			applied = append(applied, m.Version)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}
