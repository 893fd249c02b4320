package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/uptrace/bun"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migration is one embedded file. Files only move the schema forward.
type migration struct {
	version    string
	statements []string
}

// Migrate applies every embedded migration that has not run yet, in version
// order, under a database-wide advisory lock.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	var applied []string
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "caresched:migrate").Exec(ctx); err != nil {
			return err
		}
		var err error
		applied, err = applyMigrations(ctx, tx)
		return err
	})
	return applied, err
}

func applyMigrations(ctx context.Context, db bun.IDB) ([]string, error) {
	pending, err := loadMigrations()
	if err != nil {
		return nil, err
	}

	if _, err := db.NewRaw(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version text PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`).Exec(ctx); err != nil {
		return nil, err
	}
	var done []string
	if err := db.NewRaw("SELECT version FROM schema_migrations").Scan(ctx, &done); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(done))
	for _, v := range done {
		seen[v] = true
	}

	var applied []string
	for _, m := range pending {
		if seen[m.version] {
			continue
		}
		for i, stmt := range m.statements {
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return nil, fmt.Errorf("migration %s statement %d: %w", m.version, i+1, err)
			}
		}
		if _, err := db.NewRaw("INSERT INTO schema_migrations (version) VALUES (?)", m.version).Exec(ctx); err != nil {
			return nil, err
		}
		applied = append(applied, m.version)
	}
	return applied, nil
}

func loadMigrations() ([]migration, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		b, err := migrationFiles.ReadFile(name)
		if err != nil {
			return nil, err
		}
		m := migration{
			version:    strings.TrimSuffix(path.Base(name), ".sql"),
			statements: statements(string(b)),
		}
		if len(m.statements) == 0 {
			return nil, fmt.Errorf("migration %s is empty", m.version)
		}
		out = append(out, m)
	}
	return out, nil
}

// statements splits a script on semicolons after dropping full-line
// comments. Migrations must not put semicolons inside literals or bodies.
func statements(script string) []string {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []string
	for _, part := range strings.Split(b.String(), ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
