// Package migrations applies the embedded, versioned SQL schema.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migration is one versioned .up.sql file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load reads the embedded migrations sorted by version.
func Load() ([]Migration, error) {
	return load(migrationFiles, "sql")
}

func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		filename := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(filename, ".up.sql") {
			continue
		}
		prefix, rest, ok := strings.Cut(filename, "_")
		if !ok {
			return nil, fmt.Errorf("migration %q: missing version prefix", filename)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %q: invalid version", filename)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration %q: version %d already used by %q", filename, version, other)
		}
		seen[version] = filename

		content, err := fs.ReadFile(fsys, dir+"/"+filename)
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", filename, err)
		}
		out = append(out, Migration{
			Version: version,
			Name:    strings.TrimSuffix(rest, ".up.sql"),
			SQL:     string(content),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Runner applies pending migrations, one transaction per migration.
type Runner struct {
	db         *sql.DB
	migrations []Migration
	logger     *log.Logger
}

// NewRunner constructs a runner over the embedded migrations.
func NewRunner(db *sql.DB, logger *log.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migrations: nil db")
	}
	if logger == nil {
		logger = log.Default()
	}
	migrations, err := Load()
	if err != nil {
		return nil, err
	}
	return &Runner{db: db, migrations: migrations, logger: logger}, nil
}

// Run applies every migration not yet recorded in schema_migrations and
// returns how many were applied.
func (r *Runner) Run(ctx context.Context) (int, error) {
	if _, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := r.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range r.migrations {
		if applied[m.Version] {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return count, err
		}
		r.logger.Printf("migrations applied: version=%d name=%s", m.Version, m.Name)
		count++
	}
	if count == 0 {
		r.logger.Printf("migrations: schema up to date")
	}
	return count, nil
}

func (r *Runner) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}
