package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// migrationLockID keys the advisory lock held while a migration applies,
// so replicas starting together do not race on the schema.
const migrationLockID = 0x626c7565686f6d65

type migration struct {
	version int
	name    string
	sql     string
}

// loadMigrations reads the NNN_name.up.sql files of dir ordered by version.
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var out []migration
	seen := make(map[int]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: name must start with a positive version", name)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, migration{version: version, name: name, sql: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

type txQuerier interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Migrator applies the embedded migrations and records them in schema_migrations.
type Migrator struct {
	db     Querier
	begin  func(ctx context.Context) (txQuerier, error)
	logger *zap.Logger
}

// NewMigrator creates a migrator on the pool.
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db: db.Pool,
		begin: func(ctx context.Context) (txQuerier, error) {
			return db.Pool.Begin(ctx)
		},
		logger: logger.Named("migrate"),
	}
}

// Migrate runs every pending embedded migration.
func (m *Migrator) Migrate(ctx context.Context) error {
	return m.MigrateFromFS(ctx, embeddedMigrations, "migrations")
}

// MigrateFromFS runs every pending migration found in dir of fsys.
func (m *Migrator) MigrateFromFS(ctx context.Context, fsys fs.FS, dir string) error {
	migrations, err := loadMigrations(fsys, dir)
	if err != nil {
		return err
	}

	if _, err := m.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			filename TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, mg := range migrations {
		ran, err := m.apply(ctx, mg)
		if err != nil {
			return fmt.Errorf("migration %s: %w", mg.name, err)
		}
		if ran {
			applied++
			m.logger.Info("applied migration", zap.String("file", mg.name), zap.Int("version", mg.version))
		}
	}
	m.logger.Info("schema up to date", zap.Int("applied", applied), zap.Int("known", len(migrations)))
	return nil
}

// apply runs mg in its own transaction unless it is already recorded.
func (m *Migrator) apply(ctx context.Context, mg migration) (bool, error) {
	tx, err := m.begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(migrationLockID)); err != nil {
		return false, fmt.Errorf("lock: %w", err)
	}

	var done bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", mg.version,
	).Scan(&done); err != nil {
		return false, fmt.Errorf("check: %w", err)
	}
	if done {
		return false, nil
	}

	if _, err := tx.Exec(ctx, mg.sql); err != nil {
		return false, fmt.Errorf("exec: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, filename) VALUES ($1, $2)", mg.version, mg.name,
	); err != nil {
		return false, fmt.Errorf("record: %w", err)
	}
	return true, tx.Commit(ctx)
}
