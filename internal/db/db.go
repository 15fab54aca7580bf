package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Connect creates a connection pool to PostgreSQL.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("connect to database: no database URL configured")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate runs the SQL migration files against the database in name order.
// An empty migrationsDir uses the migrations compiled into the binary.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrationsDir string) error {
	var fsys fs.FS
	if migrationsDir == "" {
		sub, err := fs.Sub(migrations, "migrations")
		if err != nil {
			return fmt.Errorf("open embedded migrations: %w", err)
		}
		fsys = sub
	} else {
		fsys = os.DirFS(migrationsDir)
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no migration files found")
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
	}
	return nil
}

// LockKey maps a string to a pg_advisory lock key using FNV-1a.
func LockKey(s string) int64 {
	var h uint64 = 14695981039346656037
	for _, c := range []byte(s) {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return int64(h)
}
