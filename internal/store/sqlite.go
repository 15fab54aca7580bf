package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

//go:embed schema.sql
var sqliteSchema string

const sqliteSchemaVersion = 1

// ErrConflict is returned when a concurrent writer committed between our read
// and our write. Update retries it internally; callers only see it if every
// attempt lost.
var ErrConflict = errors.New("concurrent update")

const updateAttempts = 5

// SQLite stores records in a local SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", sqliteSchemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version > sqliteSchemaVersion:
		return fmt.Errorf("store schema version %d is newer than this build (%d)", version, sqliteSchemaVersion)
	}
	return nil
}

func (s *SQLite) Create(ctx context.Context, rec *tutor.LearnerRecord) error {
	data, err := prepareNew(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO learners (id, record, version, updated_at) VALUES (?, ?, 1, ?) ON CONFLICT(id) DO NOTHING",
		rec.Profile.ID, string(data), rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create learner %s: %w", rec.Profile.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("create learner %s: %w", rec.Profile.ID, tutor.ErrLearnerExists)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, learnerID string) (*tutor.LearnerRecord, error) {
	data, _, err := s.read(ctx, s.db, learnerID)
	if err != nil {
		return nil, fmt.Errorf("load learner %s: %w", learnerID, err)
	}
	return decode(learnerID, data)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) read(ctx context.Context, q querier, learnerID string) ([]byte, int64, error) {
	var (
		record  string
		version int64
	)
	err := q.QueryRowContext(ctx, "SELECT record, version FROM learners WHERE id = ?", learnerID).Scan(&record, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, tutor.ErrLearnerNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	return []byte(record), version, nil
}

// Update reads, applies fn and writes back guarded by the row version. A lost
// race is retried against the fresh record.
func (s *SQLite) Update(ctx context.Context, learnerID string, fn func(*tutor.LearnerRecord) error) (*tutor.LearnerRecord, error) {
	for attempt := 0; attempt < updateAttempts; attempt++ {
		rec, err := s.updateOnce(ctx, learnerID, fn)
		if errors.Is(err, ErrConflict) {
			continue
		}
		return rec, err
	}
	return nil, fmt.Errorf("update learner %s: %w", learnerID, ErrConflict)
}

func (s *SQLite) updateOnce(ctx context.Context, learnerID string, fn func(*tutor.LearnerRecord) error) (*tutor.LearnerRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	data, version, err := s.read(ctx, tx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("update learner %s: %w", learnerID, err)
	}
	out, rec, err := apply(learnerID, data, fn)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE learners SET record = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?",
		string(out), rec.UpdatedAt.Format(time.RFC3339Nano), learnerID, version)
	if err != nil {
		return nil, fmt.Errorf("write learner %s: %w", learnerID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrConflict
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit learner %s: %w", learnerID, err)
	}
	return rec, nil
}

func (s *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM learners ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list learners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan learner: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
