// Package store persists one structured record per learner.
//
// Every backend offers the same contract: Update is an atomic read-modify-write of
// a single record, and the task log inside it is append-only. Records are checked
// against the embedded JSON Schema whenever they are read.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/sbenjam1n/tutorloop/internal/schemas"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// Store is the learner state store.
type Store interface {
	// Create persists a new record. It fails with tutor.ErrLearnerExists when the
	// learner is already known.
	Create(ctx context.Context, rec *tutor.LearnerRecord) error
	// Load returns the latest record or tutor.ErrLearnerNotFound.
	Load(ctx context.Context, learnerID string) (*tutor.LearnerRecord, error)
	// Update applies fn to the latest record and commits the result atomically.
	// If fn fails nothing is written.
	Update(ctx context.Context, learnerID string, fn func(*tutor.LearnerRecord) error) (*tutor.LearnerRecord, error)
	// List returns every known learner ID, sorted.
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Config selects a backend.
type Config struct {
	// Backend is "sqlite", "postgres" or "memory".
	Backend string `yaml:"backend"`
	// Path is the sqlite database file.
	Path string `yaml:"path"`
	// DatabaseURL is the postgres connection string.
	DatabaseURL string `yaml:"database_url"`
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL)
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func encode(rec *tutor.LearnerRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode learner %s: %w", rec.Profile.ID, err)
	}
	if err := schemas.Validate(schemas.LearnerRecord, data); err != nil {
		return nil, fmt.Errorf("encode learner %s: %w", rec.Profile.ID, err)
	}
	return data, nil
}

func decode(learnerID string, data []byte) (*tutor.LearnerRecord, error) {
	if err := schemas.Validate(schemas.LearnerRecord, data); err != nil {
		return nil, &tutor.StateCorruptionError{LearnerID: learnerID, Cause: err}
	}
	var rec tutor.LearnerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &tutor.StateCorruptionError{LearnerID: learnerID, Cause: err}
	}
	if rec.Profile.ID != learnerID {
		return nil, &tutor.StateCorruptionError{
			LearnerID: learnerID,
			Cause:     fmt.Errorf("record belongs to %q", rec.Profile.ID),
		}
	}
	return &rec, nil
}

// apply runs fn against the stored bytes and returns the bytes to write back.
func apply(learnerID string, data []byte, fn func(*tutor.LearnerRecord) error) ([]byte, *tutor.LearnerRecord, error) {
	rec, err := decode(learnerID, data)
	if err != nil {
		return nil, nil, err
	}
	before := slices.Clone(rec.Events)

	if err := fn(rec); err != nil {
		return nil, nil, err
	}
	if rec.Profile.ID != learnerID {
		return nil, nil, fmt.Errorf("update learner %s: profile id changed to %q", learnerID, rec.Profile.ID)
	}
	if err := checkAppendOnly(before, rec.Events); err != nil {
		return nil, nil, fmt.Errorf("update learner %s: %w", learnerID, err)
	}
	rec.UpdatedAt = time.Now().UTC()

	out, err := encode(rec)
	if err != nil {
		return nil, nil, err
	}
	return out, rec, nil
}

// checkAppendOnly reports ErrAppendOnly unless before is a prefix of after.
func checkAppendOnly(before, after []tutor.TaskEvent) error {
	if len(after) < len(before) {
		return fmt.Errorf("%w: %d events dropped", tutor.ErrAppendOnly, len(before)-len(after))
	}
	for i := range before {
		a, _ := json.Marshal(before[i])
		b, _ := json.Marshal(after[i])
		if string(a) != string(b) {
			return fmt.Errorf("%w: event %s modified", tutor.ErrAppendOnly, before[i].ID)
		}
	}
	return nil
}

func prepareNew(rec *tutor.LearnerRecord) ([]byte, error) {
	if rec.Profile.ID == "" {
		return nil, fmt.Errorf("create learner: empty id")
	}
	if rec.Version == 0 {
		rec.Version = tutor.RecordVersion
	}
	rec.UpdatedAt = time.Now().UTC()
	return encode(rec)
}
