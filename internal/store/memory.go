package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// Memory keeps records in process. Records are held encoded, so callers never
// share memory with the store.
type Memory struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (m *Memory) Create(ctx context.Context, rec *tutor.LearnerRecord) error {
	data, err := prepareNew(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Profile.ID]; ok {
		return fmt.Errorf("create learner %s: %w", rec.Profile.ID, tutor.ErrLearnerExists)
	}
	m.records[rec.Profile.ID] = data
	return nil
}

func (m *Memory) Load(ctx context.Context, learnerID string) (*tutor.LearnerRecord, error) {
	m.mu.Lock()
	data, ok := m.records[learnerID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("load learner %s: %w", learnerID, tutor.ErrLearnerNotFound)
	}
	return decode(learnerID, data)
}

func (m *Memory) Update(ctx context.Context, learnerID string, fn func(*tutor.LearnerRecord) error) (*tutor.LearnerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := m.records[learnerID]
	if !ok {
		return nil, fmt.Errorf("update learner %s: %w", learnerID, tutor.ErrLearnerNotFound)
	}
	out, rec, err := apply(learnerID, data, fn)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.records[learnerID] = out
	return rec, nil
}

func (m *Memory) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Corrupt replaces a stored record with raw bytes. Tests use it to exercise the
// corruption path.
func (m *Memory) Corrupt(learnerID string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[learnerID] = raw
}

func (m *Memory) Close() error { return nil }
