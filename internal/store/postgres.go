package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sbenjam1n/tutorloop/internal/db"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// Postgres stores records as JSONB rows. Updates serialize per learner on a
// transaction-scoped advisory lock.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects and runs the embedded migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool, ""); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool. The caller owns migrations.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Create(ctx context.Context, rec *tutor.LearnerRecord) error {
	data, err := prepareNew(rec)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		"INSERT INTO learners (id, record, updated_at) VALUES ($1, $2, $3)",
		rec.Profile.ID, data, rec.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("create learner %s: %w", rec.Profile.ID, tutor.ErrLearnerExists)
	}
	if err != nil {
		return fmt.Errorf("create learner %s: %w", rec.Profile.ID, err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, learnerID string) (*tutor.LearnerRecord, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, "SELECT record FROM learners WHERE id = $1", learnerID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load learner %s: %w", learnerID, tutor.ErrLearnerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load learner %s: %w", learnerID, err)
	}
	return decode(learnerID, data)
}

func (p *Postgres) Update(ctx context.Context, learnerID string, fn func(*tutor.LearnerRecord) error) (*tutor.LearnerRecord, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", db.LockKey("learner:"+learnerID)); err != nil {
		return nil, fmt.Errorf("lock learner %s: %w", learnerID, err)
	}

	var data []byte
	err = tx.QueryRow(ctx, "SELECT record FROM learners WHERE id = $1 FOR UPDATE", learnerID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update learner %s: %w", learnerID, tutor.ErrLearnerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update learner %s: %w", learnerID, err)
	}

	out, rec, err := apply(learnerID, data, fn)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		"UPDATE learners SET record = $2, version = version + 1, updated_at = $3 WHERE id = $1",
		learnerID, out, rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("write learner %s: %w", learnerID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit learner %s: %w", learnerID, err)
	}
	return rec, nil
}

func (p *Postgres) List(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, "SELECT id FROM learners ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list learners: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list learners: %w", err)
	}
	return ids, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
