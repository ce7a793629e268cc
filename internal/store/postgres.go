package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Current job ---

func (s *PostgresStore) SaveCurrentJob(ctx context.Context, v models.JobView) error {
	input, err := json.Marshal(v.Input)
	if err != nil {
		return fmt.Errorf("encode job input: %w", err)
	}
	result, err := marshalOptional(v.Result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	jobErr, err := marshalOptional(v.Error)
	if err != nil {
		return fmt.Errorf("encode job error: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO current_job (slot, job_id, status, stage_index, progress, input, result, error, created_at, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (slot) DO UPDATE SET
		   job_id = EXCLUDED.job_id,
		   status = EXCLUDED.status,
		   stage_index = EXCLUDED.stage_index,
		   progress = EXCLUDED.progress,
		   input = EXCLUDED.input,
		   result = EXCLUDED.result,
		   error = EXCLUDED.error,
		   created_at = EXCLUDED.created_at,
		   updated_at = EXCLUDED.updated_at`,
		v.JobID, string(v.Status), v.StageIndex, v.Progress, input, result, jobErr, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save current job: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadCurrentJob(ctx context.Context) (models.JobView, error) {
	var (
		v                     models.JobView
		status                string
		input, result, jobErr []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT job_id, status, stage_index, progress, input, result, error, created_at, updated_at
		 FROM current_job WHERE slot = 1`,
	).Scan(&v.JobID, &status, &v.StageIndex, &v.Progress, &input, &result, &jobErr, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.JobView{}, ErrNotFound
	}
	if err != nil {
		return models.JobView{}, fmt.Errorf("load current job: %w", err)
	}

	v.Status = models.JobStatus(status)
	if err := json.Unmarshal(input, &v.Input); err != nil {
		return models.JobView{}, fmt.Errorf("decode job input: %w", err)
	}
	if len(result) > 0 {
		v.Result = &models.Result{}
		if err := json.Unmarshal(result, v.Result); err != nil {
			return models.JobView{}, fmt.Errorf("decode job result: %w", err)
		}
	}
	if len(jobErr) > 0 {
		v.Error = &models.JobError{}
		if err := json.Unmarshal(jobErr, v.Error); err != nil {
			return models.JobView{}, fmt.Errorf("decode job error: %w", err)
		}
	}
	return v, nil
}

func marshalOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
