package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

const mirrorWriteTimeout = 2 * time.Second

// ErrNotFound is returned by LoadCurrentJob when Redis holds no job.
var ErrNotFound = errors.New("no job mirrored in cache")

// StatusMirror copies every job state change into Redis. The status
// response body goes under the job key for external watchers, and the full
// view goes under the slot key so a restarted process can restore it.
type StatusMirror struct {
	cache Cache
	ttl   time.Duration

	mu     sync.Mutex
	lastID uuid.UUID
}

func NewStatusMirror(c Cache, ttl time.Duration) *StatusMirror {
	return &StatusMirror{cache: c, ttl: ttl}
}

// Observe is a job state observer. Failures are logged and dropped.
func (m *StatusMirror) Observe(v models.JobView) {
	if v.Empty() {
		return
	}
	status, err := json.Marshal(models.NewStatusResponse(v))
	if err != nil {
		slog.Error("encoding status for redis", "job_id", v.JobID, "error", err)
		return
	}
	view, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding job view for redis", "job_id", v.JobID, "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()

	if err := m.cache.SetJobStatus(ctx, v.JobID, status, m.ttl); err != nil {
		slog.Warn("mirroring job status to redis", "job_id", v.JobID, "error", err)
		return
	}
	if err := m.cache.Set(ctx, SlotKey(), view, m.ttl); err != nil {
		slog.Warn("mirroring job slot to redis", "job_id", v.JobID, "error", err)
	}

	// Only the job in the slot keeps a status key.
	if m.lastID != uuid.Nil && m.lastID != v.JobID {
		if err := m.cache.Delete(ctx, JobStatusKey(m.lastID)); err != nil {
			slog.Warn("clearing superseded job status", "job_id", m.lastID, "error", err)
		}
	}
	m.lastID = v.JobID
}

// LoadCurrentJob reads back the view written by the last Observe.
func (m *StatusMirror) LoadCurrentJob(ctx context.Context) (models.JobView, error) {
	raw, found, err := m.cache.Get(ctx, SlotKey())
	if err != nil {
		return models.JobView{}, fmt.Errorf("read job slot: %w", err)
	}
	if !found {
		return models.JobView{}, ErrNotFound
	}
	var v models.JobView
	if err := json.Unmarshal(raw, &v); err != nil {
		return models.JobView{}, fmt.Errorf("decode job slot: %w", err)
	}
	return v, nil
}
