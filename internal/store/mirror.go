package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/subrelay/pkg/models"
)

const mirrorWriteTimeout = 5 * time.Second

// Mirror persists every job state change so the last job survives a restart.
type Mirror struct {
	store Store
}

func NewMirror(s Store) *Mirror {
	return &Mirror{store: s}
}

// Observe is a job state observer. Failures are logged and dropped.
func (m *Mirror) Observe(v models.JobView) {
	if v.Empty() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()
	if err := m.store.SaveCurrentJob(ctx, v); err != nil {
		slog.Warn("persisting job state", "job_id", v.JobID, "status", v.Status, "error", err)
	}
}
