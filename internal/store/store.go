package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/subrelay/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	// SaveCurrentJob replaces the single tracked job.
	SaveCurrentJob(ctx context.Context, v models.JobView) error
	// LoadCurrentJob returns ErrNotFound when no job was ever saved.
	LoadCurrentJob(ctx context.Context) (models.JobView, error)
}
