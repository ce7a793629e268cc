// Package jobstate holds the single job slot shared by the control API and
// the pipeline runner.
package jobstate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

var (
	ErrJobRunning   = errors.New("a job is already running")
	ErrStaleJob     = errors.New("job is not the tracked job")
	ErrJobFinished  = errors.New("job already reached a terminal state")
	ErrRegression   = errors.New("stage index and progress cannot decrease")
	ErrInvalidPatch = errors.New("invalid job patch")
)

// Observer receives every snapshot produced by a state change, in order.
// Observers run on the writer's goroutine and must not call back into the
// Store. Wrap slow observers with NewAsync.
type Observer func(models.JobView)

// Patch is a change written by the runner for the job it owns.
// Nil fields are left untouched.
type Patch struct {
	StageIndex *int
	Progress   *int
	Status     models.JobStatus
	Result     *models.Result
	Error      *models.JobError
}

// Advance marks the start of the stage at index with the given progress.
func Advance(index, progress int) Patch {
	return Patch{StageIndex: &index, Progress: &progress}
}

// Succeed finishes the job with its result.
func Succeed(result models.Result) Patch {
	full := 100
	return Patch{Status: models.JobStatusSucceeded, Progress: &full, Result: &result}
}

// Fail finishes the job with the given error. Stage index and progress stay
// where the failing stage left them.
func Fail(jobErr models.JobError) Patch {
	return Patch{Status: models.JobStatusFailed, Error: &jobErr}
}

// Store is a single-slot, concurrency-safe holder of the current job.
// The zero value is not usable; call New.
type Store struct {
	mu  sync.RWMutex
	job *models.Job

	// notifyMu keeps observer calls in write order without holding mu.
	notifyMu  sync.Mutex
	observers []Observer

	now func() time.Time
}

// New creates an empty Store.
func New(observers ...Observer) *Store {
	return &Store{
		observers: observers,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Observe registers an observer. Call before the store is shared.
func (s *Store) Observe(o Observer) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.observers = append(s.observers, o)
}

// TryBegin atomically creates a new running job unless one is already running.
func (s *Store) TryBegin(input models.JobInput) (models.JobView, error) {
	s.mu.Lock()
	if s.job != nil && s.job.Status == models.JobStatusRunning {
		s.mu.Unlock()
		return models.JobView{}, ErrJobRunning
	}

	now := s.now()
	s.job = &models.Job{
		ID:        uuid.New(),
		Input:     input,
		Status:    models.JobStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	view := s.job.View()
	s.publishLocked(view)
	return view, nil
}

// Write applies a runner patch to the tracked job. Writes for any other job,
// for a finished job, or that would move stage/progress backwards are
// dropped and logged.
func (s *Store) Write(jobID uuid.UUID, p Patch) error {
	s.mu.Lock()
	if err := s.check(jobID, p); err != nil {
		s.mu.Unlock()
		slog.Warn("job state write dropped", "job_id", jobID, "error", err)
		return err
	}

	j := s.job
	if p.StageIndex != nil {
		j.StageIndex = *p.StageIndex
	}
	if p.Progress != nil {
		j.Progress = *p.Progress
	}
	switch p.Status {
	case models.JobStatusSucceeded:
		j.Status = p.Status
		r := *p.Result
		j.Result = &r
	case models.JobStatusFailed:
		j.Status = p.Status
		e := *p.Error
		j.Error = &e
	}
	j.UpdatedAt = s.now()

	view := j.View()
	s.publishLocked(view)
	return nil
}

func (s *Store) check(jobID uuid.UUID, p Patch) error {
	if s.job == nil || s.job.ID != jobID {
		return ErrStaleJob
	}
	if s.job.Status.Terminal() {
		return ErrJobFinished
	}
	if p.StageIndex != nil && (*p.StageIndex < s.job.StageIndex || *p.StageIndex >= models.StageCount) {
		return fmt.Errorf("%w: stage %d -> %d", ErrRegression, s.job.StageIndex, *p.StageIndex)
	}
	if p.Progress != nil && (*p.Progress < s.job.Progress || *p.Progress > 100) {
		return fmt.Errorf("%w: progress %d -> %d", ErrRegression, s.job.Progress, *p.Progress)
	}
	switch p.Status {
	case "":
		if p.Result != nil || p.Error != nil {
			return fmt.Errorf("%w: result and error require a terminal status", ErrInvalidPatch)
		}
	case models.JobStatusSucceeded:
		if p.Result == nil || p.Error != nil {
			return fmt.Errorf("%w: success requires a result and no error", ErrInvalidPatch)
		}
	case models.JobStatusFailed:
		if p.Error == nil || p.Result != nil {
			return fmt.Errorf("%w: failure requires an error and no result", ErrInvalidPatch)
		}
	default:
		return fmt.Errorf("%w: status %q cannot be written", ErrInvalidPatch, p.Status)
	}
	return nil
}

// Snapshot returns an immutable copy of the tracked job. Before the first
// submission it returns an idle view.
func (s *Store) Snapshot() models.JobView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.job == nil {
		return models.JobView{Status: models.JobStatusIdle}
	}
	return s.job.View()
}

// Restore seeds an empty store with a job recorded by a previous process.
// A job that was still running is marked failed; it is never resumed.
func (s *Store) Restore(v models.JobView) (models.JobView, bool) {
	if v.Empty() {
		return models.JobView{}, false
	}

	s.mu.Lock()
	if s.job != nil {
		s.mu.Unlock()
		return models.JobView{}, false
	}

	j := v.Job()
	if j.Status == models.JobStatusRunning {
		j.Status = models.JobStatusFailed
		j.Result = nil
		j.Error = &models.JobError{
			Kind:    models.ErrorKindInternal,
			Stage:   models.StageName(j.StageIndex),
			Message: "interrupted by restart",
		}
		j.UpdatedAt = s.now()
	}
	s.job = j
	view := j.View()
	s.publishLocked(view)
	return view, true
}

// publishLocked must be called with mu held; it releases mu before running
// observers.
func (s *Store) publishLocked(view models.JobView) {
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, o := range s.observers {
		o(view)
	}
}
