package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/kiranshivaraju/subrelay/internal/jobstate"
	"github.com/kiranshivaraju/subrelay/internal/metrics"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// ErrConflict is returned by Submit while another job is running.
var ErrConflict = jobstate.ErrJobRunning

// SubmitRequest is a raw submission as received by the API.
type SubmitRequest struct {
	SourceURL   string
	Title       string
	Description string
	Tags        string
}

// Defaults fill metadata the submitter left empty.
type Defaults struct {
	Title       string
	Description string
	Tags        []string
}

// JobRunner executes a started job to completion.
type JobRunner interface {
	Run(job models.JobView)
}

// Service accepts submissions and runs them off the request path.
type Service struct {
	state    *jobstate.Store
	runner   JobRunner
	defaults Defaults

	wg sync.WaitGroup
}

// NewService creates a new Service.
func NewService(state *jobstate.Store, runner JobRunner, defaults Defaults) *Service {
	return &Service{state: state, runner: runner, defaults: defaults}
}

// Submit validates req, claims the job slot and starts the runner in the
// background. It returns as soon as the job is running.
func (s *Service) Submit(req SubmitRequest) (models.JobView, error) {
	input, err := s.buildInput(req)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		return models.JobView{}, err
	}

	job, err := s.state.TryBegin(input)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("conflict").Inc()
		return models.JobView{}, err
	}
	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	slog.Info("job accepted", "job_id", job.JobID, "source_url", input.SourceURL)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runner.Run(job)
	}()

	return job, nil
}

// Status returns the current snapshot. It has no side effects.
func (s *Service) Status() models.JobView {
	return s.state.Snapshot()
}

// Wait blocks until the in-flight job, if any, has finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) buildInput(req SubmitRequest) (models.JobInput, error) {
	source, err := ValidateSourceURL(req.SourceURL)
	if err != nil {
		return models.JobInput{}, err
	}

	in := models.JobInput{
		SourceURL:   source,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Tags:        ParseTags(req.Tags),
	}
	if in.Title == "" {
		in.Title = s.defaults.Title
	}
	if in.Description == "" {
		in.Description = s.defaults.Description
	}
	if len(in.Tags) == 0 && len(s.defaults.Tags) > 0 {
		in.Tags = append([]string(nil), s.defaults.Tags...)
	}
	return in, nil
}

// ValidateSourceURL checks that raw is a non-empty absolute http(s) URL and
// returns it trimmed.
func ValidateSourceURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: youtube_url is required", ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: youtube_url is not a valid URL", ErrInvalidInput)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: youtube_url must use http or https", ErrInvalidInput)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: youtube_url must include a host", ErrInvalidInput)
	}
	return raw, nil
}

// ParseTags splits a comma-separated tag list, trimming blanks and keeping order.
func ParseTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// IsConflict reports whether err is a rejected submission because a job is running.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
