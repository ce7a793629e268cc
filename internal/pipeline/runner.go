package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/subrelay/internal/jobstate"
	"github.com/kiranshivaraju/subrelay/internal/metrics"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// StateWriter is the part of the job state store the runner writes through.
type StateWriter interface {
	Write(jobID uuid.UUID, p jobstate.Patch) error
}

// Runner drives the six stages for one job at a time. It is the only writer
// for the job it was started with.
type Runner struct {
	state    StateWriter
	stages   Stages
	workRoot string
}

// NewRunner creates a Runner. Each job gets its own directory under workRoot.
func NewRunner(state StateWriter, stages Stages, workRoot string) *Runner {
	return &Runner{state: state, stages: stages, workRoot: workRoot}
}

type artifacts struct {
	video      string
	audio      string
	source     string
	translated string
	bilingual  string
	published  PublishOutcome
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes the pipeline for job and records the terminal state.
// It never returns an error; every failure ends up on the job.
func (r *Runner) Run(job models.JobView) {
	logger := slog.With("job_id", job.JobID)
	jc := JobContext{
		JobID:   job.JobID,
		Input:   job.Input,
		WorkDir: filepath.Join(r.workRoot, job.JobID.String()),
	}
	current := 0

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic in pipeline runner", "error", rec, "stack", string(debug.Stack()))
			r.write(jc.JobID, jobstate.Fail(models.JobError{
				Kind:    models.ErrorKindInternal,
				Stage:   models.StageName(current),
				Message: fmt.Sprintf("unexpected fault: %v", rec),
			}))
		}
	}()

	if err := os.MkdirAll(jc.WorkDir, 0o755); err != nil {
		logger.Error("preparing work directory", "dir", jc.WorkDir, "error", err)
		r.write(jc.JobID, jobstate.Fail(models.JobError{
			Kind:    models.ErrorKindInternal,
			Stage:   models.StageName(0),
			Message: fmt.Sprintf("preparing work directory: %v", err),
		}))
		return
	}

	var a artifacts
	ctx := context.Background()
	for i, st := range r.steps(jc, &a) {
		current = i
		r.write(jc.JobID, jobstate.Advance(i, i*100/models.StageCount))
		logger.Info("stage started", "stage", st.name, "stage_index", i)

		start := time.Now()
		err := runStep(ctx, st)
		elapsed := time.Since(start)
		if err != nil {
			je := Classify(st.name, err)
			metrics.ObserveStage(st.name, elapsed, je.Kind)
			logger.Error("stage failed",
				"stage", st.name,
				"kind", je.Kind,
				"duration_ms", elapsed.Milliseconds(),
				"error", err,
			)
			r.write(jc.JobID, jobstate.Fail(je))
			return
		}
		metrics.ObserveStage(st.name, elapsed, "")
		logger.Info("stage completed", "stage", st.name, "duration_ms", elapsed.Milliseconds())
	}

	result := models.Result{
		VideoPath:              a.video,
		AudioPath:              a.audio,
		SourceCaptionsPath:     a.source,
		TranslatedCaptionsPath: a.translated,
		BilingualCaptionsPath:  a.bilingual,
		PublishSuccess:         a.published.Published,
		PublishLocation:        a.published.Location,
	}
	r.write(jc.JobID, jobstate.Succeed(result))
	logger.Info("job succeeded",
		"publish_success", result.PublishSuccess,
		"publish_target", r.stages.Publish.Name(),
		"publish_message", a.published.Message,
	)
}

func (r *Runner) steps(jc JobContext, a *artifacts) []step {
	s := r.stages
	return []step{
		{models.StageFetch, func(ctx context.Context) (err error) {
			a.video, err = s.Fetch.Fetch(ctx, jc)
			return requirePath(a.video, err)
		}},
		{models.StageExtract, func(ctx context.Context) (err error) {
			a.audio, err = s.Extract.ExtractAudio(ctx, jc, a.video)
			return requirePath(a.audio, err)
		}},
		{models.StageTranscribe, func(ctx context.Context) (err error) {
			a.source, err = s.Transcribe.Transcribe(ctx, jc, a.audio)
			return requirePath(a.source, err)
		}},
		{models.StageTranslate, func(ctx context.Context) (err error) {
			a.translated, err = s.Translate.Translate(ctx, jc, a.source)
			return requirePath(a.translated, err)
		}},
		{models.StageMerge, func(ctx context.Context) (err error) {
			a.bilingual, err = s.Merge.Merge(ctx, jc, a.source, a.translated)
			return requirePath(a.bilingual, err)
		}},
		{models.StagePublish, func(ctx context.Context) (err error) {
			a.published, err = s.Publish.Publish(ctx, jc, PublishRequest{
				VideoPath:    a.video,
				CaptionsPath: a.bilingual,
			})
			return err
		}},
	}
}

// runStep invokes one adapter and converts a panic into an Internal failure.
func runStep(ctx context.Context, st step) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in stage adapter", "stage", st.name, "error", rec, "stack", string(debug.Stack()))
			err = Failf(models.ErrorKindInternal, "unexpected fault: %v", rec)
		}
	}()
	return st.run(ctx)
}

// requirePath checks that a stage left its artifact on disk.
func requirePath(path string, err error) error {
	if err != nil {
		return err
	}
	if path == "" {
		return &StageError{Kind: models.ErrorKindStageFailure, Err: ErrNoArtifact}
	}
	if _, err := os.Stat(path); err != nil {
		return &StageError{
			Kind:    models.ErrorKindStageFailure,
			Message: fmt.Sprintf("%s: %s", ErrNoArtifact, filepath.Base(path)),
			Err:     err,
		}
	}
	return nil
}

func (r *Runner) write(jobID uuid.UUID, p jobstate.Patch) {
	// The store logs rejected writes.
	_ = r.state.Write(jobID, p)
}
