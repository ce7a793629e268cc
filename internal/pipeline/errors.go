package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/subrelay/pkg/models"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoArtifact   = errors.New("stage produced no artifact")
)

// StageError is the expected-failure outcome of a stage adapter.
type StageError struct {
	Stage   string
	Kind    models.ErrorKind
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Stage != "" {
		return e.Stage + ": " + e.detail()
	}
	return e.detail()
}

// detail is the message followed by the cause, without the stage prefix.
func (e *StageError) detail() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Failf returns a StageError of the given kind.
func Failf(kind models.ErrorKind, format string, args ...any) *StageError {
	return &StageError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a StageFailure carrying err, or a Timeout when err is a
// deadline expiry.
func Wrap(err error, format string, args ...any) *StageError {
	kind := models.ErrorKindStageFailure
	if errors.Is(err, context.DeadlineExceeded) {
		kind = models.ErrorKindTimeout
	}
	return &StageError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Classify converts any stage error into the JobError recorded on the job.
func Classify(stage string, err error) models.JobError {
	je := models.JobError{Kind: models.ErrorKindStageFailure, Stage: stage, Message: err.Error()}

	var se *StageError
	if errors.As(err, &se) {
		if se.Kind != "" {
			je.Kind = se.Kind
		}
		if se.Message != "" || se.Err != nil {
			je.Message = se.detail()
		}
		if se.Stage != "" {
			je.Stage = se.Stage
		}
	}

	if je.Kind == models.ErrorKindStageFailure && errors.Is(err, context.DeadlineExceeded) {
		je.Kind = models.ErrorKindTimeout
		if se == nil {
			je.Message = "stage exceeded its time budget"
		}
	}
	return je
}
