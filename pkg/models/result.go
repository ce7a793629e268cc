package models

import "fmt"

// Result is produced exactly once, when the publish stage succeeds.
// Paths are local to the work directory of the job.
type Result struct {
	VideoPath              string `json:"video_path,omitempty"`
	AudioPath              string `json:"audio_path,omitempty"`
	SourceCaptionsPath     string `json:"source_captions_path,omitempty"`
	TranslatedCaptionsPath string `json:"translated_captions_path,omitempty"`
	BilingualCaptionsPath  string `json:"bilingual_captions_path,omitempty"`
	PublishSuccess         bool   `json:"publish_success"`
	PublishLocation        string `json:"publish_location,omitempty"`
}

// ErrorKind classifies a rejected submission or a failed job.
type ErrorKind string

const (
	ErrorKindInvalidInput ErrorKind = "InvalidInput"
	ErrorKindConflict     ErrorKind = "Conflict"
	ErrorKindStageFailure ErrorKind = "StageFailure"
	ErrorKindTimeout      ErrorKind = "Timeout"
	ErrorKindInternal     ErrorKind = "Internal"
)

// JobError describes why a job ended in JobStatusFailed.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s failed (%s): %s", e.Stage, e.Kind, e.Message)
}
