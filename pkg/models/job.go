// Package models contains shared data models used across the subrelay codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of the tracked job.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Stage names in execution order. The index of a name is its stage_index.
const (
	StageFetch      = "fetch"
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
	StageMerge      = "merge"
	StagePublish    = "publish"
)

// StageNames lists every stage in the fixed pipeline order.
var StageNames = [...]string{
	StageFetch,
	StageExtract,
	StageTranscribe,
	StageTranslate,
	StageMerge,
	StagePublish,
}

// StageCount is the number of stages in a pipeline run.
const StageCount = len(StageNames)

// StageName returns the name for a stage index, or "" when out of range.
func StageName(index int) string {
	if index < 0 || index >= StageCount {
		return ""
	}
	return StageNames[index]
}

// JobInput is the validated submission a job was created from.
type JobInput struct {
	SourceURL   string   `json:"source_url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Job is the record of one end-to-end localization request.
type Job struct {
	ID         uuid.UUID `json:"id"`
	Input      JobInput  `json:"input"`
	Status     JobStatus `json:"status"`
	StageIndex int       `json:"stage_index"`
	Progress   int       `json:"progress"`
	Result     *Result   `json:"result,omitempty"`
	Error      *JobError `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// View returns an immutable copy of the job.
func (j *Job) View() JobView {
	return JobView{
		JobID:      j.ID,
		Input:      j.Input.clone(),
		Status:     j.Status,
		StageIndex: j.StageIndex,
		Progress:   j.Progress,
		Result:     cloneResult(j.Result),
		Error:      cloneError(j.Error),
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}

// JobView is a point-in-time read of the tracked job. The zero value
// describes a process that has not accepted any submission yet.
type JobView struct {
	JobID      uuid.UUID `json:"job_id"`
	Input      JobInput  `json:"input"`
	Status     JobStatus `json:"status"`
	StageIndex int       `json:"stage_index"`
	Progress   int       `json:"progress"`
	Result     *Result   `json:"result,omitempty"`
	Error      *JobError `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Empty reports whether the view carries no job.
func (v JobView) Empty() bool {
	return v.JobID == uuid.Nil
}

// IsProcessing reports whether the job is still running.
func (v JobView) IsProcessing() bool {
	return v.Status == JobStatusRunning
}

// Job converts the view back into a mutable record.
func (v JobView) Job() *Job {
	return &Job{
		ID:         v.JobID,
		Input:      v.Input.clone(),
		Status:     v.Status,
		StageIndex: v.StageIndex,
		Progress:   v.Progress,
		Result:     cloneResult(v.Result),
		Error:      cloneError(v.Error),
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

func (in JobInput) clone() JobInput {
	if in.Tags != nil {
		in.Tags = append([]string(nil), in.Tags...)
	}
	return in
}

func cloneResult(r *Result) *Result {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

func cloneError(e *JobError) *JobError {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}
