package models

import "fmt"

// StatusResponse is the body served by GET /api/status and pushed on the
// status stream. The first five fields are what the browser form reads.
type StatusResponse struct {
	IsProcessing bool            `json:"is_processing"`
	CurrentStep  int             `json:"current_step"`
	Progress     int             `json:"progress"`
	Result       *ResultResponse `json:"result"`
	Error        *string         `json:"error"`

	JobID     *string   `json:"job_id"`
	Status    JobStatus `json:"status"`
	StageName string    `json:"stage_name,omitempty"`
	ErrorKind *string   `json:"error_kind"`
}

// ResultResponse is the wire form of Result. bilingual_srt and
// upload_success repeat bilingual_captions_path and publish_success under
// the names older clients read.
type ResultResponse struct {
	Success                bool   `json:"success"`
	VideoPath              string `json:"video_path,omitempty"`
	AudioPath              string `json:"audio_path,omitempty"`
	SourceCaptionsPath     string `json:"source_captions_path,omitempty"`
	TranslatedCaptionsPath string `json:"translated_captions_path,omitempty"`
	BilingualCaptionsPath  string `json:"bilingual_captions_path,omitempty"`
	PublishSuccess         bool   `json:"publish_success"`
	PublishLocation        string `json:"publish_location,omitempty"`

	BilingualSRT  string `json:"bilingual_srt,omitempty"`
	UploadSuccess bool   `json:"upload_success"`
}

// NewStatusResponse renders a snapshot for polling clients.
func NewStatusResponse(v JobView) StatusResponse {
	resp := StatusResponse{
		IsProcessing: v.IsProcessing(),
		CurrentStep:  v.StageIndex,
		Progress:     v.Progress,
		Status:       v.Status,
	}
	if resp.Status == "" {
		resp.Status = JobStatusIdle
	}
	if v.Empty() {
		return resp
	}

	id := v.JobID.String()
	resp.JobID = &id
	resp.StageName = StageName(v.StageIndex)

	if v.Status == JobStatusSucceeded && v.Result != nil {
		r := v.Result
		resp.Result = &ResultResponse{
			Success:                true,
			VideoPath:              r.VideoPath,
			AudioPath:              r.AudioPath,
			SourceCaptionsPath:     r.SourceCaptionsPath,
			TranslatedCaptionsPath: r.TranslatedCaptionsPath,
			BilingualCaptionsPath:  r.BilingualCaptionsPath,
			PublishSuccess:         r.PublishSuccess,
			PublishLocation:        r.PublishLocation,
			BilingualSRT:           r.BilingualCaptionsPath,
			UploadSuccess:          r.PublishSuccess,
		}
	}
	if v.Status == JobStatusFailed && v.Error != nil {
		msg := failureMessage(v.Error)
		kind := string(v.Error.Kind)
		resp.Error = &msg
		resp.ErrorKind = &kind
	}
	return resp
}

func failureMessage(e *JobError) string {
	if e.Stage == "" {
		return fmt.Sprintf("Processing failed: %s", e.Message)
	}
	return fmt.Sprintf("Processing failed at %s: %s", e.Stage, e.Message)
}
