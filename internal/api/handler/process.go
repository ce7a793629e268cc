package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	mw "github.com/kiranshivaraju/subrelay/internal/api/middleware"
	"github.com/kiranshivaraju/subrelay/internal/api/response"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

const maxSubmitBody = 64 << 10

// Submitter defines the interface the process handler depends on.
type Submitter interface {
	Submit(req pipeline.SubmitRequest) (models.JobView, error)
}

// tagList accepts video_tags as a comma-separated string or a JSON array.
type tagList string

func (t *tagList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = tagList(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return errors.New("video_tags must be a string or a list of strings")
	}
	*t = tagList(strings.Join(list, ","))
	return nil
}

type processRequest struct {
	YouTubeURL       string  `json:"youtube_url"`
	VideoTitle       string  `json:"video_title"`
	VideoDescription string  `json:"video_description"`
	VideoTags        tagList `json:"video_tags"`
}

// NewProcessHandler returns an http.HandlerFunc for POST /api/process.
func NewProcessHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req processRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody))
		if err := dec.Decode(&req); err != nil {
			msg := "Invalid JSON body"
			if errors.Is(err, io.EOF) {
				msg = "Request body is required"
			}
			response.Rejected(w, http.StatusBadRequest, "INVALID_INPUT", models.ErrorKindInvalidInput, msg)
			return
		}

		job, err := svc.Submit(pipeline.SubmitRequest{
			SourceURL:   req.YouTubeURL,
			Title:       req.VideoTitle,
			Description: req.VideoDescription,
			Tags:        string(req.VideoTags),
		})
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrInvalidInput):
				response.Rejected(w, http.StatusBadRequest, "INVALID_INPUT", models.ErrorKindInvalidInput, err.Error())
			case pipeline.IsConflict(err):
				response.Rejected(w, http.StatusConflict, "CONFLICT", models.ErrorKindConflict,
					"A job is already running; wait for it to finish")
			default:
				slog.Error("submit failed", "error", err, "request_id", mw.GetRequestID(r))
				response.Rejected(w, http.StatusInternalServerError, "INTERNAL_ERROR", models.ErrorKindInternal,
					"An unexpected error occurred")
			}
			return
		}

		response.Accepted(w, response.Ack{
			Message: "Processing started",
			JobID:   job.JobID.String(),
		})
	}
}
