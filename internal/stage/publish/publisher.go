// Package publish hands the finished video and bilingual captions to a
// publishing target.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
)

var ErrUploadFailed = errors.New("upload failed")

// New constructs the publisher selected by cfg.Target.
// Called once at server startup.
func New(cfg config.PublishConfig) (pipeline.Publisher, error) {
	switch cfg.Target {
	case "", "none":
		return Disabled{}, nil
	case "s3":
		return NewS3Publisher(cfg.S3, cfg.Timeout), nil
	case "minio":
		return NewMinioPublisher(cfg.Minio, cfg.Timeout)
	case "webhook":
		return NewWebhookPublisher(cfg.Webhook, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown publish target %q: must be one of none, s3, minio, webhook", cfg.Target)
	}
}

// Disabled declines every upload. The job still succeeds with
// publish_success=false.
type Disabled struct{}

func (Disabled) Name() string { return "none" }

func (Disabled) Publish(_ context.Context, _ pipeline.JobContext, _ pipeline.PublishRequest) (pipeline.PublishOutcome, error) {
	return pipeline.PublishOutcome{Message: "publishing disabled"}, nil
}

// Metadata is uploaded next to the artifacts so a downstream uploader can
// post the video with its title, description and tags.
type Metadata struct {
	JobID       string   `json:"job_id"`
	SourceURL   string   `json:"source_url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	VideoKey    string   `json:"video_key"`
	CaptionsKey string   `json:"captions_key"`
}

// objectLayout is where one job's artifacts live inside a bucket.
type objectLayout struct {
	Video    string
	Captions string
	Metadata string
}

func layout(prefix string, jc pipeline.JobContext, req pipeline.PublishRequest) objectLayout {
	base := path.Join(strings.Trim(prefix, "/"), jc.JobID.String())
	return objectLayout{
		Video:    path.Join(base, "video"+strings.ToLower(filepath.Ext(req.VideoPath))),
		Captions: path.Join(base, "captions.srt"),
		Metadata: path.Join(base, "metadata.json"),
	}
}

func metadataJSON(jc pipeline.JobContext, keys objectLayout) ([]byte, error) {
	tags := jc.Input.Tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(Metadata{
		JobID:       jc.JobID.String(),
		SourceURL:   jc.Input.SourceURL,
		Title:       jc.Input.Title,
		Description: jc.Input.Description,
		Tags:        tags,
		VideoKey:    keys.Video,
		CaptionsKey: keys.Captions,
	})
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".srt":
		return "application/x-subrip"
	default:
		return "application/octet-stream"
	}
}

var _ pipeline.Publisher = Disabled{}
