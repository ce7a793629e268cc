// Package pipeline sequences the six localization stages for one job.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// JobContext is handed to every stage. Stages write their artifacts under
// WorkDir and never touch shared job state.
type JobContext struct {
	JobID   uuid.UUID
	Input   models.JobInput
	WorkDir string
}

// Fetcher downloads the source video and returns its local path.
type Fetcher interface {
	Fetch(ctx context.Context, jc JobContext) (string, error)
}

// AudioExtractor demuxes the audio track from a video file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, jc JobContext, videoPath string) (string, error)
}

// Transcriber produces a source-language SRT caption track.
type Transcriber interface {
	Transcribe(ctx context.Context, jc JobContext, audioPath string) (string, error)
}

// Translator produces a target-language SRT track aligned with the source.
type Translator interface {
	Translate(ctx context.Context, jc JobContext, captionsPath string) (string, error)
}

// Merger combines source and translated tracks into one bilingual SRT file.
type Merger interface {
	Merge(ctx context.Context, jc JobContext, sourcePath, translatedPath string) (string, error)
}

// PublishRequest carries the artifacts handed to a publishing target.
// Title, description and tags come from the JobContext input.
type PublishRequest struct {
	VideoPath    string
	CaptionsPath string
}

// PublishOutcome reports what the publishing target did. A target that
// declines the upload returns Published=false with a nil error.
type PublishOutcome struct {
	Published bool
	Location  string
	Message   string
}

// Publisher hands the finished video to a destination platform.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, jc JobContext, req PublishRequest) (PublishOutcome, error)
}

// Stages is the fixed set of adapters a Runner drives, in execution order.
type Stages struct {
	Fetch      Fetcher
	Extract    AudioExtractor
	Transcribe Transcriber
	Translate  Translator
	Merge      Merger
	Publish    Publisher
}

// Validate reports a missing adapter.
func (s Stages) Validate() error {
	switch {
	case s.Fetch == nil:
		return errors.New("fetch stage is not configured")
	case s.Extract == nil:
		return errors.New("extract stage is not configured")
	case s.Transcribe == nil:
		return errors.New("transcribe stage is not configured")
	case s.Translate == nil:
		return errors.New("translate stage is not configured")
	case s.Merge == nil:
		return errors.New("merge stage is not configured")
	case s.Publish == nil:
		return errors.New("publish stage is not configured")
	}
	return nil
}
