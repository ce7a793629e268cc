// Package mock provides scriptable stage adapters for tests.
package mock

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/kiranshivaraju/subrelay/internal/pipeline"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// Artifact writes an empty placeholder file into the job work dir and
// returns its path.
func Artifact(jc pipeline.JobContext, name string) (string, error) {
	path := filepath.Join(jc.WorkDir, name)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Fetcher satisfies pipeline.Fetcher.
type Fetcher struct {
	FetchFunc func(ctx context.Context, jc pipeline.JobContext) (string, error)
	calls     atomic.Int32
}

func (m *Fetcher) Fetch(ctx context.Context, jc pipeline.JobContext) (string, error) {
	m.calls.Add(1)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, jc)
	}
	return Artifact(jc, "source.mp4")
}

func (m *Fetcher) Calls() int { return int(m.calls.Load()) }

// Extractor satisfies pipeline.AudioExtractor.
type Extractor struct {
	ExtractFunc func(ctx context.Context, jc pipeline.JobContext, videoPath string) (string, error)
	calls       atomic.Int32
}

func (m *Extractor) ExtractAudio(ctx context.Context, jc pipeline.JobContext, videoPath string) (string, error) {
	m.calls.Add(1)
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, jc, videoPath)
	}
	return Artifact(jc, "audio.wav")
}

func (m *Extractor) Calls() int { return int(m.calls.Load()) }

// Transcriber satisfies pipeline.Transcriber.
type Transcriber struct {
	TranscribeFunc func(ctx context.Context, jc pipeline.JobContext, audioPath string) (string, error)
	calls          atomic.Int32
}

func (m *Transcriber) Transcribe(ctx context.Context, jc pipeline.JobContext, audioPath string) (string, error) {
	m.calls.Add(1)
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, jc, audioPath)
	}
	return Artifact(jc, "source.srt")
}

func (m *Transcriber) Calls() int { return int(m.calls.Load()) }

// Translator satisfies pipeline.Translator.
type Translator struct {
	TranslateFunc func(ctx context.Context, jc pipeline.JobContext, captionsPath string) (string, error)
	calls         atomic.Int32
}

func (m *Translator) Translate(ctx context.Context, jc pipeline.JobContext, captionsPath string) (string, error) {
	m.calls.Add(1)
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, jc, captionsPath)
	}
	return Artifact(jc, "translated.srt")
}

func (m *Translator) Calls() int { return int(m.calls.Load()) }

// Merger satisfies pipeline.Merger.
type Merger struct {
	MergeFunc func(ctx context.Context, jc pipeline.JobContext, sourcePath, translatedPath string) (string, error)
	calls     atomic.Int32
}

func (m *Merger) Merge(ctx context.Context, jc pipeline.JobContext, sourcePath, translatedPath string) (string, error) {
	m.calls.Add(1)
	if m.MergeFunc != nil {
		return m.MergeFunc(ctx, jc, sourcePath, translatedPath)
	}
	return Artifact(jc, "bilingual.srt")
}

func (m *Merger) Calls() int { return int(m.calls.Load()) }

// Publisher satisfies pipeline.Publisher.
type Publisher struct {
	PublishFunc func(ctx context.Context, jc pipeline.JobContext, req pipeline.PublishRequest) (pipeline.PublishOutcome, error)
	calls       atomic.Int32
}

func (m *Publisher) Name() string { return "mock" }

func (m *Publisher) Publish(ctx context.Context, jc pipeline.JobContext, req pipeline.PublishRequest) (pipeline.PublishOutcome, error) {
	m.calls.Add(1)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, jc, req)
	}
	return pipeline.PublishOutcome{
		Published: true,
		Location:  "mock://published/" + jc.JobID.String(),
	}, nil
}

func (m *Publisher) Calls() int { return int(m.calls.Load()) }

// Set bundles one mock per stage.
type Set struct {
	Fetch      *Fetcher
	Extract    *Extractor
	Transcribe *Transcriber
	Translate  *Translator
	Merge      *Merger
	Publish    *Publisher
}

// NewSet returns mocks that all succeed.
func NewSet() *Set {
	return &Set{
		Fetch:      &Fetcher{},
		Extract:    &Extractor{},
		Transcribe: &Transcriber{},
		Translate:  &Translator{},
		Merge:      &Merger{},
		Publish:    &Publisher{},
	}
}

// Stages returns the set as runner stages.
func (s *Set) Stages() pipeline.Stages {
	return pipeline.Stages{
		Fetch:      s.Fetch,
		Extract:    s.Extract,
		Transcribe: s.Transcribe,
		Translate:  s.Translate,
		Merge:      s.Merge,
		Publish:    s.Publish,
	}
}

// Calls returns the invocation count of every stage in pipeline order.
func (s *Set) Calls() []int {
	return []int{
		s.Fetch.Calls(),
		s.Extract.Calls(),
		s.Transcribe.Calls(),
		s.Translate.Calls(),
		s.Merge.Calls(),
		s.Publish.Calls(),
	}
}

// FailAt makes the named stage return err.
func (s *Set) FailAt(stage string, err error) {
	switch stage {
	case models.StageFetch:
		s.Fetch.FetchFunc = func(context.Context, pipeline.JobContext) (string, error) { return "", err }
	case models.StageExtract:
		s.Extract.ExtractFunc = func(context.Context, pipeline.JobContext, string) (string, error) { return "", err }
	case models.StageTranscribe:
		s.Transcribe.TranscribeFunc = func(context.Context, pipeline.JobContext, string) (string, error) { return "", err }
	case models.StageTranslate:
		s.Translate.TranslateFunc = func(context.Context, pipeline.JobContext, string) (string, error) { return "", err }
	case models.StageMerge:
		s.Merge.MergeFunc = func(context.Context, pipeline.JobContext, string, string) (string, error) { return "", err }
	case models.StagePublish:
		s.Publish.PublishFunc = func(context.Context, pipeline.JobContext, pipeline.PublishRequest) (pipeline.PublishOutcome, error) {
			return pipeline.PublishOutcome{}, err
		}
	}
}

// Compile-time checks.
var (
	_ pipeline.Fetcher        = (*Fetcher)(nil)
	_ pipeline.AudioExtractor = (*Extractor)(nil)
	_ pipeline.Transcriber    = (*Transcriber)(nil)
	_ pipeline.Translator     = (*Translator)(nil)
	_ pipeline.Merger         = (*Merger)(nil)
	_ pipeline.Publisher      = (*Publisher)(nil)
)
