// Package transcribe turns the extracted audio into a source-language SRT
// track with whisper.cpp.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/asticode/go-astisub"
	"github.com/kiranshivaraju/subrelay/internal/command"
	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// OutputBase is the whisper output name; the track lands at OutputBase + ".srt".
const OutputBase = "source"

var ErrNoSpeech = errors.New("no speech detected")

// Transcriber implements pipeline.Transcriber using the whisper.cpp CLI.
type Transcriber struct {
	cfg    config.TranscribeConfig
	runner command.Runner
}

func New(cfg config.TranscribeConfig, runner command.Runner) *Transcriber {
	return &Transcriber{cfg: cfg, runner: runner}
}

func (t *Transcriber) Transcribe(ctx context.Context, jc pipeline.JobContext, audioPath string) (string, error) {
	if _, err := os.Stat(t.cfg.Model); err != nil {
		return "", &pipeline.StageError{
			Kind:    models.ErrorKindStageFailure,
			Message: fmt.Sprintf("cannot access whisper model: %s", t.cfg.Model),
			Err:     err,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	base := filepath.Join(jc.WorkDir, OutputBase)
	res, err := t.runner.Run(ctx, t.cfg.Binary, buildArgs(t.cfg.Model, audioPath, base, t.cfg.Language)...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", pipeline.Wrap(err, "transcription did not finish within %s", t.cfg.Timeout)
		}
		slog.Warn("whisper failed", "job_id", jc.JobID, "exit_code", res.ExitCode, "stderr", command.Tail(res.Stderr, 5))
		return "", pipeline.Wrap(err, "whisper transcription failed: %s", command.Tail(res.Stderr, 2))
	}

	srtPath := base + ".srt"
	info, err := os.Stat(srtPath)
	if err != nil {
		return "", pipeline.Wrap(err, "whisper completed but the caption track is unreadable")
	}
	var subs *astisub.Subtitles
	if info.Size() > 0 {
		if subs, err = astisub.OpenFile(srtPath); err != nil {
			return "", pipeline.Wrap(err, "whisper completed but the caption track is unreadable")
		}
	}
	if subs == nil || len(subs.Items) == 0 {
		return "", &pipeline.StageError{
			Kind:    models.ErrorKindStageFailure,
			Message: ErrNoSpeech.Error(),
			Err:     ErrNoSpeech,
		}
	}

	slog.Debug("transcription finished", "job_id", jc.JobID, "captions", len(subs.Items))
	return srtPath, nil
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

func buildArgs(modelPath, audioPath, outBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-osrt",
	}
	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}
	return args
}

var _ pipeline.Transcriber = (*Transcriber)(nil)
