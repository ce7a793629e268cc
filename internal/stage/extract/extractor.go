// Package extract demuxes the audio track from the downloaded video with ffmpeg.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kiranshivaraju/subrelay/internal/command"
	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// AudioFile is the name of the extracted track inside the job work dir.
const AudioFile = "audio.wav"

// Extractor implements pipeline.AudioExtractor using ffmpeg.
type Extractor struct {
	cfg    config.ExtractConfig
	runner command.Runner
}

func New(cfg config.ExtractConfig, runner command.Runner) *Extractor {
	return &Extractor{cfg: cfg, runner: runner}
}

// ExtractAudio writes a 16 kHz mono PCM WAV next to the video, the format
// whisper.cpp expects.
func (e *Extractor) ExtractAudio(ctx context.Context, jc pipeline.JobContext, videoPath string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", &pipeline.StageError{
			Kind:    models.ErrorKindStageFailure,
			Message: fmt.Sprintf("cannot access video: %s", videoPath),
			Err:     err,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	outPath := filepath.Join(jc.WorkDir, AudioFile)
	res, err := e.runner.Run(ctx, e.cfg.Binary, buildArgs(videoPath, outPath)...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", pipeline.Wrap(err, "audio extraction did not finish within %s", e.cfg.Timeout)
		}
		slog.Warn("ffmpeg failed", "job_id", jc.JobID, "exit_code", res.ExitCode, "stderr", command.Tail(res.Stderr, 5))
		return "", pipeline.Wrap(err, "ffmpeg audio extraction failed: %s", command.Tail(res.Stderr, 2))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", pipeline.Wrap(err, "ffmpeg completed but audio file is missing")
	}
	if info.Size() == 0 {
		return "", pipeline.Failf(models.ErrorKindStageFailure, "ffmpeg produced an empty audio file")
	}
	return outPath, nil
}

func buildArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

var _ pipeline.AudioExtractor = (*Extractor)(nil)
