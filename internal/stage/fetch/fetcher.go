// Package fetch downloads the source video with yt-dlp.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/kiranshivaraju/subrelay/internal/command"
	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

var (
	mergerLine      = regexp.MustCompile(`\[Merger\] Merging formats into "(.+)"`)
	destinationLine = regexp.MustCompile(`\[download\] Destination:\s*(.+)$`)
	alreadyLine     = regexp.MustCompile(`\[download\] (.+) has already been downloaded`)
)

var videoExts = map[string]bool{".mp4": true, ".mkv": true, ".webm": true, ".mov": true}

// Fetcher implements pipeline.Fetcher using the yt-dlp CLI.
type Fetcher struct {
	cfg    config.FetchConfig
	runner command.Runner
}

func New(cfg config.FetchConfig, runner command.Runner) *Fetcher {
	return &Fetcher{cfg: cfg, runner: runner}
}

// Fetch downloads jc.Input.SourceURL into jc.WorkDir and returns the merged mp4 path.
func (f *Fetcher) Fetch(ctx context.Context, jc pipeline.JobContext) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	args := buildArgs(f.cfg.Format, jc.WorkDir, jc.Input.SourceURL)
	res, err := f.runner.Run(ctx, f.cfg.Binary, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", pipeline.Wrap(err, "download did not finish within %s", f.cfg.Timeout)
		}
		cause := categorize(res.Stderr)
		slog.Warn("yt-dlp failed",
			"job_id", jc.JobID,
			"exit_code", res.ExitCode,
			"stderr", command.Tail(res.Stderr, 5),
		)
		return "", &pipeline.StageError{
			Kind:    models.ErrorKindStageFailure,
			Message: "yt-dlp failed",
			Err:     describe(cause, res.Stderr, err),
		}
	}

	path := outputPath(res.Stdout)
	if path == "" {
		path = newestVideo(jc.WorkDir)
	}
	if path == "" {
		return "", &pipeline.StageError{
			Kind:    models.ErrorKindStageFailure,
			Message: "yt-dlp finished but no video file was produced",
			Err:     ErrOutputMissing,
		}
	}
	if _, err := os.Stat(path); err != nil {
		return "", &pipeline.StageError{
			Kind:    models.ErrorKindStageFailure,
			Message: fmt.Sprintf("downloaded file is not readable: %s", path),
			Err:     fmt.Errorf("%w: %w", ErrOutputMissing, err),
		}
	}
	return path, nil
}

func buildArgs(format, workDir, sourceURL string) []string {
	return []string{
		"-f", format,
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--newline",
		"-o", filepath.Join(workDir, "%(title)s.%(ext)s"),
		"--print", "after_move:filepath",
		sourceURL,
	}
}

// outputPath finds the final file in yt-dlp stdout. The printed filepath
// is the last line; older builds only report it in progress lines.
func outputPath(stdout string) string {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if last := strings.TrimSpace(lines[len(lines)-1]); last != "" && !strings.HasPrefix(last, "[") {
		return last
	}
	var found string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if m := mergerLine.FindStringSubmatch(line); m != nil {
			return m[1]
		}
		if m := destinationLine.FindStringSubmatch(line); m != nil && found == "" {
			found = strings.TrimSpace(m[1])
		}
		if m := alreadyLine.FindStringSubmatch(line); m != nil && found == "" {
			found = strings.TrimSpace(m[1])
		}
	}
	return found
}

// newestVideo returns the most recently modified video file in dir.
func newestVideo(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	type candidate struct {
		path string
		mod  int64
	}
	var found []candidate
	for _, e := range entries {
		if e.IsDir() || !videoExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{filepath.Join(dir, e.Name()), info.ModTime().UnixNano()})
	}
	if len(found) == 0 {
		return ""
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod > found[j].mod })
	return found[0].path
}

// categorize maps yt-dlp stderr onto a sentinel error.
func categorize(stderr string) error {
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "private video") || strings.Contains(s, "is private"):
		return ErrVideoPrivate
	case strings.Contains(s, "age-restricted") || strings.Contains(s, "sign in to confirm your age"):
		return ErrAgeRestricted
	case strings.Contains(s, "video unavailable") || strings.Contains(s, "this video is unavailable"):
		return ErrVideoUnavailable
	case strings.Contains(s, "unsupported url") || strings.Contains(s, "no suitable extractor"):
		return ErrURLNotSupported
	case strings.Contains(s, "unable to download") || strings.Contains(s, "connection") || strings.Contains(s, "network"):
		return ErrNetwork
	default:
		return ErrDownloadFailed
	}
}

// describe joins the category, the last stderr line and the exit error.
func describe(cause error, stderr string, err error) error {
	if tail := command.Tail(stderr, 1); tail != "" {
		return fmt.Errorf("%w: %s (%w)", cause, tail, err)
	}
	return fmt.Errorf("%w (%w)", cause, err)
}

var _ pipeline.Fetcher = (*Fetcher)(nil)
