// Package translate produces the target-language caption track.
package translate

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/asticode/go-astisub"
	"github.com/kiranshivaraju/subrelay/internal/captions"
	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
)

// OutputFile is the name of the translated track inside the job work dir.
const OutputFile = "translated.srt"

// Translator implements pipeline.Translator. Every caption keeps its index
// and timing; only the text changes.
type Translator struct {
	cfg    config.TranslateConfig
	client Client
}

func New(cfg config.TranslateConfig, client Client) *Translator {
	return &Translator{cfg: cfg, client: client}
}

// NewFromConfig wires a Translator to the HTTP translation API.
func NewFromConfig(cfg config.TranslateConfig) *Translator {
	return New(cfg, NewHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout))
}

func (t *Translator) Translate(ctx context.Context, jc pipeline.JobContext, captionsPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	src, err := captions.Read(captionsPath)
	if err != nil {
		return "", pipeline.Wrap(err, "reading caption track %s", filepath.Base(captionsPath))
	}

	texts := make([]string, len(src.Items))
	var pending []int
	for i, item := range src.Items {
		// astisub keeps the trailing blank line on the last caption.
		texts[i] = captions.Clean(captions.Text(item))
		if texts[i] != "" {
			pending = append(pending, i)
		}
	}

	batch := t.cfg.BatchSize
	if batch <= 0 {
		batch = len(pending)
	}
	for start := 0; start < len(pending); start += batch {
		end := min(start+batch, len(pending))
		idx := pending[start:end]

		q := make([]string, len(idx))
		for j, i := range idx {
			q[j] = texts[i]
		}
		out, err := t.client.Translate(ctx, q, t.cfg.TargetLanguage)
		if err != nil {
			return "", pipeline.Wrap(err, "translating captions %d-%d of %d", start+1, end, len(pending))
		}
		for j, i := range idx {
			// An empty translation would drop the caption from the SRT.
			if cleaned := captions.Clean(out[j]); cleaned != "" {
				texts[i] = cleaned
			}
		}
	}

	dst := astisub.NewSubtitles()
	for i, item := range src.Items {
		dst.Items = append(dst.Items, &astisub.Item{
			Index:   item.Index,
			StartAt: item.StartAt,
			EndAt:   item.EndAt,
			Lines:   captions.Lines(texts[i]),
		})
	}

	outPath := filepath.Join(jc.WorkDir, OutputFile)
	if err := captions.Write(dst, outPath); err != nil {
		return "", pipeline.Wrap(err, "writing translated track")
	}

	slog.Debug("translation finished",
		"job_id", jc.JobID,
		"captions", len(src.Items),
		"translated", len(pending),
		"target", t.cfg.TargetLanguage,
	)
	return outPath, nil
}

var _ pipeline.Translator = (*Translator)(nil)
