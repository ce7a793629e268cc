// Package merge combines the source and translated caption tracks into one
// bilingual track.
package merge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/asticode/go-astisub"
	"github.com/kiranshivaraju/subrelay/internal/captions"
	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// OutputFile is the name of the bilingual track inside the job work dir.
const OutputFile = "bilingual.srt"

var ErrTrackMismatch = errors.New("caption tracks are not aligned")

// Merger implements pipeline.Merger. Caption i of the output shows the
// source text above the translation, on the source track's timing.
type Merger struct {
	cfg config.MergeConfig
}

func New(cfg config.MergeConfig) *Merger {
	return &Merger{cfg: cfg}
}

func (m *Merger) Merge(ctx context.Context, jc pipeline.JobContext, sourcePath, translatedPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	src, err := captions.Read(sourcePath)
	if err != nil {
		return "", pipeline.Wrap(err, "reading source track")
	}
	dst, err := captions.Read(translatedPath)
	if err != nil {
		return "", pipeline.Wrap(err, "reading translated track")
	}
	if len(src.Items) != len(dst.Items) {
		return "", &pipeline.StageError{
			Kind:    models.ErrorKindStageFailure,
			Message: fmt.Sprintf("source has %d captions, translation has %d", len(src.Items), len(dst.Items)),
			Err:     ErrTrackMismatch,
		}
	}

	out := astisub.NewSubtitles()
	for i, item := range src.Items {
		if err := ctx.Err(); err != nil {
			return "", pipeline.Wrap(err, "merging captions")
		}
		out.Items = append(out.Items, &astisub.Item{
			Index:   item.Index,
			StartAt: item.StartAt,
			EndAt:   item.EndAt,
			Lines:   captions.Lines(bilingual(captions.Text(item), captions.Text(dst.Items[i]))),
		})
	}

	outPath := filepath.Join(jc.WorkDir, OutputFile)
	if err := captions.Write(out, outPath); err != nil {
		return "", pipeline.Wrap(err, "writing bilingual track")
	}
	return outPath, nil
}

func bilingual(original, translated string) string {
	original, translated = captions.Clean(original), captions.Clean(translated)
	switch {
	case translated == "" || translated == original:
		return original
	case original == "":
		return translated
	}
	return original + "\n" + translated
}

var _ pipeline.Merger = (*Merger)(nil)
