package merge_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiranshivaraju/subrelay/internal/captions"
	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
	"github.com/kiranshivaraju/subrelay/internal/stage/merge"
	"github.com/kiranshivaraju/subrelay/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const source = `1
00:00:00,000 --> 00:00:02,000
Hello, world.

2
00:00:02,500 --> 00:00:04,500
This is a test.
`

const translated = `1
00:00:00,100 --> 00:00:02,100
你好，世界。

2
00:00:02,600 --> 00:00:04,600
这是一个测试。
`

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func newMerger() *merge.Merger {
	return merge.New(config.MergeConfig{Timeout: time.Minute})
}

func TestMerge_StacksOriginalAboveTranslation(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "source.srt", source)
	dst := write(t, dir, "translated.srt", translated)

	out, err := newMerger().Merge(context.Background(), pipeline.JobContext{WorkDir: dir}, src, dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, merge.OutputFile), out)

	merged, err := captions.Read(out)
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, "Hello, world.\n你好，世界。", captions.Text(merged.Items[0]))
	assert.Equal(t, "This is a test.\n这是一个测试。", captions.Text(merged.Items[1]))

	// Timing follows the source track.
	assert.Equal(t, time.Duration(0), merged.Items[0].StartAt)
	assert.Equal(t, 4500*time.Millisecond, merged.Items[1].EndAt)
}

func TestMerge_IdenticalTextIsNotDuplicated(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "source.srt", source)
	dst := write(t, dir, "translated.srt", source)

	out, err := newMerger().Merge(context.Background(), pipeline.JobContext{WorkDir: dir}, src, dst)
	require.NoError(t, err)

	merged, err := captions.Read(out)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world.", captions.Text(merged.Items[0]))
}

func TestMerge_CountMismatchFails(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "source.srt", source)
	dst := write(t, dir, "translated.srt", "1\n00:00:00,000 --> 00:00:02,000\n只有一条\n")

	_, err := newMerger().Merge(context.Background(), pipeline.JobContext{WorkDir: dir}, src, dst)
	require.ErrorIs(t, err, merge.ErrTrackMismatch)

	je := pipeline.Classify(models.StageMerge, err)
	assert.Equal(t, models.ErrorKindStageFailure, je.Kind)
	assert.Equal(t, "source has 2 captions, translation has 1: caption tracks are not aligned", je.Message)
}

func TestMerge_MissingInput(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "source.srt", source)

	_, err := newMerger().Merge(context.Background(), pipeline.JobContext{WorkDir: dir}, src, filepath.Join(dir, "missing.srt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading translated track")
}
