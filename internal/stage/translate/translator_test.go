package translate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/subrelay/internal/captions"
	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
	"github.com/kiranshivaraju/subrelay/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu      sync.Mutex
	batches [][]string
	fn      func(texts []string) ([]string, error)
}

func (f *fakeClient) Translate(_ context.Context, texts []string, _ string) ([]string, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(texts)
	}
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = "ZH:" + s
	}
	return out, nil
}

func writeSource(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d\n00:00:%02d,000 --> 00:00:%02d,500\nline %d\n\n", i, i, i, i)
	}
	path := filepath.Join(dir, "source.srt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testConfig(batch int) config.TranslateConfig {
	return config.TranslateConfig{TargetLanguage: "zh-CN", BatchSize: batch, Timeout: time.Minute}
}

func TestTranslator_PreservesTimingAndOrder(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, 5)
	client := &fakeClient{}

	out, err := New(testConfig(2), client).Translate(context.Background(), pipeline.JobContext{JobID: uuid.New(), WorkDir: dir}, src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, OutputFile), out)

	assert.Equal(t, [][]string{{"line 1", "line 2"}, {"line 3", "line 4"}, {"line 5"}}, client.batches)

	original, err := captions.Read(src)
	require.NoError(t, err)
	translated, err := captions.Read(out)
	require.NoError(t, err)
	require.Len(t, translated.Items, 5)
	for i := range translated.Items {
		assert.Equal(t, original.Items[i].StartAt, translated.Items[i].StartAt)
		assert.Equal(t, original.Items[i].EndAt, translated.Items[i].EndAt)
		assert.Equal(t, fmt.Sprintf("ZH:line %d", i+1), captions.Text(translated.Items[i]))
	}
}

func TestTranslator_CleansOutputAndKeepsSourceWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, 2)
	client := &fakeClient{fn: func(texts []string) ([]string, error) {
		return []string{"  你好\x00 ", "   "}, nil
	}}

	out, err := New(testConfig(10), client).Translate(context.Background(), pipeline.JobContext{WorkDir: dir}, src)
	require.NoError(t, err)

	translated, err := captions.Read(out)
	require.NoError(t, err)
	require.Len(t, translated.Items, 2)
	assert.Equal(t, "你好", captions.Text(translated.Items[0]))
	assert.Equal(t, "line 2", captions.Text(translated.Items[1]))
}

func TestTranslator_SendsCleanedSourceText(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.srt")
	body := "1\n00:00:01,000 --> 00:00:02,000\n  first line  \nsecond\n\n" +
		"2\n00:00:03,000 --> 00:00:04,000\nlast caption\n\n\n"
	require.NoError(t, os.WriteFile(src, []byte(body), 0o644))
	client := &fakeClient{}

	out, err := New(testConfig(10), client).Translate(context.Background(), pipeline.JobContext{WorkDir: dir}, src)
	require.NoError(t, err)

	require.Len(t, client.batches, 1)
	assert.Equal(t, []string{"first line\nsecond", "last caption"}, client.batches[0])

	translated, err := captions.Read(out)
	require.NoError(t, err)
	require.Len(t, translated.Items, 2)
	assert.Equal(t, "ZH:last caption", captions.Text(translated.Items[1]))
}

func TestTranslator_ClientError(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, 3)
	client := &fakeClient{fn: func([]string) ([]string, error) {
		return nil, fmt.Errorf("%w: status 403: API key not valid", ErrAPIRejected)
	}}

	_, err := New(testConfig(2), client).Translate(context.Background(), pipeline.JobContext{WorkDir: dir}, src)
	require.ErrorIs(t, err, ErrAPIRejected)

	je := pipeline.Classify(models.StageTranslate, err)
	assert.Equal(t, models.ErrorKindStageFailure, je.Kind)
	assert.Contains(t, je.Message, "translating captions 1-2 of 3")
	_, statErr := os.Stat(filepath.Join(dir, OutputFile))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestTranslator_TimeoutIsClassified(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, 1)
	client := &fakeClient{fn: func([]string) ([]string, error) {
		return nil, fmt.Errorf("%w: %w", ErrAPITimeout, context.DeadlineExceeded)
	}}

	_, err := New(testConfig(2), client).Translate(context.Background(), pipeline.JobContext{WorkDir: dir}, src)
	assert.Equal(t, models.ErrorKindTimeout, pipeline.Classify(models.StageTranslate, err).Kind)
}

func TestTranslator_MissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := New(testConfig(2), &fakeClient{}).Translate(context.Background(), pipeline.JobContext{WorkDir: dir}, filepath.Join(dir, "none.srt"))
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindStageFailure, pipeline.Classify(models.StageTranslate, err).Kind)
}

func TestTranslator_AgainstHTTPServer(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, 3)
	ts := apiServer(t, echoTranslations("译:"))

	cfg := testConfig(64)
	cfg.BaseURL = ts.URL
	cfg.APIKey = "k"
	out, err := NewFromConfig(cfg).Translate(context.Background(), pipeline.JobContext{WorkDir: dir}, src)
	require.NoError(t, err)

	translated, err := captions.Read(out)
	require.NoError(t, err)
	require.Len(t, translated.Items, 3)
	assert.Equal(t, "译:line 3", captions.Text(translated.Items[2]))
}
