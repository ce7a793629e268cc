package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/subrelay/internal/cache"
	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/jobstate"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
	"github.com/kiranshivaraju/subrelay/internal/stage/mock"
	"github.com/kiranshivaraju/subrelay/internal/store"
	"github.com/kiranshivaraju/subrelay/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── mock store ──────────────────────────────────────────────────────────────

type testStore struct {
	pingErr error
	current *models.JobView
	loadErr error
}

func (s *testStore) Ping(_ context.Context) error { return s.pingErr }
func (s *testStore) SaveCurrentJob(_ context.Context, v models.JobView) error {
	s.current = &v
	return nil
}
func (s *testStore) LoadCurrentJob(_ context.Context) (models.JobView, error) {
	if s.loadErr != nil {
		return models.JobView{}, s.loadErr
	}
	if s.current == nil {
		return models.JobView{}, store.ErrNotFound
	}
	return *s.current, nil
}

var _ store.Store = (*testStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type testCache struct {
	pingErr error
	slot    []byte
}

func (c *testCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if key == cache.SlotKey() {
		c.slot = value
	}
	return nil
}
func (c *testCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if key == cache.SlotKey() && c.slot != nil {
		return c.slot, true, nil
	}
	return nil, false, nil
}
func (c *testCache) Delete(_ context.Context, _ string) error                          { return nil }
func (c *testCache) Ping(_ context.Context) error                                      { return c.pingErr }
func (c *testCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ []byte, _ time.Duration) error {
	return nil
}
func (c *testCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ cache.Cache = (*testCache)(nil)

func newTestService(t *testing.T) *pipeline.Service {
	t.Helper()
	state := jobstate.New()
	return pipeline.NewService(state, pipeline.NewRunner(state, mock.NewSet().Stages(), t.TempDir()), pipeline.Defaults{})
}

func getHealth(t *testing.T, h http.HandlerFunc) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	code, body := getHealth(t, healthHandler(newTestService(t), &testStore{}, &testCache{}))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["is_processing"])
	services := body["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
}

func TestHealthHandler_BackendsDisabled(t *testing.T) {
	code, body := getHealth(t, healthHandler(newTestService(t), nil, nil))

	assert.Equal(t, http.StatusOK, code)
	services := body["services"].(map[string]any)
	assert.Equal(t, "disabled", services["database"])
	assert.Equal(t, "disabled", services["cache"])
}

func TestHealthHandler_DatabaseDegraded(t *testing.T) {
	code, body := getHealth(t, healthHandler(newTestService(t),
		&testStore{pingErr: errors.New("connection refused")}, &testCache{}))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
	services := body["services"].(map[string]any)
	assert.Equal(t, "degraded", services["database"])
	assert.Equal(t, "ok", services["cache"])
}

func TestHealthHandler_CacheDegraded(t *testing.T) {
	code, _ := getHealth(t, healthHandler(newTestService(t), nil, &testCache{pingErr: errors.New("redis down")}))

	assert.Equal(t, http.StatusServiceUnavailable, code)
}

// ─── restore tests ──────────────────────────────────────────────────────────

func TestRestoreJob_RunningBecomesFailed(t *testing.T) {
	prev := models.JobView{
		JobID:      uuid.New(),
		Input:      models.JobInput{SourceURL: "https://youtu.be/x"},
		Status:     models.JobStatusRunning,
		StageIndex: 2,
		Progress:   33,
	}
	state := jobstate.New()
	require.NoError(t, restoreJob(context.Background(), state, &testStore{current: &prev}))

	snap := state.Snapshot()
	assert.Equal(t, prev.JobID, snap.JobID)
	assert.Equal(t, models.JobStatusFailed, snap.Status)
	require.NotNil(t, snap.Error)
	assert.Equal(t, models.ErrorKindInternal, snap.Error.Kind)
	assert.Equal(t, 33, snap.Progress)
}

func TestRestoreJob_NothingSaved(t *testing.T) {
	state := jobstate.New()
	require.NoError(t, restoreJob(context.Background(), state, &testStore{}))
	assert.True(t, state.Snapshot().Empty())
}

func TestRestoreJob_LoadError(t *testing.T) {
	err := restoreJob(context.Background(), jobstate.New(), &testStore{loadErr: errors.New("relation does not exist")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load current job")
}

func TestRestoreJob_FromRedisMirror(t *testing.T) {
	prev := models.JobView{
		JobID:      uuid.New(),
		Input:      models.JobInput{SourceURL: "https://youtu.be/x"},
		Status:     models.JobStatusRunning,
		StageIndex: 4,
		Progress:   66,
	}
	tc := &testCache{}
	cache.NewStatusMirror(tc, time.Hour).Observe(prev)

	state := jobstate.New()
	require.NoError(t, restoreJob(context.Background(), state, cache.NewStatusMirror(tc, time.Hour)))

	snap := state.Snapshot()
	assert.Equal(t, prev.JobID, snap.JobID)
	assert.Equal(t, models.JobStatusFailed, snap.Status)
	require.NotNil(t, snap.Error)
	assert.Equal(t, models.StageMerge, snap.Error.Stage)
	assert.Equal(t, "interrupted by restart", snap.Error.Message)
}

func TestRestoreJob_EmptyRedisMirror(t *testing.T) {
	state := jobstate.New()
	require.NoError(t, restoreJob(context.Background(), state, cache.NewStatusMirror(&testCache{}, time.Hour)))
	assert.True(t, state.Snapshot().Empty())
}

// ─── stage wiring tests ─────────────────────────────────────────────────────

func TestBuildStages_AllConfigured(t *testing.T) {
	stages, err := buildStages(&config.Config{
		Translate: config.TranslateConfig{BaseURL: "http://localhost", APIKey: "k", BatchSize: 10, Timeout: time.Minute},
		Publish:   config.PublishConfig{Target: "none", Timeout: time.Minute},
	})
	require.NoError(t, err)
	assert.Equal(t, "none", stages.Publish.Name())
}

func TestBuildStages_UnknownPublisher(t *testing.T) {
	_, err := buildStages(&config.Config{Publish: config.PublishConfig{Target: "ftp"}})
	require.Error(t, err)
}

// ─── run() config validation tests ──────────────────────────────────────────

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WHISPER_MODEL", "/models/ggml-base.bin")
	t.Setenv("TRANSLATE_API_KEY", "test-key")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("PUBLISH_TARGET", "none")
}

func TestRun_FailsOnMissingConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WHISPER_MODEL", "")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnUnknownPublishTarget(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PUBLISH_TARGET", "bilibili")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "not-a-valid-url")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

func TestRun_FailsOnUnreachableRedis(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_URL", "redis://127.0.0.1:1")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

// ─── log level ──────────────────────────────────────────────────────────────

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}
