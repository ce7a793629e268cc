package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/subrelay/internal/cache"
	"github.com/kiranshivaraju/subrelay/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCache is an in-memory Cache for unit tests.
type memCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	setErr error
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) Ping(context.Context) error { return nil }

func (m *memCache) SetJobStatus(ctx context.Context, jobID uuid.UUID, payload []byte, ttl time.Duration) error {
	if err := m.Set(ctx, cache.JobStatusKey(jobID), payload, ttl); err != nil {
		return err
	}
	return m.Set(ctx, cache.CurrentJobKey(), []byte(jobID.String()), ttl)
}

func (m *memCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("not implemented")
}

var _ cache.Cache = (*memCache)(nil)

func TestStatusMirror_WritesStatusBody(t *testing.T) {
	mc := newMemCache()
	mirror := cache.NewStatusMirror(mc, time.Hour)
	jobID := uuid.New()

	mirror.Observe(models.JobView{
		JobID:      jobID,
		Status:     models.JobStatusRunning,
		StageIndex: 2,
		Progress:   33,
	})

	raw, found, err := mc.Get(context.Background(), cache.JobStatusKey(jobID))
	require.NoError(t, err)
	require.True(t, found)

	var body models.StatusResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.True(t, body.IsProcessing)
	assert.Equal(t, 2, body.CurrentStep)
	assert.Equal(t, 33, body.Progress)
	assert.Equal(t, "transcribe", body.StageName)
	assert.Equal(t, time.Hour, mc.ttls[cache.JobStatusKey(jobID)])

	current, _, _ := mc.Get(context.Background(), cache.CurrentJobKey())
	assert.Equal(t, jobID.String(), string(current))
}

func TestStatusMirror_SkipsEmptyView(t *testing.T) {
	mc := newMemCache()
	cache.NewStatusMirror(mc, time.Hour).Observe(models.JobView{})
	assert.Empty(t, mc.data)
}

func TestStatusMirror_SwallowsErrors(t *testing.T) {
	mc := newMemCache()
	mc.setErr = errors.New("connection refused")

	assert.NotPanics(t, func() {
		cache.NewStatusMirror(mc, time.Hour).Observe(models.JobView{JobID: uuid.New(), Status: models.JobStatusRunning})
	})
}

func TestStatusMirror_LoadCurrentJob(t *testing.T) {
	mc := newMemCache()
	mirror := cache.NewStatusMirror(mc, time.Hour)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := models.JobView{
		JobID:      uuid.New(),
		Input:      models.JobInput{SourceURL: "https://example.com/v1", Title: "T", Tags: []string{"a"}},
		Status:     models.JobStatusFailed,
		StageIndex: 3,
		Progress:   50,
		Error:      &models.JobError{Kind: models.ErrorKindTimeout, Stage: models.StageTranslate, Message: "too slow"},
		CreatedAt:  created,
		UpdatedAt:  created.Add(time.Minute),
	}
	mirror.Observe(want)

	got, err := cache.NewStatusMirror(mc, time.Hour).LoadCurrentJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, time.Hour, mc.ttls[cache.SlotKey()])
}

func TestStatusMirror_LoadCurrentJob_NotFound(t *testing.T) {
	_, err := cache.NewStatusMirror(newMemCache(), time.Hour).LoadCurrentJob(context.Background())
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStatusMirror_LoadCurrentJob_Corrupt(t *testing.T) {
	mc := newMemCache()
	require.NoError(t, mc.Set(context.Background(), cache.SlotKey(), []byte("{not json"), time.Hour))

	_, err := cache.NewStatusMirror(mc, time.Hour).LoadCurrentJob(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrNotFound)
}

func TestStatusMirror_ClearsSupersededJob(t *testing.T) {
	mc := newMemCache()
	mirror := cache.NewStatusMirror(mc, time.Hour)
	first, second := uuid.New(), uuid.New()

	mirror.Observe(models.JobView{JobID: first, Status: models.JobStatusRunning})
	mirror.Observe(models.JobView{JobID: first, Status: models.JobStatusSucceeded, Progress: 100, Result: &models.Result{}})
	_, found, _ := mc.Get(context.Background(), cache.JobStatusKey(first))
	require.True(t, found)

	mirror.Observe(models.JobView{JobID: second, Status: models.JobStatusRunning})

	_, found, _ = mc.Get(context.Background(), cache.JobStatusKey(first))
	assert.False(t, found)
	_, found, _ = mc.Get(context.Background(), cache.JobStatusKey(second))
	assert.True(t, found)
	current, _, _ := mc.Get(context.Background(), cache.CurrentJobKey())
	assert.Equal(t, second.String(), string(current))
}
