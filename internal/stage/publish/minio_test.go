package publish_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/stage/publish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupMinio spins up a MinIO container and returns its host:port endpoint.
func setupMinio(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:RELEASE.2024-01-16T16-07-38Z",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)
	return host + ":" + port.Port()
}

func minioConfig(endpoint string) config.MinioConfig {
	return config.MinioConfig{
		Endpoint:   "http://" + endpoint,
		AccessKey:  "minioadmin",
		SecretKey:  "minioadmin",
		Bucket:     "subrelay-test",
		KeyPrefix:  "jobs",
		LinkExpiry: time.Hour,
	}
}

func TestMinioPublisher_UploadsAndPresigns(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	endpoint := setupMinio(t)
	jc, req := artifacts(t)

	p, err := publish.NewMinioPublisher(minioConfig(endpoint), time.Minute)
	require.NoError(t, err)

	out, err := p.Publish(context.Background(), jc, req)
	require.NoError(t, err)
	assert.True(t, out.Published)
	assert.Contains(t, out.Location, "/subrelay-test/jobs/"+jc.JobID.String()+"/video.mp4")

	resp, err := http.Get(out.Location)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(body))
}

func TestMinioPublisher_SecondJobReusesBucket(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	endpoint := setupMinio(t)
	p, err := publish.NewMinioPublisher(minioConfig(endpoint), time.Minute)
	require.NoError(t, err)

	require.NoError(t, p.EnsureBucket(context.Background()))
	require.NoError(t, p.EnsureBucket(context.Background()))
	assert.NoError(t, p.Ping(context.Background()))
}

func TestS3Publisher_AgainstMinio(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	endpoint := setupMinio(t)
	mp, err := publish.NewMinioPublisher(minioConfig(endpoint), time.Minute)
	require.NoError(t, err)
	require.NoError(t, mp.EnsureBucket(context.Background()))

	jc, req := artifacts(t)
	p := publish.NewS3Publisher(config.S3Config{
		Endpoint:     "http://" + endpoint,
		Region:       "us-east-1",
		Bucket:       "subrelay-test",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UsePathStyle: true,
		KeyPrefix:    "s3",
	}, time.Minute)

	out, err := p.Publish(context.Background(), jc, req)
	require.NoError(t, err)
	assert.Equal(t, "s3://subrelay-test/s3/"+jc.JobID.String()+"/video.mp4", out.Location)
}
