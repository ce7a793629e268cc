package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioPublisher uploads the artifacts with minio-go and reports a
// presigned download link as the location.
type MinioPublisher struct {
	client     *minio.Client
	bucket     string
	prefix     string
	linkExpiry time.Duration
	timeout    time.Duration
}

func NewMinioPublisher(cfg config.MinioConfig, timeout time.Duration) (*MinioPublisher, error) {
	// minio-go expects host:port
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioPublisher{
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     cfg.KeyPrefix,
		linkExpiry: cfg.LinkExpiry,
		timeout:    timeout,
	}, nil
}

func (p *MinioPublisher) Name() string { return "minio" }

func (p *MinioPublisher) Publish(ctx context.Context, jc pipeline.JobContext, req pipeline.PublishRequest) (pipeline.PublishOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.EnsureBucket(ctx); err != nil {
		return pipeline.PublishOutcome{}, pipeline.Wrap(err, "preparing bucket %s", p.bucket)
	}

	keys := layout(p.prefix, jc, req)
	uploads := []struct{ key, path string }{
		{keys.Video, req.VideoPath},
		{keys.Captions, req.CaptionsPath},
	}
	for _, u := range uploads {
		_, err := p.client.FPutObject(ctx, p.bucket, u.key, u.path, minio.PutObjectOptions{ContentType: contentType(u.path)})
		if err != nil {
			return pipeline.PublishOutcome{}, pipeline.Wrap(fmt.Errorf("%w: %w", ErrUploadFailed, err), "uploading %s", u.key)
		}
	}

	meta, err := metadataJSON(jc, keys)
	if err != nil {
		return pipeline.PublishOutcome{}, pipeline.Wrap(err, "encoding metadata")
	}
	_, err = p.client.PutObject(ctx, p.bucket, keys.Metadata, bytes.NewReader(meta), int64(len(meta)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return pipeline.PublishOutcome{}, pipeline.Wrap(fmt.Errorf("%w: %w", ErrUploadFailed, err), "uploading metadata")
	}

	link, err := p.client.PresignedGetObject(ctx, p.bucket, keys.Video, p.linkExpiry, url.Values{})
	if err != nil {
		// The upload itself succeeded; report the object path instead.
		slog.Warn("presigning video link failed", "job_id", jc.JobID, "error", err)
		return pipeline.PublishOutcome{Published: true, Location: p.bucket + "/" + keys.Video}, nil
	}

	slog.Info("artifacts published", "job_id", jc.JobID, "target", p.Name(), "key", keys.Video)
	return pipeline.PublishOutcome{Published: true, Location: link.String()}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (p *MinioPublisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", p.bucket, err)
		}
	}
	return nil
}

// Ping checks the store is reachable.
func (p *MinioPublisher) Ping(ctx context.Context) error {
	_, err := p.client.BucketExists(ctx, p.bucket)
	return err
}

var _ pipeline.Publisher = (*MinioPublisher)(nil)
