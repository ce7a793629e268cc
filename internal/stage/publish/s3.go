package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
)

// S3Publisher uploads the artifacts to an S3-compatible bucket with aws-sdk-go-v2.
type S3Publisher struct {
	client  *s3.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

func NewS3Publisher(cfg config.S3Config, timeout time.Duration) *S3Publisher {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  awscreds.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	// Custom endpoint for MinIO and other non-AWS stores.
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &S3Publisher{
		client:  s3.New(opts),
		bucket:  cfg.Bucket,
		prefix:  cfg.KeyPrefix,
		timeout: timeout,
	}
}

func (p *S3Publisher) Name() string { return "s3" }

func (p *S3Publisher) Publish(ctx context.Context, jc pipeline.JobContext, req pipeline.PublishRequest) (pipeline.PublishOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	keys := layout(p.prefix, jc, req)
	if err := p.putFile(ctx, keys.Video, req.VideoPath); err != nil {
		return pipeline.PublishOutcome{}, pipeline.Wrap(err, "uploading video to s3://%s/%s", p.bucket, keys.Video)
	}
	if err := p.putFile(ctx, keys.Captions, req.CaptionsPath); err != nil {
		return pipeline.PublishOutcome{}, pipeline.Wrap(err, "uploading captions to s3://%s/%s", p.bucket, keys.Captions)
	}

	meta, err := metadataJSON(jc, keys)
	if err != nil {
		return pipeline.PublishOutcome{}, pipeline.Wrap(err, "encoding metadata")
	}
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(keys.Metadata),
		Body:        bytes.NewReader(meta),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return pipeline.PublishOutcome{}, pipeline.Wrap(fmt.Errorf("%w: %w", ErrUploadFailed, err), "uploading metadata")
	}

	location := fmt.Sprintf("s3://%s/%s", p.bucket, keys.Video)
	slog.Info("artifacts published", "job_id", jc.JobID, "target", p.Name(), "location", location)
	return pipeline.PublishOutcome{Published: true, Location: location}, nil
}

func (p *S3Publisher) putFile(ctx context.Context, key, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(path)),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return nil
}

var _ pipeline.Publisher = (*S3Publisher)(nil)
