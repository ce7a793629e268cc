package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
)

// WebhookPublisher hands the job to an external uploader over HTTP. The
// uploader reads the artifacts from the shared work dir.
type WebhookPublisher struct {
	url     string
	token   string
	timeout time.Duration
	client  *http.Client
}

func NewWebhookPublisher(cfg config.WebhookConfig, timeout time.Duration) *WebhookPublisher {
	return &WebhookPublisher{
		url:     cfg.URL,
		token:   cfg.Token,
		timeout: timeout,
		client:  &http.Client{},
	}
}

func (p *WebhookPublisher) Name() string { return "webhook" }

type webhookRequest struct {
	JobID        string   `json:"job_id"`
	SourceURL    string   `json:"source_url"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	VideoPath    string   `json:"video_path"`
	CaptionsPath string   `json:"captions_path"`
}

type webhookResponse struct {
	Published *bool  `json:"published"`
	Location  string `json:"location"`
	Message   string `json:"message"`
}

func (p *WebhookPublisher) Publish(ctx context.Context, jc pipeline.JobContext, req pipeline.PublishRequest) (pipeline.PublishOutcome, error) {
	tags := jc.Input.Tags
	if tags == nil {
		tags = []string{}
	}
	body, err := json.Marshal(webhookRequest{
		JobID:        jc.JobID.String(),
		SourceURL:    jc.Input.SourceURL,
		Title:        jc.Input.Title,
		Description:  jc.Input.Description,
		Tags:         tags,
		VideoPath:    req.VideoPath,
		CaptionsPath: req.CaptionsPath,
	})
	if err != nil {
		return pipeline.PublishOutcome{}, pipeline.Wrap(err, "encoding webhook request")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return pipeline.PublishOutcome{}, pipeline.Wrap(err, "building webhook request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return pipeline.PublishOutcome{}, pipeline.Wrap(err, "calling publish webhook")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pipeline.PublishOutcome{}, pipeline.Wrap(
			fmt.Errorf("%w: webhook returned status %d", ErrUploadFailed, resp.StatusCode),
			"publish webhook rejected the job: %s", strings.TrimSpace(string(raw)),
		)
	}

	outcome := pipeline.PublishOutcome{Published: true}
	var wr webhookResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &wr); err != nil {
			slog.Warn("publish webhook returned non-JSON body", "job_id", jc.JobID, "error", err)
		} else {
			if wr.Published != nil {
				outcome.Published = *wr.Published
			}
			outcome.Location = wr.Location
			outcome.Message = wr.Message
		}
	}

	slog.Info("publish webhook answered",
		"job_id", jc.JobID,
		"status", resp.StatusCode,
		"published", outcome.Published,
		"location", outcome.Location,
	)
	return outcome, nil
}

var _ pipeline.Publisher = (*WebhookPublisher)(nil)
