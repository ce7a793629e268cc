package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors for translation API failures.
var (
	ErrAPIUnreachable  = errors.New("translation api unreachable")
	ErrAPIRejected     = errors.New("translation api rejected request")
	ErrAPITimeout      = errors.New("translation api timeout")
	ErrInvalidResponse = errors.New("translation api returned invalid response")
	ErrCountMismatch   = errors.New("translation count does not match input")
)

// Client translates batches of plain-text segments.
type Client interface {
	Translate(ctx context.Context, texts []string, target string) ([]string, error)
}

// HTTPClient implements Client against the Google Cloud Translation v2 REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a new translation HTTP client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Translate(ctx context.Context, texts []string, target string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	body, err := json.Marshal(translateRequest{Q: texts, Target: target, Format: "text"})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/language/translate/v2?%s", c.baseURL, url.Values{"key": {c.apiKey}}.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrAPIRejected, resp.StatusCode, apiMessage(resp.Body))
	}

	var tr translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(tr.Data.Translations) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrCountMismatch, len(texts), len(tr.Data.Translations))
	}

	out := make([]string, len(tr.Data.Translations))
	for i, t := range tr.Data.Translations {
		out[i] = t.TranslatedText
	}
	return out, nil
}

// apiMessage extracts the error message from a non-200 response body.
func apiMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error.Message != "" {
		return er.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

// classifyError maps transport-level errors to sentinel errors. Deadline
// expiry stays visible to errors.Is so the stage reports a timeout.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrAPITimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrAPITimeout, context.DeadlineExceeded)
	}

	return fmt.Errorf("%w: %v", ErrAPIUnreachable, err)
}

// --- API wire types ---

type translateRequest struct {
	Q      []string `json:"q"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage,omitempty"`
		} `json:"translations"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
