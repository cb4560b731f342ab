package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/skrblai/percy/internal/domain"
)

// HTTPRemote posts context upserts to the remote profile service as JSON.
type HTTPRemote struct {
	url    string
	token  string
	client *retryablehttp.Client
}

// NewHTTPRemote creates a remote store client for the given upsert endpoint.
func NewHTTPRemote(url, token string) *HTTPRemote {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil // the syncer logs outcomes; retry noise is not useful

	return &HTTPRemote{
		url:    url,
		token:  token,
		client: client,
	}
}

// UpsertContext posts the context document keyed by identity.
func (r *HTTPRemote) UpsertContext(ctx context.Context, sc *domain.SessionContext) error {
	body, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting context upsert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote upsert returned status %d", resp.StatusCode)
	}
	return nil
}
