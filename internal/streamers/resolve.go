package streamers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Resolver follows redirects of a radio URL and returns the final location.
type Resolver struct {
	client *retryablehttp.Client
}

// NewResolver builds a resolver with a small retry budget.
func NewResolver(timeout time.Duration, logger *slog.Logger) *Resolver {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	if logger != nil {
		client.Logger = logger
	}
	return &Resolver{client: client}
}

// Resolve requests rawURL and returns the URL of the final response. The
// body is not read; radio streams never end.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid radio url: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("radio url unreachable: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("radio url returned %s", resp.Status)
	}
	return resp.Request.URL.String(), nil
}
