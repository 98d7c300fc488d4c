package testscene

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/episodecam/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request bound to ctx.
func (c *HTTPClient) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()
	return io.ReadAll(resp.Body)
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := newHTTPClient(config.Timeout).Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// fetchEpisodes reads up to limit episodes that detected motion.
func fetchEpisodes(ctx context.Context, client *HTTPClient, baseURL string, limit int) (EpisodesResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("motion_only", "true")

	resp, err := client.Get(ctx, baseURL+"/api/episodes?"+q.Encode())
	if err != nil {
		return EpisodesResponse{}, fmt.Errorf("failed to fetch episodes: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return EpisodesResponse{}, fmt.Errorf("failed to read episodes: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return EpisodesResponse{}, fmt.Errorf("episodes request failed with status %d: %s", resp.StatusCode, body)
	}

	var out EpisodesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return EpisodesResponse{}, fmt.Errorf("failed to decode episodes: %w", err)
	}
	return out, nil
}
