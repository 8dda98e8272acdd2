package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/libsync/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultRequestsPerSecond = 10
	defaultTimeout           = 30 * time.Second
	userAgent                = "libsync/1.0"
)

// apiClient performs rate limited JSON requests against one base URL.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	header     http.Header
	logger     *log.Logger
}

func newAPIClient(baseURL string, opts Options) *apiClient {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		header:     make(http.Header),
		logger:     logger,
	}
}

// doRequest sends body (JSON encoded when non-nil) and decodes a JSON response into result when non-nil.
func (c *apiClient) doRequest(ctx context.Context, method, endpoint string, query url.Values, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	apiURL := c.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("request", "method", method, "endpoint", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", shared.ErrServiceUnavailable, method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(detail))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %w: %s %s: status %d", shared.ErrServiceUnavailable, shared.ErrAuthFailed, method, endpoint, resp.StatusCode)
		}
		if msg != "" {
			return fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrServiceUnavailable, method, endpoint, resp.StatusCode, msg)
		}
		return fmt.Errorf("%w: %s %s: status %d", shared.ErrServiceUnavailable, method, endpoint, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode %s response: %v", shared.ErrServiceUnavailable, endpoint, err)
		}
	}
	return nil
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
