// Package client submits driver status reports to a remote inventory
// endpoint, for fleets that aggregate hardware state centrally.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/openldm/ldm/internal/report"
)

const (
	reportsPath     = "/v1/reports"
	tokenHeader     = "X-LDM-Token"
	applicationJSON = "application/json"

	defaultRetryMax = 3
)

// Client posts status reports to an inventory endpoint.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

// Option configures the Client.
type Option func(*Client)

// WithToken authenticates submissions with the given token. An empty
// token sends no auth header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds each submission attempt, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// New creates a Client for the given endpoint base URL. Transient
// failures are retried with backoff before SubmitReport gives up.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("client: endpoint URL required")
	}

	c := &Client{
		baseURL: baseURL,
		http:    retryablehttp.NewClient(),
	}
	c.http.Logger = nil
	c.http.RetryMax = defaultRetryMax
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SubmitReport posts the report as JSON. Any non-2xx response is an
// error.
func (c *Client) SubmitReport(ctx context.Context, status *report.Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, c.baseURL+reportsPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", applicationJSON)
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submitting report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("report rejected: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
