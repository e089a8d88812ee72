// Package fetch issues authenticated GET requests against the source site
// with a hard per-request timeout and bounded retry/backoff.
package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ssarchive/pkg/config"
	errs "ssarchive/pkg/errors"
	"ssarchive/pkg/logger"
	"ssarchive/pkg/retry"
)

// Client performs GET requests with default browser headers, the stored
// session cookie, and retry with linearly scaling backoff. Failures are
// classified into the pipeline error taxonomy.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	base       *url.URL
	allowHosts map[string]bool
	retrier    *retry.Retrier
	logger     logger.Logger
}

// NewClient creates a client from configuration. The allow-list covers the
// site hosts plus the configured asset hosts.
func NewClient(cfg *config.Config, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	base, err := url.Parse(cfg.Site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	allow := make(map[string]bool)
	for _, h := range cfg.Site.Hosts {
		allow[h] = true
	}
	for _, h := range cfg.Site.AssetHosts {
		allow[h] = true
	}

	headers := map[string]string{
		"User-Agent":      cfg.Site.UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if cfg.Site.Session != "" {
		headers["Cookie"] = cfg.Site.Session
	}

	retrier := retry.NewRetrier(&retry.Config{
		Backoff: &retry.LinearBackoff{BaseDelay: cfg.Fetch.RetryDelay},
		RetryIf: retryIf,
		Context: context.Background(),
		Logger:  log,
	}).WithMaxAttempts(cfg.Fetch.MaxAttempts)

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Fetch.Timeout},
		headers:    headers,
		base:       base,
		allowHosts: allow,
		retrier:    retrier,
		logger:     log,
	}, nil
}

// retryIf routes typed errors with a known HTTP status through the status
// code table; everything else falls back to the error type taxonomy.
func retryIf(err error) bool {
	var typed *errs.Error
	if errors.As(err, &typed) && typed.Code != 0 {
		return errs.IsRetryableStatusCode(typed.Code)
	}
	return retry.DefaultRetryIf(err)
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// BaseURL returns the configured site base URL.
func (c *Client) BaseURL() *url.URL {
	return c.base
}

// Abs resolves a possibly-relative reference against the site base URL.
// Unparseable references are returned unchanged.
func (c *Client) Abs(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

// AllowedHost reports whether the URL's host is on the allow-list. Relative
// references resolve to the site host and are allowed.
func (c *Client) AllowedHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	resolved := c.base.ResolveReference(u)
	return c.allowHosts[resolved.Host]
}

// doRequest performs a single HTTP GET with the configured headers
func (c *Client) doRequest(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Abs(rawURL), nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// checkResponseStatus classifies non-2xx responses into typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusNotFound:
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		return &errs.Error{
			Type:    errs.ErrorTypeServer,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}

// fetchOnce performs a single attempt and returns the response body
func (c *Client) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.doRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return data, nil
}

// fetch runs fetchOnce under the client's retrier, bound to the caller's
// context so cancellation aborts between attempts.
func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	err := c.retrier.WithContext(ctx).Do(func() error {
		var ferr error
		data, ferr = c.fetchOnce(ctx, rawURL)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Text fetches a URL and returns the response body as text. Failed attempts
// are retried up to the configured cap; the last error propagates.
func (c *Client) Text(ctx context.Context, rawURL string) (string, error) {
	data, err := c.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Binary fetches a URL and returns the raw response bytes, retried like Text.
func (c *Client) Binary(ctx context.Context, rawURL string) ([]byte, error) {
	return c.fetch(ctx, rawURL)
}

// DataURI converts a binary payload into a base64 data URI suitable for
// offline embedding. The content type is sniffed from the payload.
func DataURI(data []byte) string {
	contentType := http.DetectContentType(data)
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
}
