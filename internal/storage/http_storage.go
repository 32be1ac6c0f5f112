package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/live-ocr-go/internal/logger"
	"github.com/anime-shed/live-ocr-go/pkg/validation"
)

// BlobFetcher retrieves an opaque binary artifact (model or runtime module).
type BlobFetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// HTTPBlobFetcher fetches artifacts over HTTP with retries on transient failures
type HTTPBlobFetcher struct {
	client     *http.Client
	baseURL    string
	attempts   uint
	retryDelay time.Duration
	maxBytes   int64
	validator  *validation.URLValidator
}

// HTTPOption customises an HTTPBlobFetcher.
type HTTPOption func(*HTTPBlobFetcher)

// WithAttempts sets the total number of attempts per artifact.
func WithAttempts(n int) HTTPOption {
	return func(h *HTTPBlobFetcher) {
		if n > 0 {
			h.attempts = uint(n)
		}
	}
}

// WithRetryDelay sets the base delay; attempt n waits n times this value.
func WithRetryDelay(d time.Duration) HTTPOption {
	return func(h *HTTPBlobFetcher) { h.retryDelay = d }
}

// WithMaxBytes bounds the accepted artifact size.
func WithMaxBytes(n int64) HTTPOption {
	return func(h *HTTPBlobFetcher) { h.maxBytes = n }
}

// WithAllowedHosts restricts fetches to the given host names.
func WithAllowedHosts(hosts ...string) HTTPOption {
	return func(h *HTTPBlobFetcher) {
		if len(hosts) > 0 {
			h.validator = validation.NewURLValidatorWithOptions([]string{"http", "https"}, hosts)
		}
	}
}

// WithHTTPClient replaces the default tuned client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPBlobFetcher) { h.client = c }
}

// NewHTTPBlobFetcher creates a fetcher resolving relative locations against baseURL.
func NewHTTPBlobFetcher(baseURL string, opts ...HTTPOption) *HTTPBlobFetcher {
	// Few large downloads from a handful of hosts
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	h := &HTTPBlobFetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		attempts:   3,
		retryDelay: time.Second,
		maxBytes:   512 * 1024 * 1024,
		validator:  validation.NewURLValidator(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Fetch downloads the artifact. 4xx responses fail immediately; network
// errors and 5xx responses are retried with a linearly growing delay.
func (h *HTTPBlobFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	target, err := h.resolve(location)
	if err != nil {
		return nil, err
	}

	data, err := retry.DoWithData(
		func() ([]byte, error) {
			return h.fetchOnce(ctx, target)
		},
		retry.Context(ctx),
		retry.Attempts(h.attempts),
		retry.Delay(h.retryDelay),
		retry.DelayType(func(n uint, _ error, cfg *retry.Config) time.Duration {
			return time.Duration(n) * h.retryDelay
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.WithFields(logrus.Fields{
				"url":     target,
				"attempt": n + 1,
				"error":   err.Error(),
			}).Warn("Artifact fetch failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", target, h.attempts, err)
	}
	return data, nil
}

func (h *HTTPBlobFetcher) fetchOnce(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("invalid URL: %w", err))
	}
	req.Header.Set("Accept", "application/octet-stream, */*")
	req.Header.Set("User-Agent", "live-ocr-go/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, retry.Unrecoverable(fmt.Errorf("client error: status code %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, retry.Unrecoverable(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, retry.Unrecoverable(fmt.Errorf("artifact exceeds %d bytes", h.maxBytes))
	}
	return data, nil
}

func (h *HTTPBlobFetcher) resolve(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("empty artifact location")
	}
	target := location
	if !validation.IsRemote(location) {
		if u, err := url.Parse(location); err == nil && u.IsAbs() {
			return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		if h.baseURL == "" {
			return "", fmt.Errorf("relative location %q requires a base URL", location)
		}
		target = h.baseURL + "/" + strings.TrimLeft(location, "/")
	}
	if err := h.validator.ValidateLocation(target); err != nil {
		return "", fmt.Errorf("invalid artifact location %q: %w", target, err)
	}
	return target, nil
}
