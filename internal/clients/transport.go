package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const defaultCatalogURL = "http://localhost:8000/api"

// Config configures a catalog API client
type Config struct {
	BaseURL string
	// TrailingSlash appends "/" to every path, as Django-style servers expect
	TrailingSlash bool
	Timeout       time.Duration
	// RateLimit is the maximum requests per second; 0 disables throttling
	RateLimit    float64
	Interceptors []RequestInterceptor
	Logger       *logrus.Entry
	HTTPClient   *http.Client
}

// transport is the shared request plumbing of the catalog clients
type transport struct {
	baseURL       string
	trailingSlash bool
	httpClient    *http.Client
	limiter       *rate.Limiter
	interceptors  []RequestInterceptor
	logger        *logrus.Entry
}

func newTransport(cfg Config, component string) *transport {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("CATALOG_API_URL")
	}
	if baseURL == "" {
		baseURL = defaultCatalogURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &transport{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		trailingSlash: cfg.TrailingSlash,
		httpClient:    httpClient,
		limiter:       limiter,
		interceptors:  cfg.Interceptors,
		logger:        logger.WithField("component", component),
	}
}

// endpoint joins escaped path segments onto the base URL
func (t *transport) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := t.baseURL + "/" + strings.Join(escaped, "/")
	if t.trailingSlash {
		u += "/"
	}
	return u
}

// do sends one request and returns the response body of a 2xx response.
// Any other outcome is an *APIError.
func (t *transport) do(ctx context.Context, op, method, endpoint string, body io.Reader, contentType string) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &APIError{Op: op, Kind: KindNetwork, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, intercept := range t.interceptors {
		if err := intercept(req); err != nil {
			return nil, fmt.Errorf("%s: request interceptor: %w", op, err)
		}
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"method": method,
			"url":    endpoint,
		}).WithError(err).Warn("catalog request failed")
		return nil, &APIError{Op: op, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: op, Kind: KindNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	entry := t.logger.WithFields(logrus.Fields{
		"method":   method,
		"url":      endpoint,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newStatusError(op, resp.StatusCode, respBody)
		entry.WithField("kind", apiErr.Kind).Warn(apiErr.Message)
		return nil, apiErr
	}
	entry.Debug("catalog request completed")
	return respBody, nil
}

// decodeList extracts a JSON array from a bare array or an envelope keyed by
// one of keys.
func decodeList(body []byte, keys ...string) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage("[]"), nil
	}
	if body[0] == '[' {
		return body, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected response body: %w", err)
	}
	for _, key := range keys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			return raw, nil
		}
		if string(raw) == "null" {
			return json.RawMessage("[]"), nil
		}
	}
	return nil, fmt.Errorf("response carries no %s list", strings.Join(keys, "/"))
}
