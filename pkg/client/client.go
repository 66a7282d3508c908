// Package client is the Go SDK for the PPI-Intelligence prediction server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
	"github.com/turtacn/PPI-Intelligence/pkg/types/common"
)

const Version = "0.1.0"

// Logger defines the logging interface used by the Client
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

// Client talks to one prediction server over HTTP.  It is safe for
// concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	apiKey       string
	userAgent    string
	logger       Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id"`

	retryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("ppi: %s (HTTP %d): %s [request_id=%s]", e.Code, e.StatusCode, msg, e.RequestID)
}

func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

func (e *APIError) IsServerError() bool { return e.StatusCode >= 500 && e.StatusCode < 600 }

// IsModelUnavailable reports whether the server had no model loaded.
func (e *APIError) IsModelUnavailable() bool {
	return errors.ErrorCode(e.Code) == errors.ErrCodeModelUnavailable
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.InvalidParam("client: baseURL is required")
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.InvalidParam("client: invalid baseURL").WithDetail(err.Error())
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, errors.InvalidParam("client: baseURL scheme must be http or https")
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    fmt.Sprintf("ppi-go-sdk/%s", Version),
		logger:       &noopLogger{},
		retryMax:     3,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL is the normalized server address.
func (c *Client) BaseURL() string { return c.baseURL }

// ─────────────────────────────────────────────────────────────────────────────
// Endpoints
// ─────────────────────────────────────────────────────────────────────────────

// Ping reports whether the server has a model loaded.  A reachable server
// without a model answers false with a nil error.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	var body struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, http.MethodGet, "/ping", nil, &body)
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusServiceUnavailable {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return body.Status == "healthy", nil
}

// Invoke scores one accession pair through the flat /invocations endpoint.
func (c *Client) Invoke(ctx context.Context, proteinA, proteinB string) (*common.InvocationResponse, error) {
	var out common.InvocationResponse
	req := common.PredictionRequest{ProteinA: proteinA, ProteinB: proteinB}
	if err := c.do(ctx, http.MethodPost, "/invocations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Predict scores one pair.  Either request form is accepted.
func (c *Client) Predict(ctx context.Context, req common.PredictionRequest) (*common.PredictionResult, error) {
	var env common.APIResponse[*common.PredictionResult]
	if err := c.do(ctx, http.MethodPost, "/api/v1/predictions", req, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// PredictBatch scores several pairs; per-pair failures are reported in the
// response rather than as an error.
func (c *Client) PredictBatch(ctx context.Context, pairs []common.PredictionRequest) (*common.BatchPredictionResponse, error) {
	var env common.APIResponse[*common.BatchPredictionResponse]
	req := common.BatchPredictionRequest{Pairs: pairs}
	if err := c.do(ctx, http.MethodPost, "/api/v1/predictions/batch", req, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Model describes the served checkpoint.
func (c *Client) Model(ctx context.Context) (*common.ModelInfo, error) {
	var env common.APIResponse[*common.ModelInfo]
	if err := c.do(ctx, http.MethodGet, "/api/v1/model", nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ReloadModel asks the server to load the newest checkpoint.
func (c *Client) ReloadModel(ctx context.Context) (*common.ModelInfo, error) {
	var env common.APIResponse[*common.ModelInfo]
	if err := c.do(ctx, http.MethodPost, "/api/v1/model/reload", nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Ready fetches the readiness probe.  A not-ready server still returns its
// body alongside the error.
func (c *Client) Ready(ctx context.Context) (*common.HealthResponse, error) {
	var out common.HealthResponse
	err := c.doOnce(ctx, http.MethodGet, "/readyz", nil, &out, true)
	return &out, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Transport
// ─────────────────────────────────────────────────────────────────────────────

// do performs a request with retry.  Every endpoint is idempotent, so
// transport errors and 5xx responses are retried.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			wait := c.calculateBackoff(attempt)
			if apiErr, ok := lastErr.(*APIError); ok && apiErr.IsRateLimited() && apiErr.retryAfter > 0 {
				wait = apiErr.retryAfter
			}
			c.logger.Debugf("Retry attempt %d after %v", attempt, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := c.doOnce(ctx, method, path, body, result, false)
		if err == nil {
			return nil
		}
		lastErr = err
		if !c.shouldRetry(err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, result interface{}, decodeErrorBody bool) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.New().String()
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Errorf("Request failed: %v", err)
		return err
	}
	defer resp.Body.Close()
	c.logger.Debugf("%s %s %d (%v)", method, path, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if id := resp.Header.Get("X-Request-ID"); id != "" {
		requestID = id
	}

	if resp.StatusCode >= 400 {
		apiErr := decodeAPIError(resp, respBody, requestID)
		if decodeErrorBody && result != nil && len(respBody) > 0 {
			_ = json.Unmarshal(respBody, result)
		}
		return apiErr
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response, body []byte, requestID string) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: requestID}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if seconds, err := strconv.Atoi(s); err == nil {
			apiErr.retryAfter = time.Duration(seconds) * time.Second
		}
	}
	var env common.APIResponse[json.RawMessage]
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Detail = env.Error.Detail
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func (c *Client) shouldRetry(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return true
	}
	return apiErr.IsServerError() && apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.IsRateLimited()
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if backoff > c.retryWaitMax {
		backoff = c.retryWaitMax
	}
	if backoff < 4 {
		return backoff
	}
	return backoff + time.Duration(rand.Int63n(int64(backoff/4)))
}

//Personal.AI order the ending
