package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
	"github.com/turtacn/PPI-Intelligence/pkg/types/common"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]Option{WithRetryWait(time.Millisecond, 2*time.Millisecond)}, opts...)
	c, err := NewClient(server.URL, opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func envelope[T any](data T) common.APIResponse[T] {
	return common.APIResponse[T]{Success: true, Data: data, Timestamp: common.Now()}
}

func errorEnvelope(code errors.ErrorCode, msg, detail string) common.APIResponse[any] {
	return common.APIResponse[any]{Error: &common.ErrorDetail{Code: string(code), Message: msg, Detail: detail}}
}

// ─────────────────────────────────────────────────────────────────────────────
// Constructor
// ─────────────────────────────────────────────────────────────────────────────

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://ppi.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "http://ppi.example.com", c.BaseURL())
	assert.Equal(t, 3, c.retryMax)
	assert.Contains(t, c.userAgent, "ppi-go-sdk/")

	for _, bad := range []string{"", "ftp://host", "no-scheme"} {
		_, err := NewClient(bad)
		assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest), bad)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Endpoints
// ─────────────────────────────────────────────────────────────────────────────

func TestPing(t *testing.T) {
	ready := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		if ready {
			writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	})

	ok, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	ready = true
	ok, err = c.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInvoke(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/invocations", r.URL.Path)
		var req common.PredictionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, common.InvocationResponse{
			PredictionResult:       common.PredictionResult{ProteinA: req.ProteinA, ProteinB: req.ProteinB, Probability: 0.8, Interacts: true},
			InteractionProbability: 0.8,
		})
	})

	out, err := c.Invoke(context.Background(), "P12345", "Q67890")
	require.NoError(t, err)
	assert.Equal(t, "P12345", out.ProteinA)
	assert.Equal(t, "Q67890", out.ProteinB)
	assert.InDelta(t, 0.8, out.InteractionProbability, 1e-9)
}

func TestPredict_SendsHeadersAndDecodesEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/predictions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req common.PredictionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.A)
		assert.Equal(t, "MKV", req.A.Sequence)
		writeJSON(w, http.StatusOK, envelope(&common.PredictionResult{ProteinA: "seq:abc", ProteinB: req.B.Accession, Confidence: "high"}))
	}, WithAPIKey("k"))

	res, err := c.Predict(context.Background(), common.PredictionRequest{
		A: &common.ProteinInput{Sequence: "MKV"},
		B: &common.ProteinInput{Accession: "P1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "P1", res.ProteinB)
	assert.Equal(t, "high", res.Confidence)
}

func TestPredictBatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/predictions/batch", r.URL.Path)
		var req common.BatchPredictionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := &common.BatchPredictionResponse{}
		for i := range req.Pairs {
			resp.Results = append(resp.Results, common.BatchItemResult{Index: i, Result: &common.PredictionResult{}})
			resp.Succeeded++
		}
		writeJSON(w, http.StatusOK, envelope(resp))
	})

	out, err := c.PredictBatch(context.Background(), []common.PredictionRequest{
		{ProteinA: "P1", ProteinB: "Q1"},
		{ProteinA: "P2", ProteinB: "Q2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Succeeded)
	assert.Len(t, out.Results, 2)
}

func TestModelAndReload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/model":
			assert.Equal(t, http.MethodGet, r.Method)
			writeJSON(w, http.StatusOK, envelope(&common.ModelInfo{Loaded: true, ModelID: "m1", Threshold: 0.5}))
		case "/api/v1/model/reload":
			assert.Equal(t, http.MethodPost, r.Method)
			writeJSON(w, http.StatusOK, envelope(&common.ModelInfo{Loaded: true, ModelID: "m2", Threshold: 0.5}))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	info, err := c.Model(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m1", info.ModelID)

	info, err = c.ReloadModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m2", info.ModelID)
}

func TestReady_ReturnsBodyWhenDown(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, common.HealthResponse{
			Status:     common.HealthDown,
			Components: map[string]common.ComponentHealth{"redis": {Status: common.HealthDown}},
		})
	})

	body, err := c.Ready(context.Background())
	require.Error(t, err)
	assert.Equal(t, common.HealthDown, body.Status)
	assert.Contains(t, body.Components, "redis")
}

// ─────────────────────────────────────────────────────────────────────────────
// Errors and retries
// ─────────────────────────────────────────────────────────────────────────────

func TestAPIError_DecodedFromEnvelope(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("X-Request-ID", "req-1")
		writeJSON(w, http.StatusServiceUnavailable, errorEnvelope(errors.ErrCodeModelUnavailable, "no model loaded", ""))
	})

	_, err := c.Predict(context.Background(), common.PredictionRequest{ProteinA: "P1", ProteinB: "Q1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, apiErr.IsModelUnavailable())
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.Contains(t, apiErr.Error(), "no model loaded")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "503 is not retried")
}

func TestAPIError_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusUnprocessableEntity, errorEnvelope(errors.ErrCodeInsufficientInput, "protein unresolvable", "NOPE1"))
	})

	_, err := c.Invoke(context.Background(), "NOPE1", "Q1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, string(errors.ErrCodeInsufficientInput), apiErr.Code)
	assert.Equal(t, "NOPE1", apiErr.Detail)
	assert.False(t, apiErr.IsServerError())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetry_ServerErrorThenSuccess(t *testing.T) {
	var calls int32
	logger := &testLogger{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, envelope(&common.ModelInfo{Loaded: true}))
	}, WithLogger(logger))

	info, err := c.Model(context.Background())
	require.NoError(t, err)
	assert.True(t, info.Loaded)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Positive(t, logger.debug)
}

func TestRetry_Exhausted(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}, WithRetryMax(2))

	_, err := c.Model(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "boom", apiErr.Message)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetry_RateLimitedHonoursRetryAfter(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			writeJSON(w, http.StatusTooManyRequests, errorEnvelope(errors.ErrCodeTooManyRequests, "slow down", ""))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	ok, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRetry_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, WithRetryWait(time.Second, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Model(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCalculateBackoff_Capped(t *testing.T) {
	c := &Client{retryWaitMin: 100 * time.Millisecond, retryWaitMax: 300 * time.Millisecond}
	assert.GreaterOrEqual(t, c.calculateBackoff(1), 100*time.Millisecond)
	d := c.calculateBackoff(5)
	assert.GreaterOrEqual(t, d, 300*time.Millisecond)
	assert.LessOrEqual(t, d, 375*time.Millisecond)
}

//Personal.AI order the ending
