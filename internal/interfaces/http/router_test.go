package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/internal/application/inference"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/storage/local"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/ppinet"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/PPI-Intelligence/internal/testutil"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
	types "github.com/turtacn/PPI-Intelligence/pkg/types/common"
)

const (
	testDim  = 8
	modelKey = "model/model.ppi"
)

func init() { gin.SetMode(gin.TestMode) }

type harness struct {
	svc       *inference.Service
	artifacts *local.Store
	logger    *testutil.MockLogger
	collector prometheus.MetricsCollector
	router    *gin.Engine
}

func newHarness(t *testing.T, mutate func(*RouterConfig)) *harness {
	t.Helper()
	h := &harness{logger: testutil.NewMockLogger()}
	fam := testutil.CrossFamilies(2)
	h.artifacts = testutil.Artifacts(t)
	metrics := common.NewInMemoryPPIMetrics()
	svc, err := inference.NewService(inference.Dependencies{
		Resolver: fam.Resolver(),
		Cache:    testutil.NewCache(t, h.artifacts, testDim, metrics),
		Loader:   ppinet.NewCheckpointLoader(ppinet.CheckpointSourceConfig{ObjectKey: modelKey}, h.artifacts, nil, metrics),
		Metrics:  metrics,
	}, inference.DefaultOptions())
	require.NoError(t, err)
	h.svc = svc

	h.collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "ppi"}, h.logger)
	require.NoError(t, err)

	cfg := RouterConfig{
		PredictionHandler: handlers.NewPredictionHandler(svc, svc, 3, h.logger),
		HealthHandler:     handlers.NewHealthHandler("test", svc),
		Logger:            h.logger,
		MetricsCollector:  h.collector,
		AppMetrics:        prometheus.NewAppMetrics(h.collector),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.router = NewRouter(cfg)
	return h
}

func (h *harness) load(t *testing.T) {
	t.Helper()
	require.NoError(t, h.svc.SwapModel(testutil.RandomCheckpoint(t, "m-test", testDim)))
}

func (h *harness) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success   bool               `json:"success"`
	Data      json.RawMessage    `json:"data"`
	Error     *types.ErrorDetail `json:"error"`
	RequestID string             `json:"request_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// ─────────────────────────────────────────────────────────────────────────────
// Legacy endpoints
// ─────────────────────────────────────────────────────────────────────────────

func TestPing(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h.load(t)
	w = h.do(http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestInvocations(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t)

	w := h.do(http.MethodPost, "/invocations", `{"protein_a":"P1","protein_b":"Q2"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var inv types.InvocationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	assert.Equal(t, "P1", inv.ProteinA)
	assert.Equal(t, "Q2", inv.ProteinB)
	assert.Equal(t, inv.Probability, inv.InteractionProbability)
	assert.Equal(t, inv.Probability >= 0.5, inv.Interacts)
	assert.Equal(t, "m-test", inv.ModelID)
}

func TestInvocations_MissingProtein(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t)

	w := h.do(http.MethodPost, "/invocations", `{"protein_a":"P1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, errors.ErrCodeBadRequest.String(), env.Error.Code)

	w = h.do(http.MethodPost, "/invocations", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// API v1
// ─────────────────────────────────────────────────────────────────────────────

func TestPredict_NoModel(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodPost, "/api/v1/predictions", `{"protein_a":"P1","protein_b":"Q1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, errors.ErrCodeModelUnavailable.String(), decode(t, w).Error.Code)
}

func TestPredict_UnresolvableProtein(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t)
	w := h.do(http.MethodPost, "/api/v1/predictions", `{"protein_a":"P1","protein_b":"NOPE1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, errors.ErrCodeInsufficientInput.String(), decode(t, w).Error.Code)
	assert.True(t, h.logger.HasMessage("warn", "HTTP request completed with client error"))
}

func TestPredict_TaggedSequence(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t)
	body := `{"a":{"accession":"P1"},"b":{"sequence":"WYFHKWYFHKWYFHKWYFHK"}}`
	w := h.do(http.MethodPost, "/api/v1/predictions", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decode(t, w)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	var res types.PredictionResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "P1", res.ProteinA)
	assert.NotEmpty(t, res.Confidence)
}

func TestPredictBatch(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t)
	body := `{"pairs":[{"protein_a":"P1","protein_b":"Q1"},{"protein_a":"P1"},{"protein_a":"NOPE1","protein_b":"Q2"}]}`
	w := h.do(http.MethodPost, "/api/v1/predictions/batch", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.BatchPredictionResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 2, resp.Failed)
	assert.NotNil(t, resp.Results[0].Result)
	assert.Equal(t, errors.ErrCodeBadRequest.String(), resp.Results[1].Error.Code)
	assert.Equal(t, errors.ErrCodeInsufficientInput.String(), resp.Results[2].Error.Code)
}

func TestPredictBatch_Limits(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t)

	w := h.do(http.MethodPost, "/api/v1/predictions/batch", `{"pairs":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	pairs := make([]string, 4)
	for i := range pairs {
		pairs[i] = `{"protein_a":"P1","protein_b":"Q1"}`
	}
	w = h.do(http.MethodPost, "/api/v1/predictions/batch", `{"pairs":[`+strings.Join(pairs, ",")+`]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "4 > 3", decode(t, w).Error.Detail)
}

func TestModelAndReload(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodGet, "/api/v1/model", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info types.ModelInfo
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &info))
	assert.False(t, info.Loaded)
	assert.Equal(t, 0.5, info.Threshold)

	w = h.do(http.MethodPost, "/api/v1/model/reload", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, errors.ErrCodeModelLoad.String(), decode(t, w).Error.Code)

	require.NoError(t, ppinet.SaveCheckpoint(context.Background(), h.artifacts, modelKey, testutil.RandomCheckpoint(t, "m-disk", testDim)))
	w = h.do(http.MethodPost, "/api/v1/model/reload", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &info))
	assert.True(t, info.Loaded)
	assert.Equal(t, "m-disk", info.ModelID)
	assert.Equal(t, testDim, info.EmbeddingDim)
}

// ─────────────────────────────────────────────────────────────────────────────
// Probes and cross-cutting middleware
// ─────────────────────────────────────────────────────────────────────────────

func TestHealthProbes(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodGet, "/readyz", "").Code)

	h.load(t)
	w := h.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp types.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.HealthUp, resp.Status)
	assert.Equal(t, "m-test", resp.Model.ModelID)
}

func TestReadiness_FailingDependency(t *testing.T) {
	failing := handlers.HealthCheckerFunc{CheckerName: "redis", Fn: func(context.Context) error { return fmt.Errorf("connection refused") }}
	h := newHarness(t, func(cfg *RouterConfig) {
		cfg.HealthHandler = handlers.NewHealthHandler("test", nil, failing)
	})
	w := h.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp types.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.HealthDown, resp.Components["redis"].Status)
	assert.Equal(t, "connection refused", resp.Components["redis"].Message)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodGet, "/api/v1/model", "")
	w := h.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ppi_http_requests_total")
	assert.Contains(t, w.Body.String(), `path="/api/v1/model"`)
}

func TestRequestIDPropagation(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodGet, "/api/v1/model", "", middleware.HeaderRequestID, "req-42")
	assert.Equal(t, "req-42", w.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "req-42", decode(t, w).RequestID)

	w = h.do(http.MethodGet, "/api/v1/model", "")
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, func(cfg *RouterConfig) {
		cfg.RateLimitRPS = 0.001
		cfg.RateLimitBurst = 1
	})
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/model", "").Code)
	w := h.do(http.MethodGet, "/api/v1/model", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "").Code)
}

func TestBodyLimit(t *testing.T) {
	h := newHarness(t, func(cfg *RouterConfig) { cfg.MaxBodySize = 32 })
	h.load(t)
	body := `{"protein_a":"P1","protein_b":"` + strings.Repeat("Q", 64) + `"}`
	w := h.do(http.MethodPost, "/api/v1/predictions", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCORS(t *testing.T) {
	h := newHarness(t, func(cfg *RouterConfig) { cfg.CORSOrigins = []string{"https://lab.example.org"} })

	w := h.do(http.MethodOptions, "/api/v1/predictions", "", "Origin", "https://lab.example.org")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://lab.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = h.do(http.MethodOptions, "/api/v1/predictions", "", "Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRecoveryFromPanic(t *testing.T) {
	h := newHarness(t, nil)
	h.router.GET("/boom", func(*gin.Context) { panic("kaboom") })
	w := h.do(http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, h.logger.HasMessage("error", "panic recovered"))
}

// ─────────────────────────────────────────────────────────────────────────────
// Bearer-token guard
// ─────────────────────────────────────────────────────────────────────────────

type stubVerifier map[string]*keycloak.TokenClaims

func (s stubVerifier) VerifyToken(_ context.Context, raw string) (*keycloak.TokenClaims, error) {
	if claims, ok := s[raw]; ok {
		return claims, nil
	}
	return nil, keycloak.ErrTokenInvalidSignature
}

func (stubVerifier) Health(context.Context) error { return nil }

func guardedHarness(t *testing.T) *harness {
	return newHarness(t, func(cfg *RouterConfig) {
		cfg.Verifier = stubVerifier{
			"client-token": {Subject: "svc-a", RealmRoles: []string{string(keycloak.RoleClient)}},
			"admin-token":  {Subject: "ops", RealmRoles: []string{string(keycloak.RoleAdmin)}},
		}
	})
}

func TestAuth_MissingToken(t *testing.T) {
	h := guardedHarness(t)
	h.load(t)

	w := h.do(http.MethodPost, "/api/v1/predictions", `{"protein_a":"P1","protein_b":"Q1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, errors.ErrCodeUnauthorized.String(), env.Error.Code)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "").Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	h := guardedHarness(t)
	w := h.do(http.MethodGet, "/api/v1/model", "", "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errors.ErrCodeUnauthorized.String(), decode(t, w).Error.Code)
}

func TestAuth_RolePermissions(t *testing.T) {
	h := guardedHarness(t)
	h.load(t)

	w := h.do(http.MethodPost, "/api/v1/predictions", `{"protein_a":"P1","protein_b":"Q1"}`, "Authorization", "Bearer client-token")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/invocations", `{"protein_a":"P1","protein_b":"Q1"}`, "Authorization", "Bearer client-token")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/api/v1/model/reload", "", "Authorization", "Bearer client-token")
	assert.Equal(t, http.StatusForbidden, w.Code)
	env := decode(t, w)
	assert.Equal(t, errors.ErrCodeForbidden.String(), env.Error.Code)
	assert.Equal(t, string(keycloak.PermModelReload), env.Error.Detail)

	require.NoError(t, ppinet.SaveCheckpoint(context.Background(), h.artifacts, modelKey, testutil.RandomCheckpoint(t, "m-disk", testDim)))
	w = h.do(http.MethodPost, "/api/v1/model/reload", "", "Authorization", "Bearer admin-token")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

//Personal.AI order the ending
