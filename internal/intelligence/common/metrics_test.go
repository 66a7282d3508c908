package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/prometheus"
)

func newPromMetrics(t *testing.T) (PPIMetrics, prom.MetricsCollector) {
	t.Helper()
	c, err := prom.NewMetricsCollector(prom.CollectorConfig{Namespace: "ppi"}, logging.NewNopLogger())
	require.NoError(t, err)
	return NewPrometheusPPIMetrics(prom.NewAppMetrics(c)), c
}

func scrape(t *testing.T, c prom.MetricsCollector) string {
	t.Helper()
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return w.Body.String()
}

func TestPrometheus_CacheAccess(t *testing.T) {
	m, c := newPromMetrics(t)
	ctx := context.Background()
	m.RecordCacheAccess(ctx, "memory", true)
	m.RecordCacheAccess(ctx, "memory", true)
	m.RecordCacheAccess(ctx, "memory", false)

	out := scrape(t, c)
	assert.Contains(t, out, `ppi_embedding_cache_hits_total{store="memory"} 2`)
	assert.Contains(t, out, `ppi_embedding_cache_misses_total{store="memory"} 1`)

	st := m.GetCurrentStats()
	assert.Equal(t, int64(2), st.CacheHits)
	assert.InDelta(t, 2.0/3.0, st.CacheHitRate, 1e-9)
}

func TestPrometheus_EmbeddingBatch(t *testing.T) {
	m, c := newPromMetrics(t)
	m.RecordEmbeddingBatch(context.Background(), &EmbeddingBatchParams{Encoder: "local", Sequences: 8, Failed: 1, DurationMs: 120})

	out := scrape(t, c)
	assert.Contains(t, out, `ppi_embedding_sequences_total{encoder="local",outcome="ok"} 7`)
	assert.Contains(t, out, `ppi_embedding_sequences_total{encoder="local",outcome="error"} 1`)
	assert.Equal(t, int64(7), m.GetCurrentStats().EmbeddedTotal)
}

func TestPrometheus_EpochAndRun(t *testing.T) {
	m, c := newPromMetrics(t)
	ctx := context.Background()
	m.RecordEpoch(ctx, &EpochMetricParams{Epoch: 1, Metrics: map[string]float64{"test_auc": 0.75}, DurationMs: 2000})
	m.RecordRunFinished(ctx, "completed")

	out := scrape(t, c)
	assert.Contains(t, out, `ppi_training_epoch_metric{metric="test_auc"} 0.75`)
	assert.Contains(t, out, `ppi_training_runs_total{state="completed"} 1`)
}

func TestPrometheus_InferenceAndModelLoad(t *testing.T) {
	m, c := newPromMetrics(t)
	ctx := context.Background()
	m.RecordInference(ctx, &InferenceMetricParams{Transport: "http", Outcome: OutcomeInteracts, DurationMs: 4})
	m.RecordModelLoad(ctx, "file", false)
	m.RecordResolution(ctx, "uniprot", false, 30)

	out := scrape(t, c)
	assert.Contains(t, out, `ppi_inference_requests_total{outcome="interacts"} 1`)
	assert.Contains(t, out, `ppi_model_loads_total{outcome="error",source="file"} 1`)
	assert.Contains(t, out, `ppi_resolver_requests_total{outcome="error",source="uniprot"} 1`)
	assert.Equal(t, int64(1), m.GetCurrentStats().ResolutionErrors)
}

func TestNoop_AllMethods_NoPanic(t *testing.T) {
	m := NewNoopPPIMetrics()
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordCacheAccess(ctx, "memory", true)
		m.RecordCacheSize(ctx, "memory", 3)
		m.RecordEmbeddingBatch(ctx, nil)
		m.RecordResolution(ctx, "uniprot", true, 1)
		m.RecordEpoch(ctx, nil)
		m.RecordRunFinished(ctx, "failed")
		m.RecordInference(ctx, nil)
		m.RecordModelLoad(ctx, "file", true)
	})
	assert.NotNil(t, m.GetCurrentStats())
}

func TestInMemory_Records(t *testing.T) {
	m := NewInMemoryPPIMetrics()
	ctx := context.Background()
	m.RecordEpoch(ctx, &EpochMetricParams{Epoch: 1})
	m.RecordEpoch(ctx, &EpochMetricParams{Epoch: 2})
	m.RecordRunFinished(ctx, "completed")
	m.RecordModelLoad(ctx, "object", true)
	for _, d := range []float64{1, 2, 3, 4, 5} {
		m.RecordInference(ctx, &InferenceMetricParams{DurationMs: d})
	}

	assert.Equal(t, 2, m.EpochCount())
	assert.Equal(t, []string{"completed"}, m.RunStates)
	assert.Equal(t, 1, m.ModelLoads["object:ok"])

	st := m.GetCurrentStats()
	assert.Equal(t, int64(5), st.Inferences)
	assert.InDelta(t, 3.0, st.P50LatencyMs, 1e-9)
	assert.InDelta(t, 4.8, st.P95LatencyMs, 1e-9)
}

func TestLatencyHistogram_Empty(t *testing.T) {
	h := newLatencyHistogram()
	assert.Equal(t, 0.0, h.Percentile(50))
	assert.Equal(t, int64(0), h.Count())
}

//Personal.AI order the ending
