package common

import (
	"context"
	"math"
	"sort"
	"sync"

	prom "github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/prometheus"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// PPIMetrics is the telemetry contract of the pipeline.  The embedding cache,
// the resolver, the trainer and the inference service record through it so
// that Prometheus, in-memory and noop implementations are interchangeable.
type PPIMetrics interface {
	// RecordCacheAccess records an embedding cache hit or miss.
	RecordCacheAccess(ctx context.Context, store string, hit bool)

	// RecordCacheSize publishes the number of cached vectors.
	RecordCacheSize(ctx context.Context, store string, entries int)

	// RecordEmbeddingBatch records one encoder forward pass.
	RecordEmbeddingBatch(ctx context.Context, params *EmbeddingBatchParams)

	// RecordResolution records one sequence resolver call.
	RecordResolution(ctx context.Context, source string, success bool, durationMs float64)

	// RecordEpoch publishes the evaluation metrics of one finished epoch.
	RecordEpoch(ctx context.Context, params *EpochMetricParams)

	// RecordRunFinished counts a training run reaching a terminal state.
	RecordRunFinished(ctx context.Context, state string)

	// RecordInference records one prediction.
	RecordInference(ctx context.Context, params *InferenceMetricParams)

	// RecordModelLoad records a checkpoint load attempt.
	RecordModelLoad(ctx context.Context, source string, success bool)

	// GetCurrentStats returns a point-in-time snapshot.
	GetCurrentStats() *PPIStats
}

// EmbeddingBatchParams describes one encoder batch.
type EmbeddingBatchParams struct {
	Encoder    string  `json:"encoder"`
	Sequences  int     `json:"sequences"`
	Failed     int     `json:"failed"`
	DurationMs float64 `json:"duration_ms"`
}

// EpochMetricParams describes one finished epoch.
type EpochMetricParams struct {
	RunID      string             `json:"run_id"`
	Epoch      int                `json:"epoch"`
	Metrics    map[string]float64 `json:"metrics"`
	DurationMs float64            `json:"duration_ms"`
}

// InferenceMetricParams describes one prediction.
type InferenceMetricParams struct {
	Transport  string  `json:"transport"`
	Outcome    string  `json:"outcome"`
	DurationMs float64 `json:"duration_ms"`
}

// Inference outcomes.
const (
	OutcomeInteracts         = "interacts"
	OutcomeNoInteraction     = "no_interaction"
	OutcomeInsufficientInput = "insufficient_input"
	OutcomeModelUnavailable  = "model_unavailable"
	OutcomeError             = "error"
)

// PPIStats is a point-in-time snapshot.
type PPIStats struct {
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
	Inferences       int64   `json:"inferences"`
	P50LatencyMs     float64 `json:"p50_latency_ms"`
	P95LatencyMs     float64 `json:"p95_latency_ms"`
	EmbeddedTotal    int64   `json:"embedded_total"`
	ResolutionErrors int64   `json:"resolution_errors"`
}

// ---------------------------------------------------------------------------
// Shared counters
// ---------------------------------------------------------------------------

type statsTracker struct {
	mu          sync.Mutex
	cacheHits   int64
	cacheMisses int64
	embedded    int64
	resErrors   int64
	latency     *latencyHistogram
}

func newStatsTracker() *statsTracker {
	return &statsTracker{latency: newLatencyHistogram()}
}

func (s *statsTracker) cache(hit bool) {
	s.mu.Lock()
	if hit {
		s.cacheHits++
	} else {
		s.cacheMisses++
	}
	s.mu.Unlock()
}

func (s *statsTracker) snapshot() *PPIStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &PPIStats{
		CacheHits:        s.cacheHits,
		CacheMisses:      s.cacheMisses,
		EmbeddedTotal:    s.embedded,
		ResolutionErrors: s.resErrors,
		Inferences:       s.latency.Count(),
		P50LatencyMs:     s.latency.Percentile(50),
		P95LatencyMs:     s.latency.Percentile(95),
	}
	if total := s.cacheHits + s.cacheMisses; total > 0 {
		st.CacheHitRate = float64(s.cacheHits) / float64(total)
	}
	return st
}

// ---------------------------------------------------------------------------
// Prometheus implementation
// ---------------------------------------------------------------------------

type prometheusPPIMetrics struct {
	app   *prom.AppMetrics
	stats *statsTracker
}

// NewPrometheusPPIMetrics records into the application metric set.
func NewPrometheusPPIMetrics(app *prom.AppMetrics) PPIMetrics {
	return &prometheusPPIMetrics{app: app, stats: newStatsTracker()}
}

func (m *prometheusPPIMetrics) RecordCacheAccess(_ context.Context, store string, hit bool) {
	if hit {
		m.app.EmbeddingCacheHitsTotal.WithLabelValues(store).Inc()
	} else {
		m.app.EmbeddingCacheMissesTotal.WithLabelValues(store).Inc()
	}
	m.stats.cache(hit)
}

func (m *prometheusPPIMetrics) RecordCacheSize(_ context.Context, store string, entries int) {
	m.app.EmbeddingCacheEntries.WithLabelValues(store).Set(float64(entries))
}

func (m *prometheusPPIMetrics) RecordEmbeddingBatch(_ context.Context, p *EmbeddingBatchParams) {
	if p == nil {
		return
	}
	m.app.EmbeddingBatchDuration.WithLabelValues(p.Encoder).Observe(p.DurationMs / 1000)
	m.app.EmbeddingSequencesTotal.WithLabelValues(p.Encoder, "ok").Add(float64(p.Sequences - p.Failed))
	if p.Failed > 0 {
		m.app.EmbeddingSequencesTotal.WithLabelValues(p.Encoder, "error").Add(float64(p.Failed))
	}
	m.stats.mu.Lock()
	m.stats.embedded += int64(p.Sequences - p.Failed)
	m.stats.mu.Unlock()
}

func (m *prometheusPPIMetrics) RecordResolution(_ context.Context, source string, success bool, durationMs float64) {
	out := "ok"
	if !success {
		out = "error"
		m.stats.mu.Lock()
		m.stats.resErrors++
		m.stats.mu.Unlock()
	}
	m.app.ResolverRequestsTotal.WithLabelValues(source, out).Inc()
	m.app.ResolverDuration.WithLabelValues(source).Observe(durationMs / 1000)
}

func (m *prometheusPPIMetrics) RecordEpoch(_ context.Context, p *EpochMetricParams) {
	if p == nil {
		return
	}
	for name, v := range p.Metrics {
		m.app.TrainingEpochMetric.WithLabelValues(name).Set(v)
	}
	m.app.TrainingEpochSeconds.WithLabelValues().Observe(p.DurationMs / 1000)
}

func (m *prometheusPPIMetrics) RecordRunFinished(_ context.Context, state string) {
	m.app.TrainingRunsTotal.WithLabelValues(state).Inc()
}

func (m *prometheusPPIMetrics) RecordInference(_ context.Context, p *InferenceMetricParams) {
	if p == nil {
		return
	}
	m.app.InferenceRequestsTotal.WithLabelValues(p.Outcome).Inc()
	m.app.InferenceDuration.WithLabelValues(p.Transport).Observe(p.DurationMs / 1000)
	m.stats.latency.Observe(p.DurationMs)
}

func (m *prometheusPPIMetrics) RecordModelLoad(_ context.Context, source string, success bool) {
	out := "ok"
	if !success {
		out = "error"
	}
	m.app.ModelLoadsTotal.WithLabelValues(source, out).Inc()
}

func (m *prometheusPPIMetrics) GetCurrentStats() *PPIStats { return m.stats.snapshot() }

// ---------------------------------------------------------------------------
// Noop implementation
// ---------------------------------------------------------------------------

type noopPPIMetrics struct{}

// NewNoopPPIMetrics returns metrics that discard everything.
func NewNoopPPIMetrics() PPIMetrics { return noopPPIMetrics{} }

func (noopPPIMetrics) RecordCacheAccess(context.Context, string, bool)                 {}
func (noopPPIMetrics) RecordCacheSize(context.Context, string, int)                    {}
func (noopPPIMetrics) RecordEmbeddingBatch(context.Context, *EmbeddingBatchParams)     {}
func (noopPPIMetrics) RecordResolution(context.Context, string, bool, float64)         {}
func (noopPPIMetrics) RecordEpoch(context.Context, *EpochMetricParams)                 {}
func (noopPPIMetrics) RecordRunFinished(context.Context, string)                       {}
func (noopPPIMetrics) RecordInference(context.Context, *InferenceMetricParams)         {}
func (noopPPIMetrics) RecordModelLoad(context.Context, string, bool)                   {}
func (noopPPIMetrics) GetCurrentStats() *PPIStats                                      { return &PPIStats{} }

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

// InMemoryPPIMetrics keeps every observation for assertions in tests.
type InMemoryPPIMetrics struct {
	mu         sync.Mutex
	stats      *statsTracker
	Batches    []EmbeddingBatchParams
	Epochs     []EpochMetricParams
	Inferences []InferenceMetricParams
	RunStates  []string
	ModelLoads map[string]int
}

// NewInMemoryPPIMetrics returns an empty recorder.
func NewInMemoryPPIMetrics() *InMemoryPPIMetrics {
	return &InMemoryPPIMetrics{stats: newStatsTracker(), ModelLoads: make(map[string]int)}
}

func (m *InMemoryPPIMetrics) RecordCacheAccess(_ context.Context, _ string, hit bool) {
	m.stats.cache(hit)
}

func (m *InMemoryPPIMetrics) RecordCacheSize(context.Context, string, int) {}

func (m *InMemoryPPIMetrics) RecordEmbeddingBatch(_ context.Context, p *EmbeddingBatchParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.Batches = append(m.Batches, *p)
	m.mu.Unlock()
	m.stats.mu.Lock()
	m.stats.embedded += int64(p.Sequences - p.Failed)
	m.stats.mu.Unlock()
}

func (m *InMemoryPPIMetrics) RecordResolution(_ context.Context, _ string, success bool, _ float64) {
	if !success {
		m.stats.mu.Lock()
		m.stats.resErrors++
		m.stats.mu.Unlock()
	}
}

func (m *InMemoryPPIMetrics) RecordEpoch(_ context.Context, p *EpochMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Epochs = append(m.Epochs, *p)
}

func (m *InMemoryPPIMetrics) RecordRunFinished(_ context.Context, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunStates = append(m.RunStates, state)
}

func (m *InMemoryPPIMetrics) RecordInference(_ context.Context, p *InferenceMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.Inferences = append(m.Inferences, *p)
	m.mu.Unlock()
	m.stats.latency.Observe(p.DurationMs)
}

func (m *InMemoryPPIMetrics) RecordModelLoad(_ context.Context, source string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := source + ":ok"
	if !success {
		key = source + ":error"
	}
	m.ModelLoads[key]++
}

func (m *InMemoryPPIMetrics) GetCurrentStats() *PPIStats { return m.stats.snapshot() }

// EpochCount returns the number of recorded epochs.
func (m *InMemoryPPIMetrics) EpochCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Epochs)
}

// ---------------------------------------------------------------------------
// latencyHistogram
// ---------------------------------------------------------------------------

type latencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	sorted  bool
}

func newLatencyHistogram() *latencyHistogram {
	return &latencyHistogram{samples: make([]float64, 0, 256)}
}

func (h *latencyHistogram) Observe(durationMs float64) {
	h.mu.Lock()
	h.samples = append(h.samples, durationMs)
	h.sorted = false
	h.mu.Unlock()
}

func (h *latencyHistogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.samples))
}

// Percentile interpolates linearly between the two nearest ranks.
func (h *latencyHistogram) Percentile(p float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.samples)
	if n == 0 {
		return 0
	}
	if !h.sorted {
		sort.Float64s(h.samples)
		h.sorted = true
	}
	if p <= 0 {
		return h.samples[0]
	}
	if p >= 100 {
		return h.samples[n-1]
	}
	rank := (p / 100) * float64(n-1)
	lower := int(math.Floor(rank))
	if lower+1 >= n {
		return h.samples[n-1]
	}
	frac := rank - float64(lower)
	return h.samples[lower] + frac*(h.samples[lower+1]-h.samples[lower])
}

var (
	_ PPIMetrics = (*prometheusPPIMetrics)(nil)
	_ PPIMetrics = noopPPIMetrics{}
	_ PPIMetrics = (*InMemoryPPIMetrics)(nil)
)

//Personal.AI order the ending
