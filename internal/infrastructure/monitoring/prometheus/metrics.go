package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric exported by the PPI services.
type AppMetrics struct {
	// Transport
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Sequence resolution
	ResolverRequestsTotal CounterVec
	ResolverDuration      HistogramVec

	// Embedding
	EmbeddingCacheHitsTotal   CounterVec
	EmbeddingCacheMissesTotal CounterVec
	EmbeddingCacheEntries     GaugeVec
	EmbeddingBatchDuration    HistogramVec
	EmbeddingSequencesTotal   CounterVec

	// Training
	TrainingRunsTotal    CounterVec
	TrainingEpochMetric  GaugeVec
	TrainingEpochSeconds HistogramVec

	// Inference
	InferenceRequestsTotal CounterVec
	InferenceDuration      HistogramVec
	ModelLoadsTotal        CounterVec

	// Infrastructure
	DBQueryDuration        HistogramVec
	MessagePublishTotal    CounterVec
	MessageProcessDuration HistogramVec
	ErrorsTotal            CounterVec
}

// Default buckets.
var (
	DefaultHTTPDurationBuckets      = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultEmbeddingDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}
	DefaultEpochDurationBuckets     = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600}
	DefaultDBDurationBuckets        = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics and returns the AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "method")

	m.ResolverRequestsTotal = collector.RegisterCounter("resolver_requests_total", "Sequence resolution attempts", "source", "outcome")
	m.ResolverDuration = collector.RegisterHistogram("resolver_duration_seconds", "Sequence resolution latency", DefaultHTTPDurationBuckets, "source")

	m.EmbeddingCacheHitsTotal = collector.RegisterCounter("embedding_cache_hits_total", "Embedding cache hits", "store")
	m.EmbeddingCacheMissesTotal = collector.RegisterCounter("embedding_cache_misses_total", "Embedding cache misses", "store")
	m.EmbeddingCacheEntries = collector.RegisterGauge("embedding_cache_entries", "Embedding cache size", "store")
	m.EmbeddingBatchDuration = collector.RegisterHistogram("embedding_batch_duration_seconds", "Encoder batch latency", DefaultEmbeddingDurationBuckets, "encoder")
	m.EmbeddingSequencesTotal = collector.RegisterCounter("embedding_sequences_total", "Sequences embedded", "encoder", "outcome")

	m.TrainingRunsTotal = collector.RegisterCounter("training_runs_total", "Training runs by terminal state", "state")
	m.TrainingEpochMetric = collector.RegisterGauge("training_epoch_metric", "Latest per-epoch evaluation metric", "metric")
	m.TrainingEpochSeconds = collector.RegisterHistogram("training_epoch_duration_seconds", "Epoch wall time", DefaultEpochDurationBuckets)

	m.InferenceRequestsTotal = collector.RegisterCounter("inference_requests_total", "Predictions by outcome", "outcome")
	m.InferenceDuration = collector.RegisterHistogram("inference_duration_seconds", "Prediction latency", DefaultHTTPDurationBuckets, "transport")
	m.ModelLoadsTotal = collector.RegisterCounter("model_loads_total", "Checkpoint loads", "source", "outcome")

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.MessagePublishTotal = collector.RegisterCounter("mq_publish_total", "Messages published", "topic", "outcome")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultEpochDurationBuckets, "topic")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

// Helpers

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGRPCRequest records one served unary RPC.
func RecordGRPCRequest(metrics *AppMetrics, method, code string, duration time.Duration) {
	metrics.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
	metrics.GRPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordDBQuery records a database round trip.
func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error").Inc()
	}
}

// RecordPublish records a produced message.
func RecordPublish(metrics *AppMetrics, topic string, err error) {
	metrics.MessagePublishTotal.WithLabelValues(topic, outcome(err)).Inc()
}

// RecordError counts an error by component and code.
func RecordError(metrics *AppMetrics, component, code string) {
	metrics.ErrorsTotal.WithLabelValues(component, code).Inc()
}

//Personal.AI order the ending
