package translate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Model loading metrics
	modelLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotranslate_model_loads_total",
			Help: "Total number of model resolutions by outcome (primary, fallback, failed)",
		},
		[]string{"engine", "outcome"},
	)

	modelLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neurotranslate_model_load_duration_seconds",
			Help:    "Duration of model resolution including fallback attempts",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
		},
		[]string{"engine"},
	)

	// Model cache metrics
	modelCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotranslate_model_cache_lookups_total",
			Help: "Total number of model cache lookups by result (hit, miss)",
		},
		[]string{"engine", "result"},
	)

	modelCacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotranslate_model_cache_evictions_total",
			Help: "Total number of translator handles evicted from the cache",
		},
		[]string{"engine"},
	)

	modelCacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "neurotranslate_model_cache_size",
			Help: "Number of translator handles currently cached",
		},
		[]string{"engine"},
	)

	// Backend call metrics
	translationCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotranslate_translation_calls_total",
			Help: "Total number of backend translation calls",
		},
		[]string{"engine", "status"},
	)

	translationCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neurotranslate_translation_call_duration_seconds",
			Help:    "Duration of backend translation calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"engine", "status"},
	)

	translationChunks = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neurotranslate_translation_chunks",
			Help:    "Number of chunks per chunked translation",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 500},
		},
		[]string{"engine"},
	)

	// Request metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotranslate_requests_total",
			Help: "Total number of translation requests by mode and result kind",
		},
		[]string{"mode", "result"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neurotranslate_request_duration_seconds",
			Help:    "End-to-end duration of translation requests",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 300.0},
		},
		[]string{"mode"},
	)

	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotranslate_language_detections_total",
			Help: "Total number of language detections by detected code",
		},
		[]string{"code"},
	)
)

// MetricsCollector records engine metrics under a fixed engine label.
type MetricsCollector struct {
	engine string
}

// NewMetricsCollector creates a new metrics collector for an inference engine.
func NewMetricsCollector(engine string) *MetricsCollector {
	return &MetricsCollector{engine: engine}
}

// RecordModelLoad records a model resolution.
func (mc *MetricsCollector) RecordModelLoad(duration time.Duration, outcome string) {
	modelLoadsTotal.WithLabelValues(mc.engine, outcome).Inc()
	modelLoadDuration.WithLabelValues(mc.engine).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit or miss.
func (mc *MetricsCollector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	modelCacheLookupsTotal.WithLabelValues(mc.engine, result).Inc()
}

// RecordCacheEviction records a cache eviction.
func (mc *MetricsCollector) RecordCacheEviction() {
	modelCacheEvictionsTotal.WithLabelValues(mc.engine).Inc()
}

// SetCacheSize updates the cache size gauge.
func (mc *MetricsCollector) SetCacheSize(n int) {
	modelCacheSize.WithLabelValues(mc.engine).Set(float64(n))
}

// RecordTranslationCall records metrics for one backend translation call.
func (mc *MetricsCollector) RecordTranslationCall(duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	translationCallsTotal.WithLabelValues(mc.engine, status).Inc()
	translationCallDuration.WithLabelValues(mc.engine, status).Observe(duration.Seconds())
}

// RecordChunks records the chunk count of a chunked translation.
func (mc *MetricsCollector) RecordChunks(n int) {
	translationChunks.WithLabelValues(mc.engine).Observe(float64(n))
}

// RecordRequest records the outcome of an orchestrated request.
// result is "ok" or an error kind.
func RecordRequest(mode, result string, duration time.Duration) {
	requestsTotal.WithLabelValues(mode, result).Inc()
	requestDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordDetection records a language detection result.
func RecordDetection(code string) {
	detectionsTotal.WithLabelValues(code).Inc()
}
