package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketlens_analysis_duration_seconds",
			Help:    "Full analysis pipeline duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	AnalysisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlens_analysis_total",
			Help: "Total number of analyses processed",
		},
		[]string{"status"},
	)

	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketlens_extraction_duration_seconds",
			Help:    "Per-source extraction duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	SourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlens_source_failures_total",
			Help: "Total extraction source failures",
		},
		[]string{"source"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlens_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlens_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ArchetypesAssigned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlens_archetypes_assigned_total",
			Help: "Total archetype assignments by archetype",
		},
		[]string{"archetype"},
	)

	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlens_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

func Init() {
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(AnalysisTotal)
	prometheus.MustRegister(ExtractionDuration)
	prometheus.MustRegister(SourceFailures)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ArchetypesAssigned)
	prometheus.MustRegister(RequestTotal)
}

func RecordAnalysis(status string, elapsed time.Duration) {
	AnalysisTotal.WithLabelValues(status).Inc()
	AnalysisDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func StartExtraction(source string) func() {
	start := time.Now()
	return func() {
		ExtractionDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}
}

func RecordSourceFailure(source string) {
	SourceFailures.WithLabelValues(source).Inc()
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func RecordArchetype(archetype string) {
	ArchetypesAssigned.WithLabelValues(archetype).Inc()
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
