package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GenerateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "r2r_generate_duration_seconds",
			Help:    "Generate request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"grounded"},
	)

	GenerateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "r2r_generate_total",
			Help: "Total generate requests processed",
		},
		[]string{"status"},
	)

	ProjectsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "r2r_projects_generated_total",
			Help: "Total projects synthesized",
		},
	)

	RetrievalResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "r2r_retrieval_results_count",
			Help:    "Number of retrieved segments per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	PrefilterFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "r2r_prefilter_fallbacks_total",
			Help: "Searches where the metadata prefilter matched nothing",
		},
	)

	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "r2r_documents_ingested_total",
			Help: "Total document ingestions",
		},
		[]string{"format", "status"},
	)

	SegmentsIndexed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "r2r_segments_indexed",
			Help: "Segments currently in the vector index",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "r2r_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "r2r_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	EmbeddingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "r2r_embedding_duration_seconds",
			Help:    "Embedding call duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)

func Init() {
	prometheus.MustRegister(GenerateDuration)
	prometheus.MustRegister(GenerateTotal)
	prometheus.MustRegister(ProjectsGenerated)
	prometheus.MustRegister(RetrievalResultsCount)
	prometheus.MustRegister(PrefilterFallbacks)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(SegmentsIndexed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(EmbeddingDuration)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
