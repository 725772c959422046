package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var msBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000}

var (
	MapaRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ventas_mapa_requests_total",
		Help: "Total number of aggregate (map) requests",
	})
	MapaDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ventas_mapa_duration_ms",
		Help:    "Aggregate request duration in milliseconds",
		Buckets: msBuckets,
	})
	QueryErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ventas_query_errors_total",
		Help: "Query failures by endpoint",
	}, []string{"endpoint"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ventas_cache_hits_total",
		Help: "Aggregate cache hits by backend",
	}, []string{"backend"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ventas_cache_misses_total",
		Help: "Aggregate cache misses by backend",
	}, []string{"backend"})
	RowsScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ventas_rows_scanned_total",
		Help: "Transaction records scanned by aggregations",
	})
	RowsMalformedAmount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ventas_rows_malformed_amount_total",
		Help: "Records whose amount could not be parsed and counted as zero",
	})
	DetectOverridesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geo_detect_overrides_total",
		Help: "Property detections replaced by the known-attribute override",
	}, []string{"level"})
	OptimizerSwitchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geo_optimizer_switches_total",
		Help: "Times the coverage optimizer switched the name property",
	}, []string{"level"})
	CoverageRatio = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "geo_coverage_ratio",
		Help: "Share of polygons that matched an aggregate key in the last cycle",
	}, []string{"level"})
	GeoFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geo_fetch_total",
		Help: "Polygon dataset fetches by source and status",
	}, []string{"source", "status"})
	RenderBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_batches_total",
		Help: "Feature batches added by the incremental renderer",
	})
	RenderBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_batch_size",
		Help:    "Features per renderer batch",
		Buckets: []float64{20, 40, 60, 80, 100, 120, 140, 160},
	})
	RenderCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_cancelled_total",
		Help: "Render runs abandoned by cancellation",
	})
	RenderRestylesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_restyles_total",
		Help: "Cycles served by restyling the displayed layer",
	})
	RenderDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "render_cycle_duration_ms",
		Help:    "View cycle duration in milliseconds by level",
		Buckets: msBuckets,
	}, []string{"level"})
)

func init() {
	prometheus.MustRegister(MapaRequestsTotal)
	prometheus.MustRegister(MapaDurationMs)
	prometheus.MustRegister(QueryErrorsTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(RowsScanned)
	prometheus.MustRegister(RowsMalformedAmount)
	prometheus.MustRegister(DetectOverridesTotal)
	prometheus.MustRegister(OptimizerSwitchesTotal)
	prometheus.MustRegister(CoverageRatio)
	prometheus.MustRegister(GeoFetchTotal)
	prometheus.MustRegister(RenderBatchesTotal)
	prometheus.MustRegister(RenderBatchSize)
	prometheus.MustRegister(RenderCancelledTotal)
	prometheus.MustRegister(RenderRestylesTotal)
	prometheus.MustRegister(RenderDurationMs)
}

// 文档注释：返回 Prometheus 指标监听器，在主入口挂载到 /metrics
func Handler() http.Handler { return promhttp.Handler() }
