package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphummel/pcbuild/internal/compat"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcbuild_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pcbuild_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pcbuild_http_requests_in_flight",
		Help: "Current number of HTTP requests being processed.",
	})

	compatibilityChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcbuild_compatibility_checks_total",
			Help: "Compatibility evaluations by outcome.",
		},
		[]string{"result"},
	)

	compatibilityFindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcbuild_compatibility_findings_total",
			Help: "Compatibility findings reported, by severity.",
		},
		[]string{"severity"},
	)

	estimatedPowerDraw = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pcbuild_estimated_power_draw_watts",
		Help:    "Estimated system power draw of evaluated builds that include a PSU.",
		Buckets: []float64{200, 300, 400, 500, 650, 800, 1000, 1200, 1500},
	})
)

// CatalogDB is the subset of db.DB needed to collect catalog metrics.
type CatalogDB interface {
	CountByCategory() (map[string]int, error)
}

// catalogCollector queries the database on each scrape to report catalog
// size broken down by category.
type catalogCollector struct {
	db             CatalogDB
	componentsDesc *prometheus.Desc
}

func (c *catalogCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.componentsDesc
}

func (c *catalogCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := c.db.CountByCategory()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.componentsDesc, err)
		return
	}
	for category, n := range counts {
		ch <- prometheus.MustNewConstMetric(
			c.componentsDesc,
			prometheus.GaugeValue,
			float64(n),
			category,
		)
	}
}

// Register registers all metrics with the default Prometheus registry.
// Call once at startup after the database is initialised.
func Register(db CatalogDB) {
	RegisterWith(prometheus.DefaultRegisterer, db)
}

// RegisterWith registers all metrics with reg. Runtime and process
// collectors are only added to the default registry.
func RegisterWith(reg prometheus.Registerer, db CatalogDB) {
	if reg == prometheus.DefaultRegisterer {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	reg.MustRegister(
		// HTTP service metrics
		httpRequestsTotal,
		httpRequestDuration,
		httpRequestsInFlight,

		// Application metrics
		compatibilityChecksTotal,
		compatibilityFindingsTotal,
		estimatedPowerDraw,
		&catalogCollector{
			db: db,
			componentsDesc: prometheus.NewDesc(
				"pcbuild_catalog_components",
				"Number of catalog components, partitioned by category.",
				[]string{"category"},
				nil,
			),
		},
	)
}

// ObserveReport records the outcome of one compatibility evaluation.
func ObserveReport(r *compat.Report) {
	result := "compatible"
	if !r.IsCompatible {
		result = "incompatible"
	}
	compatibilityChecksTotal.WithLabelValues(result).Inc()
	compatibilityFindingsTotal.WithLabelValues(compat.SeverityError.String()).Add(float64(len(r.Errors)))
	compatibilityFindingsTotal.WithLabelValues(compat.SeverityWarning.String()).Add(float64(len(r.Warnings)))
	if r.TotalPowerDraw != nil {
		estimatedPowerDraw.Observe(*r.TotalPowerDraw)
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the response status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware wraps an http.Handler to record HTTP metrics.
// pattern should be the route pattern string (e.g. "/api/v1/builds/{id}")
// so the path label has bounded cardinality.
func Middleware(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			httpRequestsInFlight.Dec()
			status := strconv.Itoa(rw.status)
			httpRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}
