package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/conjunction-screener/core"
)

// ScreeningCollector bundles Prometheus metrics for the screening
// service and provides helpers to wire them into HTTP handlers.
type ScreeningCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	ScreeningsTotal   prometheus.Counter
	ScreeningDuration prometheus.Histogram
	ConjunctionEvents prometheus.Counter
	CandidatesDropped prometheus.Counter
	PropagationErrors prometheus.Counter
	CatalogSize       prometheus.Gauge
}

// NewScreeningCollector registers the screening metrics against the
// provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewScreeningCollector(reg prometheus.Registerer) (*ScreeningCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "screener_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})
	requests, err := registerCounterVec(reg, requests)
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "screener_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"route", "method"})
	durations, err = registerHistogramVec(reg, durations)
	if err != nil {
		return nil, err
	}

	screenings, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "screener_screenings_total",
		Help: "Total number of completed screening runs.",
	}))
	if err != nil {
		return nil, err
	}
	screeningDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "screener_screening_duration_seconds",
		Help:    "Wall-clock duration of one screening run.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}))
	if err != nil {
		return nil, err
	}
	events, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "screener_conjunction_events_total",
		Help: "Total number of conjunction events promoted across all screenings.",
	}))
	if err != nil {
		return nil, err
	}
	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "screener_candidates_dropped_total",
		Help: "Catalog objects dropped because their element sets failed to parse.",
	}))
	if err != nil {
		return nil, err
	}
	propErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "screener_propagation_errors_total",
		Help: "Individual sample propagation failures recorded as infinite distance.",
	}))
	if err != nil {
		return nil, err
	}
	catalogSize, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "screener_catalog_size",
		Help: "Catalog size of the most recent screening run, after truncation.",
	}))
	if err != nil {
		return nil, err
	}

	return &ScreeningCollector{
		gatherer:          gatherer,
		HTTPRequests:      requests,
		HTTPDurations:     durations,
		ScreeningsTotal:   screenings,
		ScreeningDuration: screeningDuration,
		ConjunctionEvents: events,
		CandidatesDropped: dropped,
		PropagationErrors: propErrors,
		CatalogSize:       catalogSize,
	}, nil
}

// ObserveScreening records the outcome of one screening run.
func (c *ScreeningCollector) ObserveScreening(stats core.ScanStats, eventCount int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.ScreeningsTotal.Inc()
	c.ScreeningDuration.Observe(elapsed.Seconds())
	c.ConjunctionEvents.Add(float64(eventCount))
	c.CandidatesDropped.Add(float64(stats.CandidatesDropped))
	c.PropagationErrors.Add(float64(stats.SampleErrors))
	c.CatalogSize.Set(float64(stats.CatalogSize))
}

// Middleware instruments an HTTP handler with request counts and
// durations under the given route label.
func (c *ScreeningCollector) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.code)).Inc()
		c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// MetricsHandler exposes the collector's registry in Prometheus text
// format.
func (c *ScreeningCollector) MetricsHandler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// The register helpers tolerate re-registration so multiple components
// can share one registry during tests.

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func registerHistogramVec(reg prometheus.Registerer, h *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.HistogramVec), nil
		}
		return nil, err
	}
	return h, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Counter), nil
		}
		return nil, err
	}
	return c, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Histogram), nil
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Gauge), nil
		}
		return nil, err
	}
	return g, nil
}

