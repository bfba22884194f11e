// Package httpapi exposes the screening engine over a JSON HTTP
// surface. Handlers return partial, best-effort results with inline
// error markers whenever an individual satellite or probability
// computation fails; only malformed requests fail outright.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/conjunction-screener/core"
	"github.com/signalsfoundry/conjunction-screener/internal/catalog"
	"github.com/signalsfoundry/conjunction-screener/internal/logging"
	"github.com/signalsfoundry/conjunction-screener/internal/observability"
	"github.com/signalsfoundry/conjunction-screener/internal/spaceweather"
)

const requestIDHeader = "X-Request-Id"

// WeatherSummarizer is the space-weather collaborator surface.
type WeatherSummarizer interface {
	Summarize(ctx context.Context) spaceweather.Summary
}

// Server wires the engine and its collaborators behind HTTP handlers.
type Server struct {
	Scanner *core.Scanner

	// Catalog serves the default catalog source, normally a TTL cache
	// over the Celestrak client. CatalogForURL builds a fetcher for a
	// per-request catalog_url override; when nil, overrides fall back
	// to an uncached client.
	Catalog       catalog.Fetcher
	CatalogForURL func(url string) catalog.Fetcher

	Weather WeatherSummarizer

	Log     logging.Logger
	Metrics *observability.ScreeningCollector

	// Workers overrides the per-candidate fan-out of every scan when
	// set above 1; requests cannot raise it.
	Workers int

	// Now supplies the scan start instant; it exists so tests can pin
	// the clock. Defaults to time.Now.
	Now func() time.Time

	tracer trace.Tracer
}

// NewServer builds a server with production collaborators for any field
// left nil.
func NewServer(scanner *core.Scanner, log logging.Logger, metrics *observability.ScreeningCollector) *Server {
	if scanner == nil {
		scanner = core.NewScanner()
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Server{
		Scanner: scanner,
		Catalog: catalog.NewCache(catalog.NewClient(""), 30*time.Minute),
		Weather: spaceweather.NewClient(""),
		Log:     log,
		Metrics: metrics,
		Now:     time.Now,
		tracer:  otel.Tracer("httpapi"),
	}
}

// Routes returns the full handler tree with request-id and metrics
// middleware applied per route.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", s.instrument("/healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("POST /v1/analyze", s.instrument("/v1/analyze", http.HandlerFunc(s.handleAnalyze)))
	mux.Handle("POST /v1/analyze-fleet", s.instrument("/v1/analyze-fleet", http.HandlerFunc(s.handleAnalyzeFleet)))
	mux.Handle("POST /v1/positions", s.instrument("/v1/positions", http.HandlerFunc(s.handlePositions)))
	return mux
}

// instrument stacks the request-id and metrics middleware for a route.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	handler := s.requestIDMiddleware(route, next)
	if s.Metrics != nil {
		handler = s.Metrics.Middleware(route, handler)
	}
	return handler
}

// requestIDMiddleware sources a request id from the X-Request-Id header
// when the caller supplies one, attaches a per-request logger to the
// context, and echoes the id on the response.
func (s *Server) requestIDMiddleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if incoming := r.Header.Get(requestIDHeader); incoming != "" {
			ctx = logging.ContextWithRequestID(ctx, incoming)
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, s.Log.With(logging.String("route", route)))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		w.Header().Set(requestIDHeader, logging.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) log(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	if s.Log != nil {
		return s.Log
	}
	return logging.Noop()
}

func (s *Server) catalogFor(url string) catalog.Fetcher {
	if url == "" || url == catalog.DefaultURL {
		if s.Catalog != nil {
			return s.Catalog
		}
		return catalog.NewClient("")
	}
	if s.CatalogForURL != nil {
		return s.CatalogForURL(url)
	}
	return catalog.NewClient(url)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
