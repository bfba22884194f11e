package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/conjunction-screener/core"
	"github.com/signalsfoundry/conjunction-screener/internal/catalog"
	"github.com/signalsfoundry/conjunction-screener/internal/httpapi"
	"github.com/signalsfoundry/conjunction-screener/internal/logging"
	"github.com/signalsfoundry/conjunction-screener/internal/observability"
	"github.com/signalsfoundry/conjunction-screener/internal/spaceweather"
)

func main() {
	apiAddr := flag.String("api-addr", ":8080", "TCP address the screening API listens on")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics")
	catalogURL := flag.String("catalog-url", "", "TLE catalog URL (defaults to the Celestrak active group)")
	catalogTTL := flag.Duration("catalog-ttl", 30*time.Minute, "how long a fetched catalog stays fresh")
	swpcURL := flag.String("swpc-url", "", "NOAA SWPC base URL override")
	workers := flag.Int("workers", 4, "per-candidate scan fan-out")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	collector, err := observability.NewScreeningCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}

	scanner := core.NewScanner()

	server := httpapi.NewServer(scanner, log, collector)
	server.Catalog = catalog.NewCache(catalog.NewClient(*catalogURL), *catalogTTL)
	server.Weather = spaceweather.NewClient(*swpcURL)
	if *workers > 1 {
		server.Workers = *workers
	}

	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	apiSrv := &http.Server{
		Addr:         *apiAddr,
		Handler:      server.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	log.Info(ctx, "starting screening API server", logging.String("addr", *apiAddr))
	go func() {
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "API server exited", logging.String("error", err.Error()))
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(ctx, "API server shutdown failed", logging.String("error", err.Error()))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn(ctx, "metrics server shutdown failed", logging.String("error", err.Error()))
		}
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}

// serveMetrics exposes the Prometheus endpoint on its own listener so
// scrapes never contend with screening requests.
func serveMetrics(addr string, collector *observability.ScreeningCollector, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.MetricsHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()
	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
