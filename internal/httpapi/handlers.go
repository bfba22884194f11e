package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/conjunction-screener/core"
	"github.com/signalsfoundry/conjunction-screener/internal/catalog"
	"github.com/signalsfoundry/conjunction-screener/internal/logging"
	"github.com/signalsfoundry/conjunction-screener/internal/spaceweather"
	"github.com/signalsfoundry/conjunction-screener/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", UTC: s.now().UTC()})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	primary := model.TLE{Name: req.UserTLE.Name, Line1: req.UserTLE.TLE1, Line2: req.UserTLE.TLE2}
	if primary.Name == "" {
		primary.Name = "USER-SAT"
	}

	cat, err := s.catalogFor(req.CatalogURL).Fetch(ctx)
	if err != nil {
		s.log(ctx).Error(ctx, "catalog fetch failed", logging.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, fmt.Sprintf("catalog fetch failed: %v", err))
		return
	}

	events, stats, err := s.screen(ctx, primary, cat, req.scanConfig())
	if err != nil {
		if errors.Is(err, core.ErrSetup) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("screening error: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Events:       events,
		SpaceWeather: s.summarizeWeather(ctx),
		Suggestions:  quickSuggestions(events),
		Meta: AnalyzeMeta{
			CatalogSize:       stats.CatalogSize,
			CatalogURL:        orDefaultURL(req.CatalogURL),
			WindowHours:       req.scanConfig().Window.Hours(),
			CandidatesDropped: stats.CandidatesDropped,
			Incomplete:        stats.Incomplete,
			Notes:             "Sampled SGP4 screening; use covariances/CDMs for research-grade Pc.",
		},
	})
}

func (s *Server) handleAnalyzeFleet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req FleetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Satellites) == 0 {
		writeError(w, http.StatusBadRequest, "satellites list is empty")
		return
	}

	// Fleet analysis degrades to the built-in mini catalog rather than
	// failing when the upstream source is down.
	fallback := false
	cat, err := s.catalogFor(req.CatalogURL).Fetch(ctx)
	if err != nil {
		s.log(ctx).Warn(ctx, "catalog fetch failed; using fallback catalog",
			logging.String("error", err.Error()))
		cat = catalog.Fallback()
		fallback = true
	}

	cfg := req.scanConfig()
	results := make([]FleetSatelliteResult, 0, len(req.Satellites))
	catalogSize := len(cat)
	for _, sat := range req.Satellites {
		primary := model.TLE{Name: sat.Name, Line1: sat.TLE1, Line2: sat.TLE2}
		events, stats, err := s.screen(ctx, primary, cat, cfg)
		if err != nil {
			results = append(results, FleetSatelliteResult{
				SatelliteID:   sat.ID,
				SatelliteName: sat.Name,
				ThreatLevel:   "UNKNOWN",
				Err:           err.Error(),
			})
			continue
		}
		if stats.CatalogSize > 0 {
			catalogSize = stats.CatalogSize
		}
		results = append(results, FleetSatelliteResult{
			SatelliteID:   sat.ID,
			SatelliteName: sat.Name,
			Events:        events,
			Suggestions:   fleetSuggestions(events),
			ThreatLevel:   threatLevel(events),
		})
	}

	writeJSON(w, http.StatusOK, FleetResponse{
		Satellites:   results,
		SpaceWeather: s.summarizeWeather(ctx),
		Timestamp:    s.now().UTC(),
		Meta: FleetMeta{
			CatalogSize:        catalogSize,
			CatalogURL:         orDefaultURL(req.CatalogURL),
			WindowHours:        cfg.Window.Hours(),
			SatellitesAnalyzed: len(req.Satellites),
			CatalogFallback:    fallback,
		},
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	var req PositionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	now := s.now().UTC()
	positions := make([]SatellitePosition, 0, len(req.Satellites))
	for _, sat := range req.Satellites {
		entry := SatellitePosition{ID: sat.ID, Name: sat.Name, Timestamp: now}

		prop, err := s.Scanner.Source.NewPropagator(model.TLE{Name: sat.Name, Line1: sat.TLE1, Line2: sat.TLE2})
		if err == nil {
			var sv core.StateVector
			if sv, err = prop.StateAt(now); err == nil {
				lat, lon, alt := approxGeodetic(sv.Position)
				entry.Position = &Position{
					LatDeg: lat, LonDeg: lon, AltKm: alt,
					X: sv.Position.X, Y: sv.Position.Y, Z: sv.Position.Z,
					VX: sv.Velocity.X, VY: sv.Velocity.Y, VZ: sv.Velocity.Z,
				}
			}
		}
		if err != nil {
			entry.Err = err.Error()
		}
		positions = append(positions, entry)
	}

	writeJSON(w, http.StatusOK, PositionsResponse{Positions: positions, Timestamp: now})
}

// screen runs one scan with tracing and metrics around it. The scan
// start instant comes from the server clock so tests can pin it.
func (s *Server) screen(ctx context.Context, primary model.TLE, cat []model.TLE, cfg core.ScanConfig) ([]model.ConjunctionEvent, core.ScanStats, error) {
	if s.Workers > 1 {
		cfg.Workers = s.Workers
	}
	tracer := s.tracer
	if tracer == nil {
		tracer = otel.Tracer("httpapi")
	}
	ctx, span := tracer.Start(ctx, "screen", trace.WithAttributes(
		attribute.String("primary", primary.Name),
		attribute.Int("catalog_size", len(cat)),
	))
	defer span.End()

	began := time.Now()
	events, stats, err := s.Scanner.Screen(ctx, primary, cat, s.now().UTC(), cfg)
	elapsed := time.Since(began)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, stats, err
	}

	span.SetAttributes(
		attribute.Int("events", len(events)),
		attribute.Int("candidates_dropped", stats.CandidatesDropped),
	)
	s.Metrics.ObserveScreening(stats, len(events), elapsed)
	s.log(ctx).Info(ctx, "screening complete",
		logging.String("primary", primary.Name),
		logging.Int("catalog_size", stats.CatalogSize),
		logging.Int("events", len(events)),
		logging.Duration("elapsed", elapsed),
	)
	if events == nil {
		events = []model.ConjunctionEvent{}
	}
	return events, stats, nil
}

func (s *Server) summarizeWeather(ctx context.Context) spaceweather.Summary {
	if s.Weather == nil {
		return spaceweather.Summary{GeomagneticRisk: "unknown"}
	}
	return s.Weather.Summarize(ctx)
}

// quickSuggestions condenses the top events into short operator hints,
// keyed on miss distance alone.
func quickSuggestions(events []model.ConjunctionEvent) []QuickSuggestion {
	suggestions := []QuickSuggestion{}
	for i, ev := range events {
		if i >= 5 {
			break
		}
		switch {
		case ev.MinDistanceKm < 1.0:
			suggestions = append(suggestions, QuickSuggestion{
				EventWith: ev.OtherName,
				Action:    "Small out-of-plane Δv ~30 min before TCA.",
				Why:       "Increase miss distance; minimal phasing impact.",
			})
		case ev.MinDistanceKm < 3.0:
			suggestions = append(suggestions, QuickSuggestion{
				EventWith: ev.OtherName,
				Action:    "Along-track bias (advance/delay).",
				Why:       "Cheap maneuver to desynchronize TCA timing.",
			})
		}
	}
	return suggestions
}

// fleetSuggestions pairs each of the top events with its
// probability-driven maneuver recommendations.
func fleetSuggestions(events []model.ConjunctionEvent) []FleetEventSuggestion {
	suggestions := []FleetEventSuggestion{}
	for i, ev := range events {
		if i >= 10 {
			break
		}
		if len(ev.Maneuvers) == 0 {
			continue
		}
		suggestions = append(suggestions, FleetEventSuggestion{
			EventWith:   ev.OtherName,
			TCA:         ev.TCA,
			DistanceKm:  ev.MinDistanceKm,
			RelSpeedKmS: ev.RelSpeedKmS,
			Actions:     ev.Maneuvers,
		})
	}
	return suggestions
}

// threatLevel aggregates a satellite's events into a single tag by the
// closest approach distance.
func threatLevel(events []model.ConjunctionEvent) string {
	level := "LOW"
	if len(events) > 0 {
		level = "MEDIUM"
	}
	for _, ev := range events {
		if ev.MinDistanceKm < 1.0 {
			return "CRITICAL"
		}
		if ev.MinDistanceKm < 3.0 {
			level = "HIGH"
		}
	}
	return level
}

func orDefaultURL(url string) string {
	if url == "" {
		return catalog.DefaultURL
	}
	return url
}
