package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/conjunction-screener/internal/catalog"
	"github.com/signalsfoundry/conjunction-screener/internal/spaceweather"
	"github.com/signalsfoundry/conjunction-screener/model"
)

// The test clock sits near the element-set epoch so SGP4 solutions stay
// well-conditioned.
var testNow = time.Date(2024, time.October, 24, 12, 0, 0, 0, time.UTC)

const (
	issLine1 = "1 25544U 98067A   24298.50000000  .00016717  00000+0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 208.9163 0006317  69.9862 320.6634 15.50192628473224"
)

type staticCatalog []model.TLE

func (c staticCatalog) Fetch(ctx context.Context) ([]model.TLE, error) { return c, nil }

type failingCatalog struct{}

func (failingCatalog) Fetch(ctx context.Context) ([]model.TLE, error) {
	return nil, errors.New("upstream unreachable")
}

type staticWeather spaceweather.Summary

func (w staticWeather) Summarize(ctx context.Context) spaceweather.Summary {
	return spaceweather.Summary(w)
}

func newTestServer(cat catalog.Fetcher) *Server {
	s := NewServer(nil, nil, nil)
	s.Catalog = cat
	s.Weather = staticWeather{GeomagneticRisk: "nominal"}
	s.Now = func() time.Time { return testNow }
	return s
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(staticCatalog(catalog.Fallback()))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if health.Status != "ok" || !health.UTC.Equal(testNow) {
		t.Fatalf("health = %+v, want ok at the pinned clock", health)
	}
}

func TestHandleAnalyze(t *testing.T) {
	// The catalog carries the same elements as the primary, so the
	// screening is guaranteed a zero-distance event, plus one distant
	// object that stays below threshold.
	s := newTestServer(staticCatalog(catalog.Fallback()))

	falseVal := false
	rec := postJSON(t, s.Routes(), "/v1/analyze", AnalyzeRequest{
		UserTLE:            UserTLE{Name: "MY-SAT", TLE1: issLine1, TLE2: issLine2},
		WindowHours:        0.25,
		IncludeProbability: &falseVal,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(resp.Events), resp.Events)
	}
	ev := resp.Events[0]
	if ev.OtherName != "ISS (ZARYA)" {
		t.Errorf("event with %q, want ISS (ZARYA)", ev.OtherName)
	}
	if ev.MinDistanceKm != 0 {
		t.Errorf("MinDistanceKm = %v, want 0 for identical elements", ev.MinDistanceKm)
	}
	if ev.Probability != nil {
		t.Errorf("Probability populated despite include_collision_probability=false")
	}
	if len(resp.Suggestions) != 1 || !strings.Contains(resp.Suggestions[0].Action, "out-of-plane") {
		t.Errorf("Suggestions = %+v, want one out-of-plane hint", resp.Suggestions)
	}
	if resp.Meta.CatalogSize != 2 || resp.Meta.CatalogURL != catalog.DefaultURL {
		t.Errorf("Meta = %+v, want catalog size 2 at the default URL", resp.Meta)
	}
	if resp.Meta.WindowHours != 0.25 {
		t.Errorf("Meta.WindowHours = %v, want 0.25", resp.Meta.WindowHours)
	}
	if resp.SpaceWeather.GeomagneticRisk != "nominal" {
		t.Errorf("GeomagneticRisk = %q, want nominal from the stub", resp.SpaceWeather.GeomagneticRisk)
	}
}

// TestHandleAnalyzeDegenerateProbability screens against identical
// elements with the probability pipeline on: the zero relative velocity
// must surface as an error-marked result, not a failed request.
func TestHandleAnalyzeDegenerateProbability(t *testing.T) {
	s := newTestServer(staticCatalog(catalog.Fallback()))

	rec := postJSON(t, s.Routes(), "/v1/analyze", AnalyzeRequest{
		UserTLE:     UserTLE{Name: "MY-SAT", TLE1: issLine1, TLE2: issLine2},
		WindowHours: 0.25,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(resp.Events))
	}
	ev := resp.Events[0]
	if ev.Probability == nil || ev.Probability.Err == "" {
		t.Fatalf("Probability = %+v, want an error-marked result", ev.Probability)
	}
	if ev.SafetyLevel != model.SafetyUnknown {
		t.Errorf("SafetyLevel = %s, want UNKNOWN", ev.SafetyLevel)
	}
}

func TestHandleAnalyzeBadBody(t *testing.T) {
	s := newTestServer(staticCatalog(catalog.Fallback()))
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleAnalyzeBadPrimary(t *testing.T) {
	s := newTestServer(staticCatalog(catalog.Fallback()))
	rec := postJSON(t, s.Routes(), "/v1/analyze", AnalyzeRequest{
		UserTLE: UserTLE{Name: "JUNK", TLE1: "garbage", TLE2: "garbage"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for an unusable primary: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleAnalyzeCatalogFailure(t *testing.T) {
	s := newTestServer(failingCatalog{})
	rec := postJSON(t, s.Routes(), "/v1/analyze", AnalyzeRequest{
		UserTLE: UserTLE{Name: "MY-SAT", TLE1: issLine1, TLE2: issLine2},
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 when the catalog is unreachable", rec.Code)
	}
}

// TestHandleAnalyzeFleet covers the fleet degradations: a dead catalog
// source falls back to the built-in mini catalog, and one bad satellite
// is reported inline without failing the others.
func TestHandleAnalyzeFleet(t *testing.T) {
	s := newTestServer(failingCatalog{})

	rec := postJSON(t, s.Routes(), "/v1/analyze-fleet", FleetRequest{
		Satellites: []Satellite{
			{ID: "sat-1", Name: "GOOD", TLE1: issLine1, TLE2: issLine2},
			{ID: "sat-2", Name: "BAD", TLE1: "nope", TLE2: "nope"},
		},
		WindowHours: 0.25,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp FleetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Meta.CatalogFallback {
		t.Error("Meta.CatalogFallback = false, want true with a dead upstream")
	}
	if resp.Meta.SatellitesAnalyzed != 2 || len(resp.Satellites) != 2 {
		t.Fatalf("got %d results for %d analyzed, want 2/2",
			len(resp.Satellites), resp.Meta.SatellitesAnalyzed)
	}

	good, bad := resp.Satellites[0], resp.Satellites[1]
	if good.Err != "" {
		t.Fatalf("good satellite errored: %s", good.Err)
	}
	// The fallback catalog carries the same ISS elements, so the good
	// satellite sees a zero-distance event.
	if len(good.Events) != 1 || good.ThreatLevel != "CRITICAL" {
		t.Errorf("good = %d events, threat %s; want 1 event, CRITICAL",
			len(good.Events), good.ThreatLevel)
	}
	if bad.Err == "" || bad.ThreatLevel != "UNKNOWN" {
		t.Errorf("bad = %+v, want inline error with UNKNOWN threat", bad)
	}
}

func TestHandleAnalyzeFleetEmpty(t *testing.T) {
	s := newTestServer(staticCatalog(catalog.Fallback()))
	rec := postJSON(t, s.Routes(), "/v1/analyze-fleet", FleetRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for an empty fleet", rec.Code)
	}
}

func TestHandlePositions(t *testing.T) {
	s := newTestServer(staticCatalog(catalog.Fallback()))

	rec := postJSON(t, s.Routes(), "/v1/positions", PositionsRequest{
		Satellites: []Satellite{
			{ID: "sat-1", Name: "GOOD", TLE1: issLine1, TLE2: issLine2},
			{ID: "sat-2", Name: "BAD", TLE1: "nope", TLE2: "nope"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp PositionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Timestamp.Equal(testNow) {
		t.Errorf("Timestamp = %v, want the pinned clock", resp.Timestamp)
	}
	if len(resp.Positions) != 2 {
		t.Fatalf("got %d positions, want 2", len(resp.Positions))
	}

	good, bad := resp.Positions[0], resp.Positions[1]
	if good.Err != "" || good.Position == nil {
		t.Fatalf("good position = %+v, want a populated state", good)
	}
	if alt := good.Position.AltKm; alt < 200 || alt > 800 {
		t.Errorf("AltKm = %v, want a LEO altitude", alt)
	}
	if lat := good.Position.LatDeg; lat < -90 || lat > 90 {
		t.Errorf("LatDeg = %v outside [-90, 90]", lat)
	}
	if bad.Err == "" || bad.Position != nil {
		t.Errorf("bad position = %+v, want an inline error", bad)
	}
}

func TestRequestIDEcho(t *testing.T) {
	s := newTestServer(staticCatalog(catalog.Fallback()))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("X-Request-Id = %q, want the caller's id echoed", got)
	}

	// Without a caller id the middleware mints one.
	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("X-Request-Id missing on response")
	}
}
