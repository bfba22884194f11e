package httpapi

import (
	"time"

	"github.com/signalsfoundry/conjunction-screener/core"
	"github.com/signalsfoundry/conjunction-screener/internal/spaceweather"
	"github.com/signalsfoundry/conjunction-screener/model"
)

// UserTLE identifies the primary object in an analyze request.
type UserTLE struct {
	Name string `json:"name"`
	TLE1 string `json:"tle1"`
	TLE2 string `json:"tle2"`
}

// Satellite is one fleet member in multi-satellite requests.
type Satellite struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	TLE1  string `json:"tle1"`
	TLE2  string `json:"tle2"`
	Color string `json:"color,omitempty"`
}

// AnalyzeRequest screens a single object against the catalog.
type AnalyzeRequest struct {
	UserTLE    UserTLE `json:"user_tle"`
	CatalogURL string  `json:"catalog_url,omitempty"`

	WindowHours float64 `json:"window_hours,omitempty"`
	StepSeconds float64 `json:"step_seconds,omitempty"`
	ThresholdKm float64 `json:"threshold_km,omitempty"`
	MaxCatalog  int     `json:"max_catalog,omitempty"`

	// IncludeProbability defaults to true when omitted.
	IncludeProbability *bool `json:"include_collision_probability,omitempty"`
}

// scanConfig translates request parameters into an engine config,
// substituting the service defaults for omitted fields.
func (r AnalyzeRequest) scanConfig() core.ScanConfig {
	cfg := core.DefaultScanConfig()
	if r.WindowHours > 0 {
		cfg.Window = time.Duration(r.WindowHours * float64(time.Hour))
	}
	if r.StepSeconds > 0 {
		cfg.Step = time.Duration(r.StepSeconds * float64(time.Second))
	}
	if r.ThresholdKm > 0 {
		cfg.ThresholdKm = r.ThresholdKm
	}
	if r.MaxCatalog > 0 {
		cfg.MaxCatalog = r.MaxCatalog
	}
	if r.IncludeProbability != nil {
		cfg.WithProbability = *r.IncludeProbability
	}
	return cfg
}

// QuickSuggestion is the compact advisory attached to the top events of
// a single-object analysis.
type QuickSuggestion struct {
	EventWith string `json:"event_with"`
	Action    string `json:"action"`
	Why       string `json:"why"`
}

// AnalyzeMeta describes how a screening was run.
type AnalyzeMeta struct {
	CatalogSize       int     `json:"catalog_size"`
	CatalogURL        string  `json:"catalog_url"`
	WindowHours       float64 `json:"window_hours"`
	CandidatesDropped int     `json:"candidates_dropped"`
	Incomplete        bool    `json:"incomplete,omitempty"`
	Notes             string  `json:"notes,omitempty"`
}

// AnalyzeResponse is the single-object screening result.
type AnalyzeResponse struct {
	Events       []model.ConjunctionEvent `json:"events"`
	SpaceWeather spaceweather.Summary     `json:"space_weather"`
	Suggestions  []QuickSuggestion        `json:"suggestions"`
	Meta         AnalyzeMeta              `json:"meta"`
}

// FleetRequest screens several satellites against the same catalog.
type FleetRequest struct {
	Satellites []Satellite `json:"satellites"`
	CatalogURL string      `json:"catalog_url,omitempty"`

	WindowHours float64 `json:"window_hours,omitempty"`
	StepSeconds float64 `json:"step_seconds,omitempty"`
	ThresholdKm float64 `json:"threshold_km,omitempty"`
	MaxCatalog  int     `json:"max_catalog,omitempty"`

	IncludeProbability *bool `json:"include_collision_probability,omitempty"`
}

func (r FleetRequest) scanConfig() core.ScanConfig {
	return AnalyzeRequest{
		WindowHours:        r.WindowHours,
		StepSeconds:        r.StepSeconds,
		ThresholdKm:        r.ThresholdKm,
		MaxCatalog:         r.MaxCatalog,
		IncludeProbability: r.IncludeProbability,
	}.scanConfig()
}

// FleetEventSuggestion pairs one event with its recommended actions.
type FleetEventSuggestion struct {
	EventWith   string                     `json:"event_with"`
	TCA         time.Time                  `json:"tca"`
	DistanceKm  float64                    `json:"distance_km"`
	RelSpeedKmS float64                    `json:"rel_speed_km_s"`
	Actions     []model.ManeuverSuggestion `json:"actions"`
}

// FleetSatelliteResult is the per-satellite block of a fleet analysis.
// Err is set (and the other fields empty) when that satellite's scan
// failed; one bad satellite never fails the whole request.
type FleetSatelliteResult struct {
	SatelliteID   string                   `json:"satellite_id"`
	SatelliteName string                   `json:"satellite_name"`
	Events        []model.ConjunctionEvent `json:"events,omitempty"`
	Suggestions   []FleetEventSuggestion   `json:"suggestions,omitempty"`
	ThreatLevel   string                   `json:"threat_level"`
	Err           string                   `json:"error,omitempty"`
}

// FleetMeta describes a fleet analysis run.
type FleetMeta struct {
	CatalogSize        int     `json:"catalog_size"`
	CatalogURL         string  `json:"catalog_url"`
	WindowHours        float64 `json:"window_hours"`
	SatellitesAnalyzed int     `json:"satellites_analyzed"`
	CatalogFallback    bool    `json:"catalog_fallback,omitempty"`
}

// FleetResponse is the multi-satellite screening result.
type FleetResponse struct {
	Satellites   []FleetSatelliteResult `json:"satellites"`
	SpaceWeather spaceweather.Summary   `json:"space_weather"`
	Timestamp    time.Time              `json:"timestamp"`
	Meta         FleetMeta              `json:"meta"`
}

// PositionsRequest asks for the current state of several satellites.
type PositionsRequest struct {
	Satellites []Satellite `json:"satellites"`
}

// Position is the display-oriented state of one satellite: the raw TEME
// state plus an approximate geodetic conversion.
type Position struct {
	LatDeg float64 `json:"lat"`
	LonDeg float64 `json:"lon"`
	AltKm  float64 `json:"alt"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	VZ     float64 `json:"vz"`
}

// SatellitePosition is the per-satellite block of a positions response.
type SatellitePosition struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Position  *Position `json:"position,omitempty"`
	Err       string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PositionsResponse reports fleet positions at one instant.
type PositionsResponse struct {
	Positions []SatellitePosition `json:"positions"`
	Timestamp time.Time           `json:"timestamp"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status string    `json:"status"`
	UTC    time.Time `json:"utc"`
}
