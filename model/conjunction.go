package model

import "time"

// SafetyLevel classifies a conjunction by its estimated collision
// probability. Thresholds are strict: a probability of exactly 1e-4
// is HIGH, not CRITICAL.
type SafetyLevel string

const (
	SafetyCritical SafetyLevel = "CRITICAL"
	SafetyHigh     SafetyLevel = "HIGH"
	SafetyMedium   SafetyLevel = "MEDIUM"
	SafetyLow      SafetyLevel = "LOW"
	SafetyUnknown  SafetyLevel = "UNKNOWN"
)

// EncounterPlane is the 2D projection of the relative state onto the
// plane perpendicular to the relative velocity at closest approach.
type EncounterPlane struct {
	Mu2D [2]float64    `json:"mu_2d"`
	P2D  [2][2]float64 `json:"P_2d"`
}

// ProbabilityResult holds the collision probability estimate and its
// diagnostics for a single conjunction. When the underlying numerics
// fail (singular covariance, NaN inputs) Err carries the failure and
// the remaining fields are unreliable.
type ProbabilityResult struct {
	Pc2D                float64        `json:"pc_2d"`
	MahalanobisDistance float64        `json:"mahalanobis_distance"`
	EncounterPlane      EncounterPlane `json:"encounter_plane"`
	HBRMeters           float64        `json:"hbr_meters"`
	Err                 string         `json:"error,omitempty"`
}

// ManeuverSuggestion is a recommended operator action for a conjunction.
// It is pure function output keyed only on the probability value; two
// suggestions with the same fields are interchangeable.
type ManeuverSuggestion struct {
	Type                  string `json:"type"`
	Description           string `json:"description"`
	Timing                string `json:"timing"`
	DeltaVEstimate        string `json:"delta_v_estimate"`
	Direction             string `json:"direction"`
	Reason                string `json:"reason"`
	Priority              string `json:"priority"`
	FuelCost              string `json:"fuel_cost"`
	ExpectedEffectiveness string `json:"expected_effectiveness"`
}

// ConjunctionEvent is one close approach between the primary object and
// a catalog object. Events are only created when the minimum sampled
// distance is strictly below the screening threshold, and are immutable
// once built.
type ConjunctionEvent struct {
	OtherName     string    `json:"other_name"`
	MinDistanceKm float64   `json:"min_distance_km"`
	TCA           time.Time `json:"tca_utc"`
	RelSpeedKmS   float64   `json:"rel_speed_km_s"`
	CatalogIndex  int       `json:"catalog_index"`

	Probability *ProbabilityResult   `json:"collision_probability,omitempty"`
	SafetyLevel SafetyLevel          `json:"safety_level,omitempty"`
	Maneuvers   []ManeuverSuggestion `json:"maneuver_suggestions,omitempty"`
}
