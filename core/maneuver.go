package core

import "github.com/signalsfoundry/conjunction-screener/model"

// SuggestManeuvers maps a collision probability to zero or one
// recommended actions, evaluated from the highest threshold down. It is
// pure and stateless: same probability, same suggestion. Probabilities
// at or below the monitoring threshold produce nothing.
func SuggestManeuvers(pc float64) []model.ManeuverSuggestion {
	switch {
	case pc > pcCritical:
		return []model.ManeuverSuggestion{{
			Type:                  "out_of_plane_maneuver",
			Description:           "Execute small out-of-plane Δv maneuver",
			Timing:                "30 minutes before TCA",
			DeltaVEstimate:        "0.5-1.5 m/s",
			Direction:             "Cross-track (out-of-plane)",
			Reason:                "Increase miss distance; minimal phasing impact",
			Priority:              "CRITICAL",
			FuelCost:              "Low",
			ExpectedEffectiveness: "High",
		}}
	case pc > pcHigh:
		return []model.ManeuverSuggestion{{
			Type:                  "along_track_maneuver",
			Description:           "Execute along-track bias maneuver",
			Timing:                "1-2 hours before TCA",
			DeltaVEstimate:        "0.2-0.8 m/s",
			Direction:             "Along-track",
			Reason:                "Desynchronize TCA timing with minimal fuel expenditure",
			Priority:              "HIGH",
			FuelCost:              "Very Low",
			ExpectedEffectiveness: "Medium",
		}}
	case pc > pcMedium:
		return []model.ManeuverSuggestion{{
			Type:                  "monitor",
			Description:           "Continue monitoring conjunction",
			Timing:                "Continuous",
			DeltaVEstimate:        "0 m/s",
			Direction:             "None",
			Reason:                "Distance acceptable but requires monitoring",
			Priority:              "MEDIUM",
			FuelCost:              "None",
			ExpectedEffectiveness: "N/A",
		}}
	default:
		return nil
	}
}
