package core

import (
	"strings"

	"gonum.org/v1/gonum/mat"
)

// HBRModel estimates a physical envelope radius, in metres, for one
// object. It is a strategy point: the default classifies by name
// keywords, and a deployment with radar-derived sizes can substitute
// its own implementation without touching the probability math.
type HBRModel interface {
	RadiusMeters(name string) float64
}

// CovarianceModel supplies the 6×6 relative position/velocity
// covariance (km², (km/s)²) used when the caller does not provide one.
// Like HBRModel it exists so propagated covariances can be plugged in
// later.
type CovarianceModel interface {
	Relative(missDistanceKm, relSpeedKmS float64) *mat.SymDense
}

// KeywordHBRModel maps catalog names to coarse size classes:
// station-class keywords get a large radius, mega-constellation
// keywords a small one, everything else a default. The numbers are a
// documented heuristic, not measurements.
type KeywordHBRModel struct{}

var (
	stationKeywords       = []string{"ISS", "SPACE STATION", "TIANGONG"}
	constellationKeywords = []string{"STARLINK", "ONEWEB", "KEPLER"}
)

// RadiusMeters classifies name case-insensitively.
func (KeywordHBRModel) RadiusMeters(name string) float64 {
	upper := strings.ToUpper(name)
	for _, kw := range stationKeywords {
		if strings.Contains(upper, kw) {
			return 50.0
		}
	}
	for _, kw := range constellationKeywords {
		if strings.Contains(upper, kw) {
			return 3.0
		}
	}
	return 5.0
}

// CombinedHBRMeters returns the hard-body radius for a conjunction: the
// sum of both objects' envelope radii.
func CombinedHBRMeters(m HBRModel, name1, name2 string) float64 {
	return m.RadiusMeters(name1) + m.RadiusMeters(name2)
}

// HeuristicCovarianceModel synthesises a diagonal relative covariance
// scaled by the encounter geometry: position sigma is 10% of the miss
// distance (floored at 100 m), velocity sigma 5% of the relative speed
// (floored at 10 m/s).
type HeuristicCovarianceModel struct{}

// Relative builds the diagonal 6×6 matrix.
func (HeuristicCovarianceModel) Relative(missDistanceKm, relSpeedKmS float64) *mat.SymDense {
	sigmaPos := missDistanceKm * 0.1
	if sigmaPos < 0.1 {
		sigmaPos = 0.1
	}
	sigmaVel := relSpeedKmS * 0.05
	if sigmaVel < 0.01 {
		sigmaVel = 0.01
	}

	cov := mat.NewSymDense(6, nil)
	for i := 0; i < 3; i++ {
		cov.SetSym(i, i, sigmaPos*sigmaPos)
	}
	for i := 3; i < 6; i++ {
		cov.SetSym(i, i, sigmaVel*sigmaVel)
	}
	return cov
}
