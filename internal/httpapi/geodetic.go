package httpapi

import (
	"math"

	"github.com/signalsfoundry/conjunction-screener/core"
)

// approxGeodetic converts a TEME position to display-grade latitude,
// longitude (degrees), and altitude above the mean Earth radius (km).
// It ignores Earth rotation and oblateness; it exists for dashboards,
// not for navigation.
func approxGeodetic(pos core.Vec3) (latDeg, lonDeg, altKm float64) {
	r := pos.Norm()
	if r == 0 {
		return 0, 0, -core.EarthRadiusKm
	}
	latDeg = math.Asin(pos.Z/r) * 180 / math.Pi
	lonDeg = math.Atan2(pos.Y, pos.X) * 180 / math.Pi
	altKm = r - core.EarthRadiusKm
	return latDeg, lonDeg, altKm
}
