package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/conjunction-screener/model"
)

const floatTol = 1e-12

func TestNewEncounterBasisOrthonormal(t *testing.T) {
	basis, err := NewEncounterBasis(Vec3{X: 3, Y: -1, Z: 2})
	if err != nil {
		t.Fatalf("NewEncounterBasis: %v", err)
	}

	for name, v := range map[string]Vec3{"U": basis.U, "E1": basis.E1, "E2": basis.E2} {
		if n := v.Norm(); math.Abs(n-1) > 1e-9 {
			t.Errorf("|%s| = %v, want 1", name, n)
		}
	}
	if d := basis.U.Dot(basis.E1); math.Abs(d) > 1e-9 {
		t.Errorf("U·E1 = %v, want 0", d)
	}
	if d := basis.U.Dot(basis.E2); math.Abs(d) > 1e-9 {
		t.Errorf("U·E2 = %v, want 0", d)
	}
	if d := basis.E1.Dot(basis.E2); math.Abs(d) > 1e-9 {
		t.Errorf("E1·E2 = %v, want 0", d)
	}
}

// TestNewEncounterBasisAxialVelocity checks the reference-axis fallback:
// a relative velocity along Z must still produce an orthonormal basis
// instead of a degenerate cross product.
func TestNewEncounterBasisAxialVelocity(t *testing.T) {
	basis, err := NewEncounterBasis(Vec3{Z: 7.5})
	if err != nil {
		t.Fatalf("NewEncounterBasis: %v", err)
	}
	if basis.E1 != (Vec3{Y: 1}) {
		t.Errorf("E1 = %+v, want {0 1 0}", basis.E1)
	}
	if basis.E2 != (Vec3{X: -1}) {
		t.Errorf("E2 = %+v, want {-1 0 0}", basis.E2)
	}
}

func TestNewEncounterBasisZeroVelocity(t *testing.T) {
	if _, err := NewEncounterBasis(Vec3{}); err == nil {
		t.Fatal("NewEncounterBasis accepted a zero relative velocity")
	}
}

func TestSafetyFromPcStrictBoundaries(t *testing.T) {
	cases := []struct {
		pc   float64
		want model.SafetyLevel
	}{
		{2e-4, model.SafetyCritical},
		{1e-4, model.SafetyHigh}, // exactly at the boundary falls down a tier
		{2e-5, model.SafetyHigh},
		{1e-5, model.SafetyMedium},
		{2e-6, model.SafetyMedium},
		{1e-6, model.SafetyLow},
		{0, model.SafetyLow},
	}
	for _, tc := range cases {
		if got := SafetyFromPc(tc.pc); got != tc.want {
			t.Errorf("SafetyFromPc(%g) = %s, want %s", tc.pc, got, tc.want)
		}
	}
}

func TestCollisionProbabilityHeadOnBranch(t *testing.T) {
	p2D := [2][2]float64{{0.01, 0}, {0, 0.01}}
	pc, err := collisionProbability2D([2]float64{0, 0}, p2D, 0.01)
	if err != nil {
		t.Fatalf("collisionProbability2D: %v", err)
	}
	want := 1 - math.Exp(-0.5) // hbr²/det = 1e-4/1e-4
	if math.Abs(pc-want) > floatTol {
		t.Fatalf("head-on Pc = %v, want %v", pc, want)
	}
}

func TestCollisionProbabilityInsideRadiusBranch(t *testing.T) {
	p2D := [2][2]float64{{1, 0}, {0, 1}}
	pc, err := collisionProbability2D([2]float64{1, 0}, p2D, 2)
	if err != nil {
		t.Fatalf("collisionProbability2D: %v", err)
	}
	// d=1 < rNorm=2: 1 - exp(-rNorm²/2)·(1 + rNorm²/2)
	want := 1 - math.Exp(-2)*3
	if math.Abs(pc-want) > floatTol {
		t.Fatalf("inside-radius Pc = %v, want %v", pc, want)
	}
}

func TestCollisionProbabilityTailBranch(t *testing.T) {
	p2D := [2][2]float64{{1, 0}, {0, 1}}
	pc, err := collisionProbability2D([2]float64{3, 0}, p2D, 0.5)
	if err != nil {
		t.Fatalf("collisionProbability2D: %v", err)
	}
	// d=3 >= rNorm=0.5
	want := math.Exp(-0.5*2.5*2.5) * (1 - math.Exp(-0.5*0.25))
	if math.Abs(pc-want) > floatTol {
		t.Fatalf("tail Pc = %v, want %v", pc, want)
	}
	if pc < 0 || pc > 1 {
		t.Fatalf("Pc = %v outside [0,1]", pc)
	}
}

// TestCollisionProbabilityRegularizesDegenerateCovariance feeds an
// all-zero encounter covariance; the diagonal bump must make the
// factorisation succeed and the result stay in range.
func TestCollisionProbabilityRegularizesDegenerateCovariance(t *testing.T) {
	pc, err := collisionProbability2D([2]float64{0.1, 0}, [2][2]float64{}, 0.01)
	if err != nil {
		t.Fatalf("collisionProbability2D: %v", err)
	}
	if math.IsNaN(pc) || pc < 0 || pc > 1 {
		t.Fatalf("regularised Pc = %v, want a value in [0,1]", pc)
	}
}

func TestMahalanobis(t *testing.T) {
	d := mahalanobis([2]float64{3, 4}, [2][2]float64{{1, 0}, {0, 1}})
	if math.Abs(d-5) > floatTol {
		t.Fatalf("mahalanobis = %v, want 5", d)
	}
}

func TestMahalanobisSingularCovariance(t *testing.T) {
	d := mahalanobis([2]float64{1, 1}, [2][2]float64{{1, 1}, {1, 1}})
	if !math.IsInf(d, 1) {
		t.Fatalf("mahalanobis on singular covariance = %v, want +Inf", d)
	}
}

func TestEstimateWithSuppliedCovariance(t *testing.T) {
	e := NewProbabilityEstimator()

	rRel := Vec3{Y: 2}
	vRel := Vec3{X: 7.5}
	cov := mat.NewSymDense(3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})

	result, level := e.Estimate(rRel, vRel, "A", "B", cov)
	if result.Err != "" {
		t.Fatalf("Estimate error: %s", result.Err)
	}
	if result.HBRMeters != 10 {
		t.Errorf("HBRMeters = %v, want 10 (two default envelopes)", result.HBRMeters)
	}
	// Identity position covariance projects to the identity plane
	// covariance, so the Mahalanobis distance is the miss distance.
	if math.Abs(result.MahalanobisDistance-2) > 1e-9 {
		t.Errorf("MahalanobisDistance = %v, want 2", result.MahalanobisDistance)
	}
	p := result.EncounterPlane.P2D
	if math.Abs(p[0][0]-1) > 1e-9 || math.Abs(p[1][1]-1) > 1e-9 || math.Abs(p[0][1]) > 1e-9 {
		t.Errorf("P2D = %v, want identity", p)
	}
	if level != SafetyFromPc(result.Pc2D) {
		t.Errorf("level = %s, inconsistent with Pc %g", level, result.Pc2D)
	}
}

func TestEstimateSynthesisesCovariance(t *testing.T) {
	e := NewProbabilityEstimator()

	result, level := e.Estimate(Vec3{X: 0.5}, Vec3{Y: 7}, "ISS (ZARYA)", "STARLINK-3042", nil)
	if result.Err != "" {
		t.Fatalf("Estimate error: %s", result.Err)
	}
	if result.HBRMeters != 53 {
		t.Errorf("HBRMeters = %v, want 53 (station + constellation)", result.HBRMeters)
	}
	if result.Pc2D < 0 || result.Pc2D > 1 {
		t.Errorf("Pc2D = %v outside [0,1]", result.Pc2D)
	}
	if level == model.SafetyUnknown {
		t.Error("level = UNKNOWN for a clean estimate")
	}
}

func TestEstimateZeroRelativeVelocity(t *testing.T) {
	e := NewProbabilityEstimator()
	result, level := e.Estimate(Vec3{X: 1}, Vec3{}, "A", "B", nil)
	if result.Err == "" {
		t.Fatal("Estimate accepted a zero relative velocity")
	}
	if level != model.SafetyUnknown {
		t.Fatalf("level = %s, want UNKNOWN", level)
	}
}

func TestEstimateRejectsSmallCovariance(t *testing.T) {
	e := NewProbabilityEstimator()
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	result, level := e.Estimate(Vec3{X: 1}, Vec3{Y: 7}, "A", "B", cov)
	if result.Err == "" {
		t.Fatal("Estimate accepted a 2x2 relative covariance")
	}
	if level != model.SafetyUnknown {
		t.Fatalf("level = %s, want UNKNOWN", level)
	}
}
