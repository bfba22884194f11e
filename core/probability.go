package core

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/conjunction-screener/model"
)

// regularizationEpsilon is added to the diagonal of an encounter-plane
// covariance that is not positive definite before factorisation.
const regularizationEpsilon = 1e-6

// Safety classification thresholds on Pc. All comparisons are strict:
// exactly 1e-4 classifies HIGH, not CRITICAL.
const (
	pcCritical = 1e-4
	pcHigh     = 1e-5
	pcMedium   = 1e-6
)

var errDegenerateVelocity = errors.New("relative velocity is zero; encounter plane undefined")

// ProbabilityEstimator turns the relative state at closest approach
// into a 2D collision probability with diagnostics. The probability is
// a closed-form surrogate for the Gaussian integral over the hard-body
// disk; its branch structure is part of the contract and is not an
// exact integral in all regimes.
type ProbabilityEstimator struct {
	HBR        HBRModel
	Covariance CovarianceModel
}

// NewProbabilityEstimator returns an estimator with the keyword HBR
// classifier and the heuristic covariance synthesiser.
func NewProbabilityEstimator() *ProbabilityEstimator {
	return &ProbabilityEstimator{
		HBR:        KeywordHBRModel{},
		Covariance: HeuristicCovarianceModel{},
	}
}

// EncounterBasis is the right-handed orthonormal triple {U, E1, E2}
// where U points along the relative velocity and {E1, E2} span the
// encounter plane.
type EncounterBasis struct {
	U, E1, E2 Vec3
}

// NewEncounterBasis builds the basis from the relative velocity. The
// reference axis for the first cross product is Z unless the relative
// velocity is nearly parallel to Z (|u·z| >= 0.9), in which case X is
// used to avoid a degenerate cross product.
func NewEncounterBasis(vRel Vec3) (EncounterBasis, error) {
	if vRel.Norm() == 0 {
		return EncounterBasis{}, errDegenerateVelocity
	}
	u := vRel.Unit()

	ref := Vec3{Z: 1}
	if math.Abs(u.Z) >= 0.9 {
		ref = Vec3{X: 1}
	}
	e1 := u.Cross(ref).Unit()
	e2 := u.Cross(e1).Unit()
	return EncounterBasis{U: u, E1: e1, E2: e2}, nil
}

// Estimate computes the probability block for one conjunction. relCov
// may be nil, in which case the estimator's CovarianceModel synthesises
// one from the encounter geometry. Numerical failures never escalate:
// they come back as an error-marked result with SafetyUnknown.
func (e *ProbabilityEstimator) Estimate(rRel, vRel Vec3, primaryName, otherName string, relCov *mat.SymDense) (*model.ProbabilityResult, model.SafetyLevel) {
	hbrMeters := CombinedHBRMeters(e.HBR, primaryName, otherName)
	missKm := rRel.Norm()
	speedKmS := vRel.Norm()

	result := &model.ProbabilityResult{HBRMeters: hbrMeters}

	if relCov == nil {
		relCov = e.Covariance.Relative(missKm, speedKmS)
	}
	if relCov.SymmetricDim() < 3 {
		result.Err = "relative covariance must be at least 3x3"
		return result, model.SafetyUnknown
	}

	basis, err := NewEncounterBasis(vRel)
	if err != nil {
		result.Err = err.Error()
		return result, model.SafetyUnknown
	}

	mu2D := [2]float64{basis.E1.Dot(rRel), basis.E2.Dot(rRel)}
	p2D := projectCovariance(basis, relCov)

	result.EncounterPlane = model.EncounterPlane{Mu2D: mu2D, P2D: p2D}
	result.MahalanobisDistance = mahalanobis(mu2D, p2D)

	pc, err := collisionProbability2D(mu2D, p2D, hbrMeters/1000.0)
	if err != nil {
		result.Err = err.Error()
		return result, model.SafetyUnknown
	}
	result.Pc2D = pc
	return result, SafetyFromPc(pc)
}

// SafetyFromPc maps a probability to a safety level using strict
// threshold comparisons.
func SafetyFromPc(pc float64) model.SafetyLevel {
	switch {
	case pc > pcCritical:
		return model.SafetyCritical
	case pc > pcHigh:
		return model.SafetyHigh
	case pc > pcMedium:
		return model.SafetyMedium
	default:
		return model.SafetyLow
	}
}

// projectCovariance maps the 3×3 position block of the relative
// covariance into the encounter plane: P_2d = E · P_pos · Eᵀ with E
// rows e1, e2.
func projectCovariance(basis EncounterBasis, relCov *mat.SymDense) [2][2]float64 {
	pPos := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			pPos.Set(i, j, relCov.At(i, j))
		}
	}
	proj := mat.NewDense(2, 3, []float64{
		basis.E1.X, basis.E1.Y, basis.E1.Z,
		basis.E2.X, basis.E2.Y, basis.E2.Z,
	})

	var p2 mat.Dense
	p2.Product(proj, pPos, proj.T())

	// Symmetrise: the product is symmetric up to floating-point noise.
	offDiag := (p2.At(0, 1) + p2.At(1, 0)) / 2
	return [2][2]float64{
		{p2.At(0, 0), offDiag},
		{offDiag, p2.At(1, 1)},
	}
}

// collisionProbability2D evaluates the closed-form surrogate over the
// hard-body disk of radius hbrKm. The covariance is regularised when it
// is not positive definite and the result is clamped to [0, 1].
func collisionProbability2D(mu2D [2]float64, p2D [2][2]float64, hbrKm float64) (float64, error) {
	sym := mat.NewSymDense(2, []float64{
		p2D[0][0], p2D[0][1],
		p2D[0][1], p2D[1][1],
	})

	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		return 0, errors.New("encounter covariance eigendecomposition failed")
	}
	vals := eig.Values(nil)
	if vals[0] <= 0 || vals[1] <= 0 {
		sym.SetSym(0, 0, sym.At(0, 0)+regularizationEpsilon)
		sym.SetSym(1, 1, sym.At(1, 1)+regularizationEpsilon)
	}

	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return 0, errors.New("encounter covariance is not positive definite")
	}

	// Whitened Mahalanobis distance of the projected mean.
	mu := mat.NewVecDense(2, []float64{mu2D[0], mu2D[1]})
	var solved mat.VecDense
	if err := chol.SolveVecTo(&solved, mu); err != nil {
		return 0, err
	}
	d := math.Sqrt(mat.Dot(mu, &solved))
	det := chol.Det()

	var pc float64
	if d == 0 {
		pc = 1 - math.Exp(-0.5*hbrKm*hbrKm/det)
	} else {
		sigmaEff := math.Sqrt(det)
		rNorm := hbrKm / sigmaEff
		if d < rNorm {
			pc = 1 - math.Exp(-0.5*rNorm*rNorm)*(1+0.5*rNorm*rNorm)
		} else {
			pc = math.Exp(-0.5*(d-rNorm)*(d-rNorm)) * (1 - math.Exp(-0.5*rNorm*rNorm))
		}
	}

	if math.IsNaN(pc) {
		return 0, errors.New("collision probability evaluated to NaN")
	}
	return math.Max(0, math.Min(1, pc)), nil
}

// mahalanobis is the covariance-normalised miss distance diagnostic. It
// uses the unregularised encounter covariance and returns +Inf when the
// matrix cannot be inverted; it is independent of the clamped Pc.
func mahalanobis(mu2D [2]float64, p2D [2][2]float64) float64 {
	det := p2D[0][0]*p2D[1][1] - p2D[0][1]*p2D[1][0]
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return math.Inf(1)
	}
	inv00 := p2D[1][1] / det
	inv01 := -p2D[0][1] / det
	inv11 := p2D[0][0] / det

	q := mu2D[0]*mu2D[0]*inv00 + 2*mu2D[0]*mu2D[1]*inv01 + mu2D[1]*mu2D[1]*inv11
	if q < 0 || math.IsNaN(q) {
		return math.Inf(1)
	}
	return math.Sqrt(q)
}
