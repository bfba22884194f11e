package core

import (
	"errors"
	"fmt"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/conjunction-screener/model"
)

// ErrSetup marks fatal screening setup failures, such as a malformed
// primary element set. Every other propagation failure is contained at
// sample or candidate scope and never carries this sentinel.
var ErrSetup = errors.New("screening setup failed")

// StateVector is an instantaneous position/velocity pair in the TEME
// frame (km, km/s). It is produced per propagation call and never
// cached across calls.
type StateVector struct {
	Position Vec3
	Velocity Vec3
}

// Propagator answers stateless, reentrant state queries for one element
// set. Implementations must be safe for concurrent read-only use so the
// scanner can fan candidates out across workers.
type Propagator interface {
	// StateAt returns the object's state at t, or an error when the
	// model cannot produce a usable state for that instant.
	StateAt(t time.Time) (StateVector, error)
}

// PropagatorSource builds a Propagator for an element set. Construction
// errors indicate the element set itself is unusable; the scanner drops
// catalog objects whose construction fails and aborts only when the
// primary's fails.
type PropagatorSource interface {
	NewPropagator(tle model.TLE) (Propagator, error)
}

// SGP4Source builds SGP4-backed propagators using the WGS72 gravity
// model, matching the constants the element sets are fitted against.
type SGP4Source struct{}

// NewPropagator parses the element lines into an SGP4 model. The
// underlying parser panics on malformed numeric fields, so the panic is
// converted into an ordinary error here.
func (SGP4Source) NewPropagator(tle model.TLE) (p Propagator, err error) {
	if !tle.HasValidFormat() {
		return nil, fmt.Errorf("element set %q: lines must start with %q and %q", tle.Name, "1 ", "2 ")
	}
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("element set %q: parse failed: %v", tle.Name, r)
		}
	}()
	sat := satellite.TLEToSat(tle.Line1, tle.Line2, satellite.GravityWGS72)
	return &sgp4Propagator{sat: sat}, nil
}

type sgp4Propagator struct {
	sat satellite.Satellite
}

// StateAt propagates to t (truncated to whole UTC seconds, the
// resolution the SGP4 wrapper accepts) and returns the TEME state in
// km and km/s. Decayed or diverged solutions come back as NaN from the
// model and are reported as errors.
func (m *sgp4Propagator) StateAt(t time.Time) (StateVector, error) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	pos, vel := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	sv := StateVector{
		Position: Vec3{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: Vec3{X: vel.X, Y: vel.Y, Z: vel.Z},
	}
	if !sv.Position.IsFinite() || !sv.Velocity.IsFinite() {
		return StateVector{}, fmt.Errorf("propagation produced non-finite state at %s", t.Format(time.RFC3339))
	}
	if sv.Position.Norm() == 0 {
		return StateVector{}, fmt.Errorf("propagation produced degenerate state at %s", t.Format(time.RFC3339))
	}
	return sv, nil
}
