package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/conjunction-screener/model"
)

var issTLE = model.TLE{
	Name:  "ISS (ZARYA)",
	Line1: "1 25544U 98067A   24298.50000000  .00016717  00000+0  10270-3 0  9005",
	Line2: "2 25544  51.6400 208.9163 0006317  69.9862 320.6634 15.50192628473224",
}

func TestSGP4SourceValidElementSet(t *testing.T) {
	prop, err := SGP4Source{}.NewPropagator(issTLE)
	if err != nil {
		t.Fatalf("NewPropagator: %v", err)
	}

	at := time.Date(2024, time.October, 24, 12, 0, 0, 0, time.UTC)
	sv, err := prop.StateAt(at)
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}

	// LEO sanity: geocentric radius near 6790 km, speed near 7.7 km/s.
	r := sv.Position.Norm()
	if r < 6500 || r > 7100 {
		t.Errorf("position norm = %.1f km, want a LEO radius", r)
	}
	v := sv.Velocity.Norm()
	if v < 7.0 || v > 8.2 {
		t.Errorf("velocity norm = %.2f km/s, want orbital speed", v)
	}
}

func TestSGP4SourceRejectsBadLinePrefixes(t *testing.T) {
	bad := model.TLE{Name: "JUNK", Line1: "garbage", Line2: "2 20580  28.4697"}
	if _, err := (SGP4Source{}).NewPropagator(bad); err == nil {
		t.Fatal("NewPropagator accepted lines without element prefixes")
	}
}

// TestSGP4SourceRecoversParserPanic feeds lines that pass the prefix
// check but blow up inside the element parser, and expects an ordinary
// error rather than a panic.
func TestSGP4SourceRecoversParserPanic(t *testing.T) {
	bad := model.TLE{Name: "TRUNCATED", Line1: "1 ", Line2: "2 "}
	prop, err := SGP4Source{}.NewPropagator(bad)
	if err == nil {
		t.Fatal("NewPropagator accepted a truncated element set")
	}
	if prop != nil {
		t.Fatalf("NewPropagator returned a propagator alongside error %v", err)
	}
}

func TestStateAtTruncatesToWholeSeconds(t *testing.T) {
	prop, err := SGP4Source{}.NewPropagator(issTLE)
	if err != nil {
		t.Fatalf("NewPropagator: %v", err)
	}

	base := time.Date(2024, time.October, 24, 6, 30, 15, 0, time.UTC)
	a, err := prop.StateAt(base)
	if err != nil {
		t.Fatalf("StateAt(base): %v", err)
	}
	b, err := prop.StateAt(base.Add(900 * time.Millisecond))
	if err != nil {
		t.Fatalf("StateAt(base+900ms): %v", err)
	}
	if a != b {
		t.Fatalf("sub-second offset changed the state: %+v vs %+v", a, b)
	}
}

func TestStateAtIsDeterministic(t *testing.T) {
	prop, err := SGP4Source{}.NewPropagator(issTLE)
	if err != nil {
		t.Fatalf("NewPropagator: %v", err)
	}

	at := time.Date(2024, time.October, 25, 3, 0, 0, 0, time.UTC)
	first, err := prop.StateAt(at)
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := prop.StateAt(at)
		if err != nil {
			t.Fatalf("StateAt repeat %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("repeat %d state %+v differs from first %+v", i, again, first)
		}
	}
}
