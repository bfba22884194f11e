package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/conjunction-screener/model"
)

// ScanConfig holds the tunable parameters for one screening run.
type ScanConfig struct {
	// Window is the look-ahead horizon from the scan start instant.
	Window time.Duration
	// Step is the sampling interval along the window.
	Step time.Duration
	// ThresholdKm promotes a candidate to an event when its true
	// minimum sampled distance is strictly below this value.
	ThresholdKm float64
	// MaxCatalog truncates the catalog to a fixed prefix before
	// scanning. Zero or negative means no truncation.
	MaxCatalog int
	// WithProbability enables the collision-probability pipeline on
	// promoted events.
	WithProbability bool
	// Workers bounds the per-candidate fan-out. Values <= 1 run the
	// scan sequentially. The output is identical either way.
	Workers int
}

// DefaultScanConfig mirrors the service defaults: 24 h window, 60 s
// step, 5 km threshold, 200-object catalog cap, probability on.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Window:          24 * time.Hour,
		Step:            60 * time.Second,
		ThresholdKm:     5,
		MaxCatalog:      200,
		WithProbability: true,
		Workers:         1,
	}
}

// ScanStats summarises what happened during a screening run. It feeds
// the response meta block and the metrics layer without coupling the
// engine to either.
type ScanStats struct {
	CatalogSize       int  // catalog length after truncation
	CandidatesScanned int  // propagators constructed successfully
	CandidatesDropped int  // catalog objects whose construction failed
	SampleErrors      int  // individual propagation failures (all objects)
	Incomplete        bool // scan stopped early by context cancellation
}

// Scanner screens a primary object against a catalog over a sampled
// time window. Failure containment follows a strict hierarchy: only a
// bad primary element set (or invalid parameters) aborts the scan; a
// bad catalog object is dropped; a bad sample contributes an infinite
// distance and nothing more.
type Scanner struct {
	Source    PropagatorSource
	Estimator *ProbabilityEstimator
}

// NewScanner wires the SGP4 source and the default estimator.
func NewScanner() *Scanner {
	return &Scanner{
		Source:    SGP4Source{},
		Estimator: NewProbabilityEstimator(),
	}
}

// Screen runs one scan starting at the given instant. The start time is
// an explicit input so repeated runs over the same inputs are
// byte-identical. The returned events are stable-sorted ascending by
// minimum distance. When ctx expires mid-scan the events computed so
// far are returned with Stats.Incomplete set; cancellation is
// cooperative at candidate granularity.
func (s *Scanner) Screen(ctx context.Context, primary model.TLE, catalog []model.TLE, start time.Time, cfg ScanConfig) ([]model.ConjunctionEvent, ScanStats, error) {
	var stats ScanStats

	if cfg.Window <= 0 {
		return nil, stats, fmt.Errorf("%w: window must be positive, got %s", ErrSetup, cfg.Window)
	}
	if cfg.Step <= 0 {
		return nil, stats, fmt.Errorf("%w: step must be positive, got %s", ErrSetup, cfg.Step)
	}
	if cfg.ThresholdKm < 0 {
		return nil, stats, fmt.Errorf("%w: threshold must be non-negative, got %g km", ErrSetup, cfg.ThresholdKm)
	}

	primaryProp, err := s.Source.NewPropagator(primary)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: primary: %v", ErrSetup, err)
	}

	grid := NewTimeGrid(start, cfg.Window, cfg.Step)

	// Propagate the primary once per sample; every candidate reuses
	// these states. A failed primary sample poisons that sample only:
	// all candidates see an infinite distance there.
	primaryStates := make([]StateVector, len(grid))
	primaryOK := make([]bool, len(grid))
	for k, t := range grid {
		sv, err := primaryProp.StateAt(t)
		if err != nil {
			stats.SampleErrors++
			continue
		}
		primaryStates[k] = sv
		primaryOK[k] = true
	}

	if cfg.MaxCatalog > 0 && len(catalog) > cfg.MaxCatalog {
		catalog = catalog[:cfg.MaxCatalog]
	}
	stats.CatalogSize = len(catalog)

	run := &scanRun{
		scanner:       s,
		primary:       primary,
		primaryProp:   primaryProp,
		grid:          grid,
		primaryStates: primaryStates,
		primaryOK:     primaryOK,
		cfg:           cfg,
	}

	results := make([]*model.ConjunctionEvent, len(catalog))
	candStats := make([]candidateStats, len(catalog))

	workers := cfg.Workers
	if workers <= 1 {
		for idx, tle := range catalog {
			if ctx.Err() != nil {
				stats.Incomplete = true
				break
			}
			results[idx], candStats[idx] = run.scanCandidate(idx, tle)
		}
	} else {
		stats.Incomplete = run.scanParallel(ctx, catalog, workers, results, candStats)
	}

	events := make([]model.ConjunctionEvent, 0, len(catalog))
	for idx := range results {
		stats.CandidatesScanned += candStats[idx].scanned
		stats.CandidatesDropped += candStats[idx].dropped
		stats.SampleErrors += candStats[idx].sampleErrors
		if results[idx] != nil {
			events = append(events, *results[idx])
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].MinDistanceKm < events[j].MinDistanceKm
	})
	return events, stats, nil
}

type candidateStats struct {
	scanned      int
	dropped      int
	sampleErrors int
}

// scanRun carries the shared read-only state of one screening run. No
// mutable state crosses candidate boundaries, so candidates can be
// evaluated from any number of goroutines.
type scanRun struct {
	scanner       *Scanner
	primary       model.TLE
	primaryProp   Propagator
	grid          TimeGrid
	primaryStates []StateVector
	primaryOK     []bool
	cfg           ScanConfig
}

func (r *scanRun) scanParallel(ctx context.Context, catalog []model.TLE, workers int, results []*model.ConjunctionEvent, candStats []candidateStats) (incomplete bool) {
	if workers > len(catalog) {
		workers = len(catalog)
	}

	jobs := make(chan int)
	var cancelled sync.Once
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					cancelled.Do(func() { incomplete = true })
					continue
				}
				results[idx], candStats[idx] = r.scanCandidate(idx, catalog[idx])
			}
		}()
	}
	for idx := range catalog {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	return incomplete
}

// scanCandidate evaluates one catalog object over the shared grid and
// returns its promoted event, or nil when it never crosses the
// threshold.
func (r *scanRun) scanCandidate(idx int, tle model.TLE) (*model.ConjunctionEvent, candidateStats) {
	var cs candidateStats

	prop, err := r.scanner.Source.NewPropagator(tle)
	if err != nil {
		// A catalog object that cannot be parsed is silently dropped;
		// the drop is only visible in the stats.
		cs.dropped = 1
		return nil, cs
	}
	cs.scanned = 1

	n := len(r.grid)
	dist := make([]float64, n)
	speed := make([]float64, n)
	bestIdx := 0

	for k, t := range r.grid {
		if !r.primaryOK[k] {
			dist[k] = math.Inf(1)
			speed[k] = math.NaN()
			continue
		}
		sv, err := prop.StateAt(t)
		if err != nil {
			// One bad sample never disqualifies the object.
			dist[k] = math.Inf(1)
			speed[k] = math.NaN()
			cs.sampleErrors++
			continue
		}
		dr := r.primaryStates[k].Position.Sub(sv.Position)
		dv := r.primaryStates[k].Velocity.Sub(sv.Velocity)
		dist[k] = dr.Norm()
		speed[k] = dv.Norm()

		// Running best-index update: ties prefer the later sample.
		// The true minimum below is computed independently; when a
		// later sample equals the minimum, the tracked instant is the
		// later one.
		if dist[k] <= dist[bestIdx] {
			bestIdx = k
		}
	}

	trueMin := math.Inf(1)
	for _, d := range dist {
		if d < trueMin {
			trueMin = d
		}
	}
	if !(trueMin < r.cfg.ThresholdKm) {
		return nil, cs
	}

	tca := r.grid[bestIdx]
	event := &model.ConjunctionEvent{
		OtherName:     tle.Name,
		MinDistanceKm: trueMin,
		TCA:           tca.UTC(),
		RelSpeedKmS:   speed[bestIdx],
		CatalogIndex:  idx,
	}

	if !r.cfg.WithProbability {
		return event, cs
	}

	// Re-derive the exact relative state at the tracked instant. The
	// propagator is stateless, so this matches the values already
	// computed during the grid pass.
	p1, err1 := r.primaryProp.StateAt(tca)
	p2, err2 := prop.StateAt(tca)
	if err1 != nil || err2 != nil {
		err := err1
		if err == nil {
			err = err2
		}
		event.Probability = &model.ProbabilityResult{Err: fmt.Sprintf("state at closest approach unavailable: %v", err)}
		event.SafetyLevel = model.SafetyUnknown
		return event, cs
	}

	rRel := p1.Position.Sub(p2.Position)
	vRel := p1.Velocity.Sub(p2.Velocity)
	result, level := r.scanner.Estimator.Estimate(rRel, vRel, r.primary.Name, tle.Name, nil)
	event.Probability = result
	event.SafetyLevel = level
	if result.Err == "" {
		event.Maneuvers = SuggestManeuvers(result.Pc2D)
	}
	return event, cs
}
