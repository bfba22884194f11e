package core

import "time"

// TimeGrid is the ordered sequence of sample instants for one screening
// run. It is built once per scan, shared read-only across all catalog
// candidates, and fully determined by (start, window, step).
type TimeGrid []time.Time

// NewTimeGrid samples [start, start+window] at a fixed step. The first
// sample is the start instant itself and the grid has
// floor(window/step)+1 entries. Non-positive window or step yields a
// nil grid.
func NewTimeGrid(start time.Time, window, step time.Duration) TimeGrid {
	if window <= 0 || step <= 0 {
		return nil
	}
	n := int(window/step) + 1
	grid := make(TimeGrid, n)
	for i := 0; i < n; i++ {
		grid[i] = start.Add(time.Duration(i) * step)
	}
	return grid
}
