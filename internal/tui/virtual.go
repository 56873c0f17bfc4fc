package tui

import "math"

// defaultOverscan is how many rows beyond the viewport edge are rendered in
// each direction so small scrolls reuse already-materialized rows.
const defaultOverscan = 3

// Window is a contiguous half-open range [Start, End) of row indices to
// materialize.
type Window struct {
	Start, End int
}

// Len returns the number of rows in the window.
func (w Window) Len() int { return w.End - w.Start }

// Contains reports whether row i falls inside the window.
func (w Window) Contains(i int) bool { return i >= w.Start && i < w.End }

// ComputeWindow derives the render window for a list of n rows given the
// estimated row height, the viewport height, and the scroll offset, all in
// lines. The window size depends only on viewport and row height, never on
// n, which is what keeps render cost flat as snapshots grow.
func ComputeWindow(n int, rowHeight float64, viewportHeight, scrollOffset, overscan int) Window {
	if n <= 0 || viewportHeight <= 0 {
		return Window{}
	}
	if rowHeight <= 0 {
		rowHeight = 1
	}
	if overscan < 0 {
		overscan = 0
	}

	start := int(math.Floor(float64(scrollOffset)/rowHeight)) - overscan
	if start < 0 {
		start = 0
	}
	visible := int(math.Ceil(float64(viewportHeight) / rowHeight))
	end := start + visible + 2*overscan
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return Window{Start: start, End: end}
}

// estimator smoothing weights. The old estimate dominates so a single
// outlier row (a long wrapped subject) cannot swing the window size.
const (
	estimateKeep  = 0.6
	estimateBlend = 0.4
)

// HeightEstimator maintains a running row-height estimate from measured
// rendered rows, avoiding a full layout pass over the whole list.
type HeightEstimator struct {
	estimate float64
}

// NewHeightEstimator starts from an initial guess, typically the fixed
// chrome height of an unwrapped row.
func NewHeightEstimator(initial float64) *HeightEstimator {
	if initial <= 0 {
		initial = 1
	}
	return &HeightEstimator{estimate: initial}
}

// Estimate returns the current row-height estimate.
func (e *HeightEstimator) Estimate() float64 { return e.estimate }

// Observe blends the mean of the measured row heights into the estimate.
// Reports whether the estimate moved enough to warrant a window rebuild.
func (e *HeightEstimator) Observe(measured []int) bool {
	if len(measured) == 0 {
		return false
	}
	var sum int
	for _, h := range measured {
		sum += h
	}
	avg := float64(sum) / float64(len(measured))
	next := estimateKeep*e.estimate + estimateBlend*avg

	changed := math.Abs(next-e.estimate) >= 0.5
	e.estimate = next
	return changed
}
