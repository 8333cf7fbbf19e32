// Package playstats computes playback cadence statistics from the
// presentation timestamps of fetched frames.
package playstats

import (
	"math"
	"sync"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum allowed FPS standard deviation as a fraction of mean FPS.
	// Example: 30 FPS mean → stable if stddev < 4.5 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum allowed mean jitter as a fraction of expected interval.
	// Example: 30 FPS (33ms interval) → stable if jitter < 6.6ms
	jitterStabilityThreshold = 0.20
)

// Stats summarizes the cadence of a run of fetched frames.
type Stats struct {
	Frames int
	// Span is the presentation time covered, excluding loop wraps.
	Span time.Duration
	// Wraps counts timestamps that went backwards (loop restarts, seeks).
	Wraps int

	FPSMean   float64
	FPSStdDev float64
	FPSMin    float64
	FPSMax    float64

	// Jitter is the deviation from the mean inter-frame interval, in seconds.
	JitterMean   float64
	JitterStdDev float64
	JitterMax    float64

	IsStable bool
}

// Calculate computes cadence statistics from presentation timestamps in
// fetch order.
//
// This function:
//  1. Splits the run into forward intervals, counting backward steps as wraps
//  2. Calculates mean FPS over the forward presentation span
//  3. Calculates instantaneous FPS min/max/stddev per interval
//  4. Calculates jitter against the mean interval
//  5. Determines stability (stddev < 15% of mean AND jitter < 20%)
//
// Reverse playback yields only wraps; pass timestamps negated to measure it.
func Calculate(pts []time.Duration) Stats {
	st := Stats{Frames: len(pts)}
	if len(pts) < 2 {
		return st
	}

	intervals := make([]float64, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		d := pts[i] - pts[i-1]
		if d <= 0 {
			st.Wraps++
			continue
		}
		st.Span += d
		intervals = append(intervals, d.Seconds())
	}
	if len(intervals) == 0 {
		return st
	}

	st.FPSMean = float64(len(intervals)) / st.Span.Seconds()

	st.FPSMin = math.Inf(1)
	var sumSquares float64
	for _, iv := range intervals {
		fps := 1 / iv
		st.FPSMin = math.Min(st.FPSMin, fps)
		st.FPSMax = math.Max(st.FPSMax, fps)
		diff := fps - st.FPSMean
		sumSquares += diff * diff
	}
	st.FPSStdDev = math.Sqrt(sumSquares / float64(len(intervals)))

	expected := 1 / st.FPSMean
	var jitterSum float64
	jitters := make([]float64, len(intervals))
	for i, iv := range intervals {
		jitters[i] = math.Abs(iv - expected)
		jitterSum += jitters[i]
		st.JitterMax = math.Max(st.JitterMax, jitters[i])
	}
	st.JitterMean = jitterSum / float64(len(jitters))

	var jitterSquares float64
	for _, j := range jitters {
		diff := j - st.JitterMean
		jitterSquares += diff * diff
	}
	st.JitterStdDev = math.Sqrt(jitterSquares / float64(len(jitters)))

	st.IsStable = st.FPSStdDev < st.FPSMean*fpsStabilityThreshold &&
		st.JitterMean < expected*jitterStabilityThreshold
	return st
}

// DefaultWindowSize is the number of timestamps a Window keeps.
const DefaultWindowSize = 300

// Window is a bounded ring of the most recent presentation timestamps.
//
// Thread-safety: all methods are safe for concurrent use.
type Window struct {
	mu    sync.Mutex
	pts   []time.Duration
	next  int
	count int
}

// NewWindow returns a window holding up to size timestamps.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{pts: make([]time.Duration, size)}
}

// Add records one fetched frame's timestamp.
func (w *Window) Add(pts time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pts[w.next] = pts
	w.next = (w.next + 1) % len(w.pts)
	if w.count < len(w.pts) {
		w.count++
	}
}

// Reset forgets all timestamps.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next, w.count = 0, 0
}

// Snapshot returns the recorded timestamps, oldest first.
func (w *Window) Snapshot() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]time.Duration, 0, w.count)
	start := (w.next - w.count + len(w.pts)) % len(w.pts)
	for i := 0; i < w.count; i++ {
		out = append(out, w.pts[(start+i)%len(w.pts)])
	}
	return out
}

// Stats computes cadence statistics over the window.
func (w *Window) Stats() Stats {
	return Calculate(w.Snapshot())
}
