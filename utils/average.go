package utils

import "sync"

// RollingAverage keeps the last N integer samples in a ring. It is safe for concurrent use.
type RollingAverage struct {
	mu     sync.Mutex
	data   []int
	pos    int
	filled int
}

// NewRollingAverage returns a RollingAverage over `numSamples` samples. Values below one are
// treated as one.
func NewRollingAverage(numSamples int) *RollingAverage {
	if numSamples < 1 {
		numSamples = 1
	}
	return &RollingAverage{data: make([]int, numSamples)}
}

// NumSamples is the window size.
func (ra *RollingAverage) NumSamples() int {
	return len(ra.data)
}

// Add records a sample, evicting the oldest once the window is full.
func (ra *RollingAverage) Add(x int) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	ra.data[ra.pos] = x
	ra.pos = (ra.pos + 1) % len(ra.data)
	if ra.filled < len(ra.data) {
		ra.filled++
	}
}

// Average is the mean of the samples recorded so far. Zero when empty.
func (ra *RollingAverage) Average() int {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	if ra.filled == 0 {
		return 0
	}
	sum := 0
	for _, d := range ra.data[:ra.filled] {
		sum += d
	}
	return sum / ra.filled
}

// Samples returns a copy of the recorded samples, in no particular order.
func (ra *RollingAverage) Samples() []float64 {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	out := make([]float64, 0, ra.filled)
	for _, d := range ra.data[:ra.filled] {
		out = append(out, float64(d))
	}
	return out
}
