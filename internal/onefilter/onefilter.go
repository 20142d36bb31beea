// Package onefilter implements a speed-adaptive One-Euro low-pass filter,
// structured the way a per-axis Kalman filter suite is structured (a
// scalar filter and a bank of them keyed by signal index, for an arbitrary
// number of signals; there is no separate 3D wrapper) but using the One-Euro
// cutoff-rises-with-speed formula instead of a constant-velocity Kalman
// model.
package onefilter

import (
	"math"
	"sync"
)

// Default parameters, per the One-Euro smoother contract.
const (
	DefaultMinCutoff = 1.0
	DefaultBeta      = 0.007
	DefaultDCutoff   = 1.0
)

// Filter is a single scalar One-Euro low-pass filter.
type Filter struct {
	MinCutoff float64
	Beta      float64
	DCutoff   float64

	mu          sync.Mutex
	initialized bool
	prevX       float64
	prevDx      float64
	prevT       int64
}

// New creates a Filter with the given parameters.
func New(minCutoff, beta, dCutoff float64) *Filter {
	return &Filter{MinCutoff: minCutoff, Beta: beta, DCutoff: dCutoff}
}

// NewDefault creates a Filter using the default parameters.
func NewDefault() *Filter {
	return New(DefaultMinCutoff, DefaultBeta, DefaultDCutoff)
}

// Apply filters a new sample (x, t). t is a monotonically increasing
// timestamp in milliseconds. On the first sample, or when the clock has not
// advanced (dt<=0), the previous (or current) value is returned unfiltered.
func (f *Filter) Apply(x float64, t int64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		f.prevX = x
		f.prevDx = 0
		f.prevT = t
		f.initialized = true
		return x
	}

	dt := float64(t-f.prevT) / 1000.0
	if dt <= 0 {
		return f.prevX
	}

	dx := (x - f.prevX) / dt
	alphaD := smoothingFactor(dt, f.DCutoff)
	dxSmoothed := alphaD*dx + (1-alphaD)*f.prevDx

	cutoff := f.MinCutoff + f.Beta*math.Abs(dxSmoothed)
	alpha := smoothingFactor(dt, cutoff)
	xSmoothed := alpha*x + (1-alpha)*f.prevX

	f.prevX = xSmoothed
	f.prevDx = dxSmoothed
	f.prevT = t

	return xSmoothed
}

// Reset clears the filter's stored state so the next Apply call behaves as
// if this were the first sample.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = false
	f.prevX = 0
	f.prevDx = 0
	f.prevT = 0
}

// smoothingFactor computes alpha = 1 / (1 + tau/dt) where tau = 1/(2*pi*cutoff).
func smoothingFactor(dt, cutoff float64) float64 {
	tau := 1.0 / (2 * math.Pi * cutoff)
	return 1.0 / (1.0 + tau/dt)
}

// Bank is a keyed collection of independent scalar Filters, one per signal
// index, used to smooth a fixed-size vector of scalars such as the 63
// flattened landmark coordinates of a hand.
type Bank struct {
	MinCutoff float64
	Beta      float64
	DCutoff   float64

	mu      sync.Mutex
	filters map[int]*Filter
}

// NewBank creates a Bank with the given per-filter parameters.
func NewBank(minCutoff, beta, dCutoff float64) *Bank {
	return &Bank{
		MinCutoff: minCutoff,
		Beta:      beta,
		DCutoff:   dCutoff,
		filters:   make(map[int]*Filter),
	}
}

// Apply filters values[i] through the i-th scalar filter in the bank,
// lazily creating filters as new indices are seen, and returns the smoothed
// vector.
func (b *Bank) Apply(values []float64, t int64) []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]float64, len(values))
	for i, v := range values {
		filt, ok := b.filters[i]
		if !ok {
			filt = New(b.MinCutoff, b.Beta, b.DCutoff)
			b.filters[i] = filt
		}
		out[i] = filt.Apply(v, t)
	}
	return out
}

// Reset clears every filter's state. Used between the "stateful" (matching)
// and "stateless" (recording/template preprocessing) filtering disciplines:
// the stateless discipline resets the bank before processing the first
// frame of every sequence.
func (b *Bank) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range b.filters {
		f.Reset()
	}
}
