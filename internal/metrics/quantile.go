// Package metrics provides streaming statistics for latency observability:
// a constant-memory quantile estimator, used by the executor to report
// p50/p99-style latency without retaining every sample.
package metrics

import (
	"math"
	"sync"
)

// quantileCore implements the P² algorithm for streaming quantile
// estimation: O(1) per-observation updates and O(1) retrieval, without
// storing observations. Adapted from Jain & Chlamtac (1985), "The P²
// Algorithm for Dynamic Calculation of Quantiles and Histograms Without
// Storing Observations", Communications of the ACM 28(10).
type quantileCore struct {
	p           float64
	q           [5]float64
	n           [5]int
	np          [5]float64
	dn          [5]float64
	initialized bool
	count       int
	initBuffer  [5]float64
}

func newQuantileCore(p float64) *quantileCore {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &quantileCore{p: p, dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1}}
}

func (c *quantileCore) update(x float64) {
	c.count++

	if c.count <= 5 {
		c.initBuffer[c.count-1] = x
		if c.count == 5 {
			c.initialize()
		}
		return
	}

	var k int
	if x < c.q[0] {
		c.q[0] = x
		k = 0
	} else if x >= c.q[4] {
		c.q[4] = x
		k = 3
	} else {
		for k = 0; k < 4; k++ {
			if c.q[k] <= x && x < c.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		c.n[i]++
	}
	for i := 0; i < 5; i++ {
		c.np[i] += c.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := c.np[i] - float64(c.n[i])
		if (d >= 1 && c.n[i+1]-c.n[i] > 1) || (d <= -1 && c.n[i-1]-c.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qPrime := c.parabolic(i, sign)
			if c.q[i-1] < qPrime && qPrime < c.q[i+1] {
				c.q[i] = qPrime
			} else {
				c.q[i] = c.linear(i, sign)
			}
			c.n[i] += sign
		}
	}
}

func (c *quantileCore) initialize() {
	for i := 1; i < 5; i++ {
		key := c.initBuffer[i]
		j := i - 1
		for j >= 0 && c.initBuffer[j] > key {
			c.initBuffer[j+1] = c.initBuffer[j]
			j--
		}
		c.initBuffer[j+1] = key
	}
	for i := 0; i < 5; i++ {
		c.q[i] = c.initBuffer[i]
		c.n[i] = i
	}
	c.np = [5]float64{0, 2 * c.p, 4 * c.p, 2 + 2*c.p, 4}
	c.initialized = true
}

func (c *quantileCore) parabolic(i, d int) float64 {
	df := float64(d)
	ni, niPrev, niNext := float64(c.n[i]), float64(c.n[i-1]), float64(c.n[i+1])
	term1 := df / (niNext - niPrev)
	term2 := (ni - niPrev + df) * (c.q[i+1] - c.q[i]) / (niNext - ni)
	term3 := (niNext - ni - df) * (c.q[i] - c.q[i-1]) / (ni - niPrev)
	return c.q[i] + term1*(term2+term3)
}

func (c *quantileCore) linear(i, d int) float64 {
	if d == 1 {
		return c.q[i] + (c.q[i+1]-c.q[i])/float64(c.n[i+1]-c.n[i])
	}
	return c.q[i] - (c.q[i]-c.q[i-1])/float64(c.n[i]-c.n[i-1])
}

func (c *quantileCore) value() float64 {
	if c.count == 0 {
		return 0
	}
	if c.count < 5 {
		sorted := make([]float64, c.count)
		copy(sorted, c.initBuffer[:c.count])
		for i := 1; i < c.count; i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		index := int(float64(c.count-1) * c.p)
		if index >= c.count {
			index = c.count - 1
		}
		return sorted[index]
	}
	return c.q[2]
}

// MultiQuantile tracks several percentiles of the same stream concurrently,
// safe for use from multiple goroutines.
type MultiQuantile struct {
	mu         sync.Mutex
	percentile []float64
	estimator  []*quantileCore
	count      int
	sum        float64
	max        float64
}

// NewMultiQuantile builds a MultiQuantile tracking the given percentiles
// (each in [0, 1], e.g. 0.5 for p50, 0.99 for p99).
func NewMultiQuantile(percentiles ...float64) *MultiQuantile {
	m := &MultiQuantile{
		percentile: append([]float64(nil), percentiles...),
		estimator:  make([]*quantileCore, len(percentiles)),
		max:        -math.MaxFloat64,
	}
	for i, p := range percentiles {
		m.estimator[i] = newQuantileCore(p)
	}
	return m
}

// Observe records x.
func (m *MultiQuantile) Observe(x float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	m.sum += x
	if x > m.max {
		m.max = x
	}
	for _, e := range m.estimator {
		e.update(x)
	}
}

// Value returns the current estimate for the percentile at index i (in the
// order passed to NewMultiQuantile).
func (m *MultiQuantile) Value(i int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.estimator) {
		return 0
	}
	return m.estimator[i].value()
}

// Snapshot returns every tracked percentile's current estimate, in the
// order passed to NewMultiQuantile.
func (m *MultiQuantile) Snapshot() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.estimator))
	for i, e := range m.estimator {
		out[i] = e.value()
	}
	return out
}

// Count returns the total number of observations.
func (m *MultiQuantile) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
