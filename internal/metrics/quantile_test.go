package metrics

import (
	"math"
	"testing"
)

func TestMultiQuantile_ConvergesOnUniformSample(t *testing.T) {
	m := NewMultiQuantile(0.5, 0.99)
	for i := 1; i <= 1000; i++ {
		m.Observe(float64(i))
	}
	if m.Count() != 1000 {
		t.Fatalf("expected count 1000, got %d", m.Count())
	}
	p50 := m.Value(0)
	if math.Abs(p50-500) > 50 {
		t.Fatalf("expected p50 near 500, got %v", p50)
	}
	p99 := m.Value(1)
	if p99 < 900 || p99 > 1000 {
		t.Fatalf("expected p99 near 990-1000, got %v", p99)
	}
}

func TestMultiQuantile_SnapshotMatchesValue(t *testing.T) {
	m := NewMultiQuantile(0.5, 0.9)
	for i := 1; i <= 50; i++ {
		m.Observe(float64(i))
	}
	snap := m.Snapshot()
	if snap[0] != m.Value(0) || snap[1] != m.Value(1) {
		t.Fatalf("snapshot mismatch: %v vs (%v, %v)", snap, m.Value(0), m.Value(1))
	}
}
