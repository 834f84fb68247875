// Package metrics collects per-operation counts and latencies for HTTP routes
// and traced spans.
package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
)

// maxSamples bounds the latency window kept per operation.
const maxSamples = 1024

// Collector collects performance metrics keyed by operation name.
type Collector struct {
	mu  sync.RWMutex
	ops map[string]*opStats
}

type opStats struct {
	count   int64
	errors  int64
	total   time.Duration
	samples []time.Duration // ring buffer of recent latencies
	next    int
}

// OpSummary describes one operation.
type OpSummary struct {
	Count        int64              `json:"count"`
	Errors       int64              `json:"errors"`
	TotalLatency time.Duration      `json:"total_latency"`
	Latency      LatencyPercentiles `json:"latency"`
}

// LatencyPercentiles represents latency percentiles over the recent window.
type LatencyPercentiles struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{ops: make(map[string]*opStats)}
}

// Record adds one observation of op.
func (c *Collector) Record(op string, d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.ops[op]
	if !ok {
		s = &opStats{samples: make([]time.Duration, 0, 64)}
		c.ops[op] = s
	}

	s.count++
	s.total += d
	if err != nil {
		s.errors++
	}
	if len(s.samples) < maxSamples {
		s.samples = append(s.samples, d)
	} else {
		s.samples[s.next] = d
		s.next = (s.next + 1) % maxSamples
	}
}

// Summary returns a snapshot of every operation seen so far.
func (c *Collector) Summary() map[string]OpSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]OpSummary, len(c.ops))
	for op, s := range c.ops {
		out[op] = OpSummary{
			Count:        s.count,
			Errors:       s.errors,
			TotalLatency: s.total,
			Latency:      percentiles(s.samples),
		}
	}
	return out
}

// Reset clears all collected metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = make(map[string]*opStats)
}

func percentiles(latencies []time.Duration) LatencyPercentiles {
	if len(latencies) == 0 {
		return LatencyPercentiles{}
	}

	sorted := make([]float64, len(latencies))
	for i, l := range latencies {
		sorted[i] = float64(l)
	}
	sort.Float64s(sorted)

	q := func(p float64) time.Duration {
		return time.Duration(stat.Quantile(p, stat.Empirical, sorted, nil))
	}
	return LatencyPercentiles{P50: q(0.50), P95: q(0.95), P99: q(0.99)}
}

// Tracer decorates a ports.Tracer so every finished span is recorded
// under its span name.
type Tracer struct {
	inner     ports.Tracer
	collector *Collector
}

// WrapTracer returns a tracer that forwards to inner and records into c.
func WrapTracer(inner ports.Tracer, c *Collector) *Tracer {
	return &Tracer{inner: inner, collector: c}
}

func (t *Tracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	ctx, finish := t.inner.StartSpan(ctx, name, attrs)
	start := time.Now()
	return ctx, func(err error) {
		t.collector.Record("span:"+name, time.Since(start), err)
		finish(err)
	}
}

func (t *Tracer) Event(ctx context.Context, name string, attrs map[string]any) {
	t.inner.Event(ctx, name, attrs)
}

var _ ports.Tracer = (*Tracer)(nil)
