// Package metrics provides Prometheus-compatible telemetry for the
// evaluation service: counters, gauges and histograms with text
// exposition, plus time-series history for the running metric means.
package metrics

import (
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	value  int64
	labels map[string]string
}

// NewCounter creates a new counter.
func NewCounter(name, help string, labels map[string]string) *Counter {
	if labels == nil {
		labels = make(map[string]string)
	}
	return &Counter{name: name, help: help, labels: labels}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

// Add adds the given value to the counter. Negative deltas are ignored.
func (c *Counter) Add(delta int64) {
	if delta < 0 {
		return
	}
	atomic.AddInt64(&c.value, delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Reset resets the counter to 0.
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.value, 0)
}

// Name returns the metric name.
func (c *Counter) Name() string { return c.name }

// Help returns the metric help text.
func (c *Counter) Help() string { return c.help }

// Labels returns a copy of the metric labels.
func (c *Counter) Labels() map[string]string { return copyLabels(c.labels) }

// Gauge is a float-valued metric that can move in both directions.
type Gauge struct {
	name   string
	help   string
	bits   uint64 // float64 bits, accessed atomically
	labels map[string]string
}

// NewGauge creates a new gauge.
func NewGauge(name, help string, labels map[string]string) *Gauge {
	if labels == nil {
		labels = make(map[string]string)
	}
	return &Gauge{name: name, help: help, labels: labels}
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(value float64) {
	atomic.StoreUint64(&g.bits, math.Float64bits(value))
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.addFloat(1) }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.addFloat(-1) }

// Add adds the given value to the gauge.
func (g *Gauge) Add(delta float64) { g.addFloat(delta) }

func (g *Gauge) addFloat(delta float64) {
	for {
		old := atomic.LoadUint64(&g.bits)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(&g.bits, old, next) {
			return
		}
	}
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	return math.Float64frombits(atomic.LoadUint64(&g.bits))
}

// Name returns the metric name.
func (g *Gauge) Name() string { return g.name }

// Help returns the metric help text.
func (g *Gauge) Help() string { return g.help }

// Labels returns a copy of the metric labels.
func (g *Gauge) Labels() map[string]string { return copyLabels(g.labels) }

// Histogram is a cumulative-bucket histogram.
type Histogram struct {
	name    string
	help    string
	buckets []float64
	labels  map[string]string

	mu     sync.Mutex
	counts []int64
	sum    float64
	count  int64
}

// NewHistogram creates a new histogram with the given bucket bounds.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	if len(buckets) == 0 {
		buckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	}
	sort.Float64s(buckets)

	return &Histogram{
		name:    name,
		help:    help,
		buckets: buckets,
		counts:  make([]int64, len(buckets)+1), // trailing +Inf bucket
	}
}

// Observe adds a single observation.
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += value
	h.count++

	idx := len(h.buckets)
	for i, bound := range h.buckets {
		if value <= bound {
			idx = i
			break
		}
	}
	for i := idx; i < len(h.counts); i++ {
		h.counts[i]++
	}
}

// Count returns the total number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of all observed values.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Buckets returns the bucket upper bounds.
func (h *Histogram) Buckets() []float64 {
	result := make([]float64, len(h.buckets))
	copy(result, h.buckets)
	return result
}

// BucketCounts returns the cumulative count per bucket, +Inf last.
func (h *Histogram) BucketCounts() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]int64, len(h.counts))
	copy(result, h.counts)
	return result
}

// Name returns the metric name.
func (h *Histogram) Name() string { return h.name }

// Help returns the metric help text.
func (h *Histogram) Help() string { return h.help }

// Labels returns a copy of the metric labels.
func (h *Histogram) Labels() map[string]string { return copyLabels(h.labels) }

// vec is the shared implementation behind the labeled metric vectors:
// it lazily materializes one member per distinct label-value tuple.
type vec[M any] struct {
	name       string
	help       string
	labelNames []string
	build      func(labels map[string]string) M

	mu      sync.RWMutex
	members map[string]M
}

func newVec[M any](name, help string, labelNames []string, build func(map[string]string) M) *vec[M] {
	return &vec[M]{
		name:       name,
		help:       help,
		labelNames: labelNames,
		build:      build,
		members:    make(map[string]M),
	}
}

// withLabels returns the member for the given label values, creating it
// on first use. The number of values must match the label names.
func (v *vec[M]) withLabels(labelValues ...string) M {
	if len(labelValues) != len(v.labelNames) {
		panic("metrics: label value count mismatch for " + v.name)
	}

	labels := make(map[string]string, len(v.labelNames))
	for i, name := range v.labelNames {
		labels[name] = labelValues[i]
	}
	key := labelsToKey(labels)

	v.mu.RLock()
	member, ok := v.members[key]
	v.mu.RUnlock()
	if ok {
		return member
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if member, ok := v.members[key]; ok {
		return member
	}
	member = v.build(labels)
	v.members[key] = member
	return member
}

func (v *vec[M]) getAll() []M {
	v.mu.RLock()
	defer v.mu.RUnlock()
	result := make([]M, 0, len(v.members))
	for _, m := range v.members {
		result = append(result, m)
	}
	return result
}

// CounterVec is a counter partitioned by label values.
type CounterVec struct {
	*vec[*Counter]
}

// NewCounterVec creates a new counter vector.
func NewCounterVec(name, help string, labelNames []string) *CounterVec {
	return &CounterVec{newVec(name, help, labelNames, func(labels map[string]string) *Counter {
		return NewCounter(name, help, labels)
	})}
}

// WithLabels returns the counter for the given label values.
func (cv *CounterVec) WithLabels(labelValues ...string) *Counter {
	return cv.withLabels(labelValues...)
}

// GetAll returns every materialized counter.
func (cv *CounterVec) GetAll() []*Counter { return cv.getAll() }

// Name returns the metric name.
func (cv *CounterVec) Name() string { return cv.name }

// Help returns the metric help text.
func (cv *CounterVec) Help() string { return cv.help }

// GaugeVec is a gauge partitioned by label values.
type GaugeVec struct {
	*vec[*Gauge]
}

// NewGaugeVec creates a new gauge vector.
func NewGaugeVec(name, help string, labelNames []string) *GaugeVec {
	return &GaugeVec{newVec(name, help, labelNames, func(labels map[string]string) *Gauge {
		return NewGauge(name, help, labels)
	})}
}

// WithLabels returns the gauge for the given label values.
func (gv *GaugeVec) WithLabels(labelValues ...string) *Gauge {
	return gv.withLabels(labelValues...)
}

// GetAll returns every materialized gauge.
func (gv *GaugeVec) GetAll() []*Gauge { return gv.getAll() }

// Name returns the metric name.
func (gv *GaugeVec) Name() string { return gv.name }

// Help returns the metric help text.
func (gv *GaugeVec) Help() string { return gv.help }

// HistogramVec is a histogram partitioned by label values.
type HistogramVec struct {
	*vec[*Histogram]
}

// NewHistogramVec creates a new histogram vector.
func NewHistogramVec(name, help string, labelNames []string, buckets []float64) *HistogramVec {
	return &HistogramVec{newVec(name, help, labelNames, func(labels map[string]string) *Histogram {
		h := NewHistogram(name, help, buckets)
		h.labels = labels
		return h
	})}
}

// WithLabels returns the histogram for the given label values.
func (hv *HistogramVec) WithLabels(labelValues ...string) *Histogram {
	return hv.withLabels(labelValues...)
}

// GetAll returns every materialized histogram.
func (hv *HistogramVec) GetAll() []*Histogram { return hv.getAll() }

// Name returns the metric name.
func (hv *HistogramVec) Name() string { return hv.name }

// Help returns the metric help text.
func (hv *HistogramVec) Help() string { return hv.help }

// labelsToKey creates a stable key from a label map.
func labelsToKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(labels[k])
	}
	return sb.String()
}

func copyLabels(labels map[string]string) map[string]string {
	result := make(map[string]string, len(labels))
	for k, v := range labels {
		result[k] = v
	}
	return result
}
