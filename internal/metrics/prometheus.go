package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// PrometheusFormat exports all metrics in Prometheus text exposition
// format. See https://prometheus.io/docs/instrumenting/exposition_formats/.
func (m *Metrics) PrometheusFormat() string {
	var sb strings.Builder

	// Evaluation metrics
	writeCounter(&sb, m.EvalBatches)
	writeCounter(&sb, m.EvalLists)
	writeHistogram(&sb, m.EvalLatency)
	writeHistogram(&sb, m.BatchSize)
	writeCounterVec(&sb, m.EvalErrors)
	writeGaugeVec(&sb, m.RunningMean)

	// Judgment metrics
	writeCounter(&sb, m.JudgmentsLoaded)
	writeGauge(&sb, m.JudgedQueries)

	// Snapshot metrics
	writeCounter(&sb, m.SnapshotSaves)
	writeCounter(&sb, m.SnapshotRestores)
	writeCounter(&sb, m.SnapshotErrors)

	// Bus metrics
	writeCounterVec(&sb, m.BusEventsPublished)
	writeHistogramVec(&sb, m.BusEventLatency)
	writeCounterVec(&sb, m.BusErrors)

	// HTTP metrics
	writeCounterVec(&sb, m.HTTPRequests)
	writeHistogramVec(&sb, m.HTTPDuration)
	writeGauge(&sb, m.HTTPRequestsInFlight)
	writeHistogramVec(&sb, m.HTTPRequestSize)

	// System metrics
	writeGauge(&sb, m.GoroutineCount)
	writeGauge(&sb, m.MemoryUsage)
	writeCounter(&sb, m.Uptime)

	return sb.String()
}

func writeHeader(sb *strings.Builder, name, help, kind string) {
	sb.WriteString("# HELP ")
	sb.WriteString(name)
	sb.WriteString(" ")
	sb.WriteString(help)
	sb.WriteString("\n# TYPE ")
	sb.WriteString(name)
	sb.WriteString(" ")
	sb.WriteString(kind)
	sb.WriteString("\n")
}

func writeCounter(sb *strings.Builder, c *Counter) {
	writeHeader(sb, c.Name(), c.Help(), "counter")
	writeCounterSample(sb, c)
}

func writeCounterSample(sb *strings.Builder, c *Counter) {
	sb.WriteString(c.Name())
	writeLabels(sb, c.Labels())
	fmt.Fprintf(sb, " %d\n", c.Value())
}

func writeGauge(sb *strings.Builder, g *Gauge) {
	writeHeader(sb, g.Name(), g.Help(), "gauge")
	writeGaugeSample(sb, g)
}

func writeGaugeSample(sb *strings.Builder, g *Gauge) {
	sb.WriteString(g.Name())
	writeLabels(sb, g.Labels())
	fmt.Fprintf(sb, " %g\n", g.Value())
}

func writeHistogram(sb *strings.Builder, h *Histogram) {
	writeHeader(sb, h.Name(), h.Help(), "histogram")
	writeHistogramSamples(sb, h)
}

func writeHistogramSamples(sb *strings.Builder, h *Histogram) {
	buckets := h.Buckets()
	counts := h.BucketCounts()
	labels := h.Labels()

	for i, bound := range buckets {
		writeBucketSample(sb, h.Name(), labels, fmt.Sprintf("%g", bound), counts[i])
	}
	writeBucketSample(sb, h.Name(), labels, "+Inf", counts[len(counts)-1])

	sb.WriteString(h.Name())
	sb.WriteString("_sum")
	writeLabels(sb, labels)
	fmt.Fprintf(sb, " %g\n", h.Sum())

	sb.WriteString(h.Name())
	sb.WriteString("_count")
	writeLabels(sb, labels)
	fmt.Fprintf(sb, " %d\n", h.Count())
}

func writeBucketSample(sb *strings.Builder, name string, labels map[string]string, le string, count int64) {
	withLe := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		withLe[k] = v
	}
	withLe["le"] = le

	sb.WriteString(name)
	sb.WriteString("_bucket")
	writeLabels(sb, withLe)
	fmt.Fprintf(sb, " %d\n", count)
}

func writeCounterVec(sb *strings.Builder, cv *CounterVec) {
	counters := cv.GetAll()
	if len(counters) == 0 {
		return
	}
	writeHeader(sb, cv.Name(), cv.Help(), "counter")
	for _, c := range counters {
		writeCounterSample(sb, c)
	}
}

func writeGaugeVec(sb *strings.Builder, gv *GaugeVec) {
	gauges := gv.GetAll()
	if len(gauges) == 0 {
		return
	}
	writeHeader(sb, gv.Name(), gv.Help(), "gauge")
	for _, g := range gauges {
		writeGaugeSample(sb, g)
	}
}

func writeHistogramVec(sb *strings.Builder, hv *HistogramVec) {
	histograms := hv.GetAll()
	if len(histograms) == 0 {
		return
	}
	writeHeader(sb, hv.Name(), hv.Help(), "histogram")
	for _, h := range histograms {
		writeHistogramSamples(sb, h)
	}
}

// writeLabels writes labels as {key="value",key2="value2"}.
func writeLabels(sb *strings.Builder, labels map[string]string) {
	if len(labels) == 0 {
		return
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(k)
		sb.WriteString("=\"")
		sb.WriteString(escapeString(labels[k]))
		sb.WriteString("\"")
	}
	sb.WriteString("}")
}

// escapeString escapes special characters in label values.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
