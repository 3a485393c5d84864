package observability

import "time"

// UpdateLogEntry records one metric's view of one evaluation batch.
type UpdateLogEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Metric      string    `json:"metric"`
	Lists       int       `json:"lists"`
	BatchMean   float64   `json:"batch_mean"`
	RunningMean float64   `json:"running_mean"`
	LatencyMs   int64     `json:"latency_ms"`
}
