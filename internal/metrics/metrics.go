package metrics

import (
	"runtime"
	"time"
)

// Metrics holds all service telemetry.
type Metrics struct {
	// Evaluation metrics
	EvalBatches *Counter
	EvalLists   *Counter
	EvalLatency *Histogram  // seconds per update call
	BatchSize   *Histogram  // lists per batch
	EvalErrors  *CounterVec // labels: code
	RunningMean *GaugeVec   // labels: metric

	// Judgment metrics
	JudgmentsLoaded *Counter
	JudgedQueries   *Gauge

	// Snapshot metrics
	SnapshotSaves    *Counter
	SnapshotRestores *Counter
	SnapshotErrors   *Counter

	// Bus metrics
	BusEventsPublished *CounterVec   // labels: topic
	BusEventLatency    *HistogramVec // labels: topic
	BusErrors          *CounterVec   // labels: topic

	// HTTP metrics
	HTTPRequests         *CounterVec   // labels: method, path, status
	HTTPDuration         *HistogramVec // labels: method, path
	HTTPRequestsInFlight *Gauge
	HTTPRequestSize      *HistogramVec // labels: method, path

	// System metrics
	GoroutineCount *Gauge
	MemoryUsage    *Gauge // bytes
	Uptime         *Counter

	// Time-series data for the running means
	TimeSeries *TimeSeriesData

	redisStorage *RedisStorage
	startTime    time.Time
}

// New creates a metrics instance with in-memory storage only.
func New() *Metrics {
	return NewWithConfig("memory", "")
}

// NewWithRedis creates a metrics instance persisting time-series data
// to Redis, falling back to in-memory if the connection fails.
func NewWithRedis(redisURL string) *Metrics {
	return NewWithConfig("redis", redisURL)
}

// NewWithConfig creates a metrics instance with the given persistence
// backend, "memory" or "redis".
func NewWithConfig(persistence, redisURL string) *Metrics {
	var redisStorage *RedisStorage
	var timeSeries *TimeSeriesData

	if persistence == "redis" && redisURL != "" {
		storage, err := NewRedisStorage(redisURL)
		if err == nil {
			redisStorage = storage
			timeSeries = NewTimeSeriesDataWithRedis(redisStorage)
		}
	}
	if timeSeries == nil {
		timeSeries = NewTimeSeriesData()
	}

	m := &Metrics{
		EvalBatches: NewCounter(
			"rankeval_batches_total",
			"Total number of evaluation batches processed",
			nil,
		),
		EvalLists: NewCounter(
			"rankeval_lists_total",
			"Total number of ranked lists processed",
			nil,
		),
		EvalLatency: NewHistogram(
			"rankeval_update_duration_seconds",
			"Evaluation update duration in seconds",
			[]float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		),
		BatchSize: NewHistogram(
			"rankeval_batch_size",
			"Number of lists per evaluation batch",
			[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		),
		EvalErrors: NewCounterVec(
			"rankeval_errors_total",
			"Total number of evaluation errors",
			[]string{"code"},
		),
		RunningMean: NewGaugeVec(
			"rankeval_running_mean",
			"Current running weighted mean per metric",
			[]string{"metric"},
		),

		JudgmentsLoaded: NewCounter(
			"rankeval_judgments_loaded_total",
			"Total number of relevance judgments loaded",
			nil,
		),
		JudgedQueries: NewGauge(
			"rankeval_judged_queries",
			"Number of queries with loaded judgments",
			nil,
		),

		SnapshotSaves: NewCounter(
			"rankeval_snapshot_saves_total",
			"Total number of snapshot saves",
			nil,
		),
		SnapshotRestores: NewCounter(
			"rankeval_snapshot_restores_total",
			"Total number of snapshot restores",
			nil,
		),
		SnapshotErrors: NewCounter(
			"rankeval_snapshot_errors_total",
			"Total number of snapshot failures",
			nil,
		),

		BusEventsPublished: NewCounterVec(
			"rankeval_bus_events_published_total",
			"Total number of events published to the bus",
			[]string{"topic"},
		),
		BusEventLatency: NewHistogramVec(
			"rankeval_bus_event_latency_seconds",
			"Event bus publish latency in seconds",
			[]string{"topic"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		),
		BusErrors: NewCounterVec(
			"rankeval_bus_errors_total",
			"Total number of event bus errors",
			[]string{"topic"},
		),

		HTTPRequests: NewCounterVec(
			"rankeval_http_requests_total",
			"Total number of HTTP requests",
			[]string{"method", "path", "status"},
		),
		HTTPDuration: NewHistogramVec(
			"rankeval_http_request_duration_seconds",
			"HTTP request duration in seconds",
			[]string{"method", "path"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		),
		HTTPRequestsInFlight: NewGauge(
			"rankeval_http_requests_in_flight",
			"Number of HTTP requests currently being processed",
			nil,
		),
		HTTPRequestSize: NewHistogramVec(
			"rankeval_http_request_size_bytes",
			"HTTP request size in bytes",
			[]string{"method", "path"},
			[]float64{100, 1000, 10000, 100000, 1000000, 10000000},
		),

		GoroutineCount: NewGauge(
			"rankeval_goroutines",
			"Number of goroutines",
			nil,
		),
		MemoryUsage: NewGauge(
			"rankeval_memory_bytes",
			"Memory usage in bytes",
			nil,
		),
		Uptime: NewCounter(
			"rankeval_uptime_seconds",
			"Application uptime in seconds",
			nil,
		),

		TimeSeries:   timeSeries,
		redisStorage: redisStorage,
		startTime:    time.Now(),
	}

	go m.collectSystemMetrics()

	return m
}

// collectSystemMetrics periodically samples runtime statistics.
func (m *Metrics) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.GoroutineCount.Set(float64(runtime.NumGoroutine()))

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		m.MemoryUsage.Set(float64(memStats.Alloc))

		m.Uptime.Add(15)
	}
}

// RecordUpdate records one evaluation update call.
func (m *Metrics) RecordUpdate(lists int, durationSeconds float64, err error) {
	m.EvalBatches.Inc()
	m.EvalLists.Add(int64(lists))
	m.EvalLatency.Observe(durationSeconds)
	m.BatchSize.Observe(float64(lists))

	if m.TimeSeries != nil {
		m.TimeSeries.RecordUpdate(lists, durationSeconds)
	}

	if err != nil {
		m.EvalErrors.WithLabels(errorCode(err)).Inc()
	}
}

// SetRunningMean publishes a metric's running mean as a gauge and into
// the time-series history.
func (m *Metrics) SetRunningMean(metric string, value float64) {
	m.RunningMean.WithLabels(metric).Set(value)
	if m.TimeSeries != nil {
		m.TimeSeries.RecordMean(metric, value)
	}
}

// RecordJudgments records a judgment load.
func (m *Metrics) RecordJudgments(loaded, totalQueries int) {
	m.JudgmentsLoaded.Add(int64(loaded))
	m.JudgedQueries.Set(float64(totalQueries))
}

// RecordSnapshotSave records the outcome of a snapshot save.
func (m *Metrics) RecordSnapshotSave(err error) {
	if err != nil {
		m.SnapshotErrors.Inc()
		return
	}
	m.SnapshotSaves.Inc()
}

// RecordSnapshotRestore records the outcome of a snapshot restore.
func (m *Metrics) RecordSnapshotRestore(err error) {
	if err != nil {
		m.SnapshotErrors.Inc()
		return
	}
	m.SnapshotRestores.Inc()
}

// RecordBusPublish records event bus publish metrics. It satisfies the
// bus.MetricsRecorder interface.
func (m *Metrics) RecordBusPublish(topic string, latencyMs int64, err error) {
	m.BusEventsPublished.WithLabels(topic).Inc()
	m.BusEventLatency.WithLabels(topic).Observe(float64(latencyMs) / 1000.0)

	if err != nil {
		m.BusErrors.WithLabels(topic).Inc()
	}
}

// RecordHTTP records HTTP request metrics, called by the middleware.
func (m *Metrics) RecordHTTP(method, path string, status int, durationSeconds float64, sizeBytes int64) {
	normalizedPath := normalizePath(path)

	m.HTTPRequests.WithLabels(method, normalizedPath, statusCode(status)).Inc()
	m.HTTPDuration.WithLabels(method, normalizedPath).Observe(durationSeconds)

	if sizeBytes > 0 {
		m.HTTPRequestSize.WithLabels(method, normalizedPath).Observe(float64(sizeBytes))
	}
}

// errorCode extracts a low-cardinality error code for labeling.
func errorCode(err error) string {
	if err == nil {
		return "none"
	}
	type coded interface{ HTTPStatus() int }
	if c, ok := err.(coded); ok {
		return statusCode(c.HTTPStatus())
	}
	return "internal"
}

// Reset zeroes the resettable metrics, mainly for tests.
func (m *Metrics) Reset() {
	m.EvalBatches.Reset()
	m.EvalLists.Reset()
	m.JudgmentsLoaded.Reset()
	m.SnapshotSaves.Reset()
	m.SnapshotRestores.Reset()
	m.SnapshotErrors.Reset()
	m.Uptime.Reset()

	m.JudgedQueries.Set(0)
	m.GoroutineCount.Set(0)
	m.MemoryUsage.Set(0)

	m.startTime = time.Now()
}

// Close releases storage resources; required when Redis persistence is
// in use.
func (m *Metrics) Close() error {
	if m.redisStorage != nil {
		return m.redisStorage.Close()
	}
	return nil
}

// IsRedisPersisted reports whether time-series data is persisted to
// Redis.
func (m *Metrics) IsRedisPersisted() bool {
	return m.redisStorage != nil
}
