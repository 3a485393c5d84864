package metrics

import (
	"context"
	"sync"
	"time"
)

// DataPoint is a single time-series observation.
type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricHistory stores time-series data with fixed-duration buckets and
// bounded retention. Buckets accumulate either a mean (Record) or a sum
// (RecordSum) until the next bucket starts.
type MetricHistory struct {
	mu          sync.Mutex
	buckets     []DataPoint
	bucketSize  time.Duration
	maxBuckets  int
	accumulator float64
	count       int64
	sumMode     bool
	lastBucket  time.Time
	storage     *RedisStorage
	metricName  string
}

// NewMetricHistory creates a history with the given bucket duration and
// retention.
func NewMetricHistory(bucketSize time.Duration, maxBuckets int) *MetricHistory {
	return &MetricHistory{
		buckets:    make([]DataPoint, 0, maxBuckets),
		bucketSize: bucketSize,
		maxBuckets: maxBuckets,
		lastBucket: time.Now().Truncate(bucketSize),
	}
}

// NewMetricHistoryWithRedis creates a history persisted through the
// given Redis storage, preloading whatever the retention window still
// covers.
func NewMetricHistoryWithRedis(bucketSize time.Duration, maxBuckets int, storage *RedisStorage, metricName string) *MetricHistory {
	h := &MetricHistory{
		buckets:    make([]DataPoint, 0, maxBuckets),
		bucketSize: bucketSize,
		maxBuckets: maxBuckets,
		lastBucket: time.Now().Truncate(bucketSize),
		storage:    storage,
		metricName: metricName,
	}

	if storage != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		since := time.Now().Add(-time.Duration(maxBuckets) * bucketSize)
		if dataPoints, err := storage.LoadHistory(ctx, metricName, since); err == nil && len(dataPoints) > 0 {
			h.buckets = dataPoints
		}
	}

	return h
}

// Record adds a value to the current bucket; the finalized bucket value
// is the mean of its observations.
func (h *MetricHistory) Record(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rotate(false)
	h.accumulator += value
	h.count++
}

// RecordCount increments the current bucket by one, for rate series.
func (h *MetricHistory) RecordCount() {
	h.RecordSum(1)
}

// RecordSum adds to the current bucket; the finalized bucket value is
// the sum of its observations.
func (h *MetricHistory) RecordSum(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rotate(true)
	h.accumulator += value
	h.count++
}

// rotate finalizes the previous bucket when time has moved past it.
// Must be called with the lock held.
func (h *MetricHistory) rotate(sumMode bool) {
	h.sumMode = sumMode
	currentBucket := time.Now().Truncate(h.bucketSize)
	if !currentBucket.After(h.lastBucket) {
		return
	}
	h.finalizeBucket()
	h.lastBucket = currentBucket
}

// finalizeBucket appends the accumulated bucket and resets the
// accumulator. Must be called with the lock held.
func (h *MetricHistory) finalizeBucket() {
	if h.count == 0 {
		return
	}

	value := h.accumulator
	if !h.sumMode {
		value = h.accumulator / float64(h.count)
	}
	dp := DataPoint{Timestamp: h.lastBucket, Value: value}
	h.buckets = append(h.buckets, dp)

	if h.storage != nil && h.metricName != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = h.storage.SaveDataPoint(ctx, h.metricName, dp)
		}()
	}

	if len(h.buckets) > h.maxBuckets {
		h.buckets = h.buckets[len(h.buckets)-h.maxBuckets:]
	}

	h.accumulator = 0
	h.count = 0
}

// History returns the finalized buckets plus the live bucket if it has
// data.
func (h *MetricHistory) History() []DataPoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]DataPoint, len(h.buckets))
	copy(result, h.buckets)

	if h.count > 0 {
		value := h.accumulator
		if !h.sumMode {
			value = h.accumulator / float64(h.count)
		}
		result = append(result, DataPoint{Timestamp: h.lastBucket, Value: value})
	}
	return result
}

// HistorySince returns data points at or after the given time.
func (h *MetricHistory) HistorySince(since time.Time) []DataPoint {
	all := h.History()
	result := make([]DataPoint, 0, len(all))
	for _, dp := range all {
		if !dp.Timestamp.Before(since) {
			result = append(result, dp)
		}
	}
	return result
}

// TimeSeriesData tracks evaluation activity over time: update rate,
// list throughput, update latency, and one series per metric's running
// mean.
type TimeSeriesData struct {
	UpdateRate    *MetricHistory // updates per bucket
	ListRate      *MetricHistory // lists per bucket
	UpdateLatency *MetricHistory // mean update duration per bucket

	mu      sync.RWMutex
	means   map[string]*MetricHistory // per-metric running mean
	storage *RedisStorage

	bucketSize time.Duration
	maxBuckets int
}

// NewTimeSeriesData creates an in-memory time-series collection with
// 5-minute buckets and one hour of retention.
func NewTimeSeriesData() *TimeSeriesData {
	return newTimeSeriesData(nil)
}

// NewTimeSeriesDataWithRedis creates a time-series collection persisted
// to Redis.
func NewTimeSeriesDataWithRedis(storage *RedisStorage) *TimeSeriesData {
	return newTimeSeriesData(storage)
}

func newTimeSeriesData(storage *RedisStorage) *TimeSeriesData {
	bucketSize := 5 * time.Minute
	maxBuckets := 12

	newHistory := func(name string) *MetricHistory {
		if storage != nil {
			return NewMetricHistoryWithRedis(bucketSize, maxBuckets, storage, name)
		}
		return NewMetricHistory(bucketSize, maxBuckets)
	}

	return &TimeSeriesData{
		UpdateRate:    newHistory("update_rate"),
		ListRate:      newHistory("list_rate"),
		UpdateLatency: newHistory("update_latency"),
		means:         make(map[string]*MetricHistory),
		storage:       storage,
		bucketSize:    bucketSize,
		maxBuckets:    maxBuckets,
	}
}

// RecordUpdate records one evaluation update for rate tracking.
func (t *TimeSeriesData) RecordUpdate(lists int, durationSeconds float64) {
	t.UpdateRate.RecordCount()
	t.ListRate.RecordSum(float64(lists))
	t.UpdateLatency.Record(durationSeconds)
}

// RecordMean records a metric's running mean into its series.
func (t *TimeSeriesData) RecordMean(metric string, value float64) {
	t.meanHistory(metric).Record(value)
}

// MeanHistories returns the per-metric running mean series, keyed by
// metric name.
func (t *TimeSeriesData) MeanHistories() map[string][]DataPoint {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string][]DataPoint, len(t.means))
	for name, h := range t.means {
		result[name] = h.History()
	}
	return result
}

func (t *TimeSeriesData) meanHistory(metric string) *MetricHistory {
	t.mu.RLock()
	h, ok := t.means[metric]
	t.mu.RUnlock()
	if ok {
		return h
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.means[metric]; ok {
		return h
	}
	if t.storage != nil {
		h = NewMetricHistoryWithRedis(t.bucketSize, t.maxBuckets, t.storage, "mean:"+metric)
	} else {
		h = NewMetricHistory(t.bucketSize, t.maxBuckets)
	}
	t.means[metric] = h
	return h
}
