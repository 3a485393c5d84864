package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage persists time-series history to Redis so charts survive
// restarts. Points live in a sorted set per metric, scored by their
// Unix timestamp.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStorage creates a Redis storage backend, failing if the
// server is unreachable.
func NewRedisStorage(url string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStorage{
		client: client,
		prefix: "rankeval:metrics:",
		ttl:    24 * time.Hour,
	}, nil
}

// SaveDataPoint appends a single data point and trims points older than
// the TTL in one pipeline.
func (rs *RedisStorage) SaveDataPoint(ctx context.Context, metric string, dp DataPoint) error {
	key := rs.prefix + metric

	pipe := rs.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(dp.Timestamp.Unix()),
		Member: fmt.Sprintf("%.6f", dp.Value),
	})
	minScore := time.Now().Add(-rs.ttl).Unix()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", minScore))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving data point: %w", err)
	}
	return nil
}

// LoadHistory loads data points at or after the given time.
func (rs *RedisStorage) LoadHistory(ctx context.Context, metric string, since time.Time) ([]DataPoint, error) {
	key := rs.prefix + metric

	results, err := rs.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.Unix()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	dataPoints := make([]DataPoint, 0, len(results))
	for _, z := range results {
		value, err := strconv.ParseFloat(z.Member.(string), 64)
		if err != nil {
			continue
		}
		dataPoints = append(dataPoints, DataPoint{
			Timestamp: time.Unix(int64(z.Score), 0),
			Value:     value,
		})
	}
	return dataPoints, nil
}

// MetricNames returns every metric with stored history.
func (rs *RedisStorage) MetricNames(ctx context.Context) ([]string, error) {
	keys, err := rs.client.Keys(ctx, rs.prefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("getting metric names: %w", err)
	}

	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = key[len(rs.prefix):]
	}
	return names, nil
}

// DeleteMetric removes all stored history for a metric.
func (rs *RedisStorage) DeleteMetric(ctx context.Context, metric string) error {
	if err := rs.client.Del(ctx, rs.prefix+metric).Err(); err != nil {
		return fmt.Errorf("deleting metric: %w", err)
	}
	return nil
}

// SetTTL adjusts the retention window for stored data points.
func (rs *RedisStorage) SetTTL(ttl time.Duration) {
	rs.ttl = ttl
}

// Close closes the Redis connection.
func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}
