package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/ricesearch/rank-eval/internal/pkg/errors"
)

// RedisStore provides Redis-backed persistence for metric snapshots.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration // 0 = keep forever
}

// NewRedisStore creates a new Redis snapshot store.
// Returns error if connection fails.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: "rankeval:snapshot:",
		ttl:    ttl,
	}, nil
}

// Save writes a snapshot as a JSON value under the metric's key.
func (rs *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return apperrors.SnapshotError("encoding snapshot", err)
	}

	key := rs.prefix + snap.Config.Name
	if err := rs.client.Set(ctx, key, data, rs.ttl).Err(); err != nil {
		return apperrors.SnapshotError("saving snapshot", err)
	}
	return nil
}

// Load retrieves a snapshot by metric name.
func (rs *RedisStore) Load(ctx context.Context, name string) (Snapshot, error) {
	data, err := rs.client.Get(ctx, rs.prefix+name).Bytes()
	if err == redis.Nil {
		return Snapshot{}, apperrors.NotFoundError("snapshot")
	}
	if err != nil {
		return Snapshot{}, apperrors.SnapshotError("loading snapshot", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, apperrors.SnapshotError("decoding snapshot", err)
	}
	return snap, nil
}

// Names returns all metric names with stored snapshots.
func (rs *RedisStore) Names(ctx context.Context) ([]string, error) {
	keys, err := rs.client.Keys(ctx, rs.prefix+"*").Result()
	if err != nil {
		return nil, apperrors.SnapshotError("listing snapshots", err)
	}

	// Strip prefix from keys
	names := make([]string, len(keys))
	prefixLen := len(rs.prefix)
	for i, key := range keys {
		names[i] = key[prefixLen:]
	}
	return names, nil
}

// Delete removes the snapshot for a metric name.
func (rs *RedisStore) Delete(ctx context.Context, name string) error {
	if err := rs.client.Del(ctx, rs.prefix+name).Err(); err != nil {
		return apperrors.SnapshotError("deleting snapshot", err)
	}
	return nil
}

// Close closes the Redis connection.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
