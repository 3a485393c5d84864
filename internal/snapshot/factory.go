package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/ricesearch/rank-eval/internal/config"
	"github.com/ricesearch/rank-eval/internal/pkg/errors"
)

// NewStore creates a snapshot store from configuration. Type "none"
// returns a nil store; callers treat that as snapshotting disabled.
func NewStore(cfg config.SnapshotConfig) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "none", "":
		return nil, nil

	case "memory":
		return NewMemoryStore(), nil

	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New(errors.CodeValidation, "redis URL not configured")
		}
		return NewRedisStore(cfg.RedisURL, time.Duration(cfg.TTLHours)*time.Hour)

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown snapshot type: %s", cfg.Type))
	}
}
