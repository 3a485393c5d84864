// Package observability keeps an in-memory audit log of evaluation
// activity for post-hoc inspection of metric drift.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/ricesearch/rank-eval/internal/pkg/logger"
)

// Service provides the evaluation audit log.
type Service struct {
	mu        sync.RWMutex
	updateLog []UpdateLogEntry
	maxLogs   int
	log       *logger.Logger
}

// NewService creates a new observability service.
func NewService(log *logger.Logger) *Service {
	return &Service{
		updateLog: make([]UpdateLogEntry, 0, 1000),
		maxLogs:   100000, // Keep last 100k entries
		log:       log,
	}
}

// LogUpdate records one metric update.
func (s *Service) LogUpdate(entry UpdateLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateLog = append(s.updateLog, entry)

	// Trim if too large (simple FIFO)
	if len(s.updateLog) > s.maxLogs {
		// Remove first 10% to amortize resize cost
		removeCount := s.maxLogs / 10
		s.updateLog = s.updateLog[removeCount:]
	}
}

// UpdatesInRange returns updates within a time range, optionally
// filtered by metric name.
func (s *Service) UpdatesInRange(ctx context.Context, metric string, from, to time.Time) ([]UpdateLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []UpdateLogEntry
	for _, entry := range s.updateLog {
		if metric != "" && entry.Metric != metric {
			continue
		}
		if entry.Timestamp.Before(from) || entry.Timestamp.After(to) {
			continue
		}
		results = append(results, entry)
	}
	return results, nil
}

// Len returns how many entries the log currently holds.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.updateLog)
}
