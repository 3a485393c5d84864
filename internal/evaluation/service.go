// Package evaluation orchestrates ranking metric computation: it owns a
// set of metric accumulators, joins ranked runs against loaded
// relevance judgments, and publishes lifecycle events on the bus.
package evaluation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ricesearch/rank-eval/internal/bus"
	"github.com/ricesearch/rank-eval/internal/config"
	"github.com/ricesearch/rank-eval/internal/observability"
	apperrors "github.com/ricesearch/rank-eval/internal/pkg/errors"
	"github.com/ricesearch/rank-eval/internal/pkg/logger"
	"github.com/ricesearch/rank-eval/internal/ranking"
	"github.com/ricesearch/rank-eval/internal/snapshot"
)

// Service owns the evaluation state: the configured metrics with their
// running aggregates, and the relevance judgments used to label ranked
// runs. All exported methods are safe for concurrent use.
type Service struct {
	mu        sync.Mutex
	metrics   []*ranking.Metric
	judgments map[string]map[string]float64 // queryID -> docID -> relevance
	workers   int

	bus   bus.Bus
	store snapshot.Store
	audit *observability.Service
	log   *logger.Logger
}

// NewService builds a service from the evaluation config. An empty
// metrics spec selects the default metric set.
func NewService(cfg config.EvalConfig, b bus.Bus, store snapshot.Store, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.Default()
	}

	metrics, err := ParseSpecs(cfg.Metrics, ranking.Options{Alpha: cfg.Alpha, Seed: cfg.Seed})
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Service{
		metrics:   metrics,
		judgments: make(map[string]map[string]float64),
		workers:   workers,
		bus:       b,
		store:     store,
		log:       log,
	}, nil
}

// ParseSpecs parses a comma-separated metric spec list such as
// "ndcg@5,mrr,precision@10" into metric accumulators. Each spec is a
// metric key with an optional @topn suffix. An empty spec selects the
// default metric set.
func ParseSpecs(specs string, opts ranking.Options) ([]*ranking.Metric, error) {
	specs = strings.TrimSpace(specs)
	if specs == "" {
		return ranking.DefaultMetrics()
	}

	var metrics []*ranking.Metric
	seen := make(map[string]bool)
	for _, spec := range strings.Split(specs, ",") {
		m, err := ParseSpec(strings.TrimSpace(spec), opts)
		if err != nil {
			return nil, err
		}
		if seen[m.Name()] {
			return nil, apperrors.ValidationError(fmt.Sprintf("duplicate metric %q", m.Name()))
		}
		seen[m.Name()] = true
		metrics = append(metrics, m)
	}
	return metrics, nil
}

// ParseSpec parses a single metric spec like "ndcg@5" or "mrr".
func ParseSpec(spec string, opts ranking.Options) (*ranking.Metric, error) {
	if spec == "" {
		return nil, apperrors.ValidationError("empty metric spec")
	}

	key := spec
	if at := strings.IndexByte(spec, '@'); at >= 0 {
		key = spec[:at]
		topn, err := strconv.Atoi(spec[at+1:])
		if err != nil || topn < 1 {
			return nil, apperrors.ValidationError(fmt.Sprintf("invalid topn in metric spec %q", spec))
		}
		opts.Topn = topn
	}

	return ranking.Get(key, opts)
}

// SetAuditLog attaches an audit log; every Update records one entry per
// metric. A nil audit log disables recording.
func (s *Service) SetAuditLog(audit *observability.Service) {
	s.audit = audit
}

// AuditLog returns the attached audit log, or nil.
func (s *Service) AuditLog() *observability.Service {
	return s.audit
}

// Metrics returns the configured metric accumulators.
func (s *Service) Metrics() []*ranking.Metric {
	return s.metrics
}

// LoadJudgments merges relevance judgments into the judgment set.
// Later judgments for the same query-doc pair win.
func (s *Service) LoadJudgments(ctx context.Context, judgments []RelevanceJudgment) error {
	s.mu.Lock()
	for _, j := range judgments {
		if j.Relevance < 0 {
			s.mu.Unlock()
			return apperrors.ValidationError(fmt.Sprintf("negative relevance for query %q doc %q", j.QueryID, j.DocID))
		}
		if s.judgments[j.QueryID] == nil {
			s.judgments[j.QueryID] = make(map[string]float64)
		}
		s.judgments[j.QueryID][j.DocID] = j.Relevance
	}
	queries := len(s.judgments)
	s.mu.Unlock()

	s.publish(ctx, bus.TopicJudgmentsLoaded, map[string]any{
		"loaded":  len(judgments),
		"queries": queries,
	})
	return nil
}

// JudgmentCount returns how many judged queries are loaded.
func (s *Service) JudgmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.judgments)
}

// Update feeds a batch of labeled lists to every metric and returns the
// batch-local and running means. Metrics are updated concurrently, one
// goroutine per metric, bounded by the configured worker count.
func (s *Service) Update(ctx context.Context, batch ranking.Batch, sampleWeight []float64) (*Summary, error) {
	for i := range batch {
		if err := batch[i].Validate(); err != nil {
			return nil, err
		}
	}

	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	batchMeans := make([]float64, len(s.metrics))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, m := range s.metrics {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mean, err := m.Update(batch, sampleWeight)
			if err != nil {
				return fmt.Errorf("metric %s: %w", m.Name(), err)
			}
			batchMeans[i] = mean
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		Batch:   make(map[string]float64, len(s.metrics)),
		Running: make(map[string]float64, len(s.metrics)),
		Lists:   len(batch),
	}
	latencyMs := time.Since(start).Milliseconds()
	for i, m := range s.metrics {
		summary.Batch[m.Name()] = batchMeans[i]
		summary.Running[m.Name()] = m.Result()

		s.publish(ctx, bus.TopicBatchCompleted, bus.BatchCompletedPayload{
			Metric:      m.Name(),
			Lists:       len(batch),
			BatchMean:   batchMeans[i],
			RunningMean: summary.Running[m.Name()],
		})

		if s.audit != nil {
			s.audit.LogUpdate(observability.UpdateLogEntry{
				Timestamp:   time.Now(),
				Metric:      m.Name(),
				Lists:       len(batch),
				BatchMean:   batchMeans[i],
				RunningMean: summary.Running[m.Name()],
				LatencyMs:   latencyMs,
			})
		}
	}
	return summary, nil
}

// EvaluateRun labels each ranked result from the loaded judgments and
// feeds the resulting batch to every metric. Unjudged documents get
// relevance zero; queries with no judged document at all yield fully
// zero-labeled lists, which the metrics exclude as weightless.
func (s *Service) EvaluateRun(ctx context.Context, run []RankedResult, sampleWeight []float64) (*Summary, error) {
	batch := make(ranking.Batch, 0, len(run))

	s.mu.Lock()
	for _, r := range run {
		if len(r.DocIDs) != len(r.Scores) {
			s.mu.Unlock()
			return nil, apperrors.ValidationError(fmt.Sprintf("query %q: %d doc ids but %d scores", r.QueryID, len(r.DocIDs), len(r.Scores)))
		}
		list := ranking.List{
			Labels:  make([]float64, len(r.DocIDs)),
			Scores:  r.Scores,
			Weights: r.Weights,
		}
		judged := s.judgments[r.QueryID]
		for i, doc := range r.DocIDs {
			list.Labels[i] = judged[doc]
		}
		batch = append(batch, list)
	}
	s.mu.Unlock()

	summary, err := s.Update(ctx, batch, sampleWeight)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, bus.TopicPassCompleted, map[string]any{
		"queries": len(run),
	})
	return summary, nil
}

// Results returns the running weighted mean of every metric.
func (s *Service) Results() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		results[m.Name()] = m.Result()
	}
	return results
}

// Configs returns the checkpointable config of every metric.
func (s *Service) Configs() []ranking.Config {
	configs := make([]ranking.Config, len(s.metrics))
	for i, m := range s.metrics {
		configs[i] = m.Config()
	}
	return configs
}

// Reset zeroes every metric's aggregates. Judgments are kept.
func (s *Service) Reset(ctx context.Context) {
	s.mu.Lock()
	for _, m := range s.metrics {
		m.Reset()
	}
	s.mu.Unlock()

	s.publish(ctx, bus.TopicMetricsReset, map[string]any{
		"metrics": len(s.metrics),
	})
}

// SaveSnapshot persists every metric's aggregates to the snapshot
// store.
func (s *Service) SaveSnapshot(ctx context.Context) error {
	if s.store == nil {
		return apperrors.SnapshotError("no snapshot store configured", nil)
	}

	s.mu.Lock()
	err := snapshot.SaveAll(ctx, s.store, s.metrics)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(ctx, bus.TopicSnapshotSaved, map[string]any{
		"metrics": len(s.metrics),
	})
	return nil
}

// RestoreSnapshot restores every metric's aggregates from the snapshot
// store. Metrics without a stored snapshot keep their current state.
func (s *Service) RestoreSnapshot(ctx context.Context) error {
	if s.store == nil {
		return apperrors.SnapshotError("no snapshot store configured", nil)
	}

	s.mu.Lock()
	err := snapshot.RestoreAll(ctx, s.store, s.metrics)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(ctx, bus.TopicSnapshotRestored, map[string]any{
		"metrics": len(s.metrics),
	})
	return nil
}

func (s *Service) publish(ctx context.Context, topic string, payload any) {
	if s.bus == nil {
		return
	}
	event := bus.Event{
		ID:        fmt.Sprintf("ev-%s-%d", topic, time.Now().UnixNano()),
		Type:      topic,
		Source:    "rank-eval",
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
	if err := s.bus.Publish(ctx, topic, event); err != nil {
		s.log.Warn("Failed to publish event", "topic", topic, "error", err)
	}
}
