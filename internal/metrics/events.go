package metrics

import (
	"context"
	"encoding/json"

	"github.com/ricesearch/rank-eval/internal/bus"
)

// EventSubscriber listens on the event bus and mirrors evaluation
// lifecycle events into telemetry, so consumers on the bus and the
// /metrics endpoint see the same picture.
type EventSubscriber struct {
	metrics *Metrics
	bus     bus.Bus
}

// NewEventSubscriber creates a new event subscriber.
func NewEventSubscriber(metrics *Metrics, eventBus bus.Bus) *EventSubscriber {
	return &EventSubscriber{
		metrics: metrics,
		bus:     eventBus,
	}
}

// SubscribeToEvents subscribes to every evaluation lifecycle topic.
func (es *EventSubscriber) SubscribeToEvents(ctx context.Context) error {
	if err := es.bus.Subscribe(ctx, bus.TopicBatchCompleted, es.handleBatchCompleted); err != nil {
		return err
	}
	if err := es.bus.Subscribe(ctx, bus.TopicJudgmentsLoaded, es.handleJudgmentsLoaded); err != nil {
		return err
	}
	if err := es.bus.Subscribe(ctx, bus.TopicMetricsReset, es.handleMetricsReset); err != nil {
		return err
	}
	if err := es.bus.Subscribe(ctx, bus.TopicSnapshotSaved, es.handleSnapshotSaved); err != nil {
		return err
	}
	if err := es.bus.Subscribe(ctx, bus.TopicSnapshotRestored, es.handleSnapshotRestored); err != nil {
		return err
	}
	return nil
}

func (es *EventSubscriber) handleBatchCompleted(ctx context.Context, event bus.Event) error {
	var payload bus.BatchCompletedPayload
	if !decodePayload(event.Payload, &payload) {
		return nil
	}
	es.metrics.SetRunningMean(payload.Metric, payload.RunningMean)
	return nil
}

func (es *EventSubscriber) handleJudgmentsLoaded(ctx context.Context, event bus.Event) error {
	var payload struct {
		Loaded  int `json:"loaded"`
		Queries int `json:"queries"`
	}
	if !decodePayload(event.Payload, &payload) {
		return nil
	}
	es.metrics.RecordJudgments(payload.Loaded, payload.Queries)
	return nil
}

func (es *EventSubscriber) handleMetricsReset(ctx context.Context, event bus.Event) error {
	for _, g := range es.metrics.RunningMean.GetAll() {
		g.Set(0)
	}
	return nil
}

func (es *EventSubscriber) handleSnapshotSaved(ctx context.Context, event bus.Event) error {
	es.metrics.SnapshotSaves.Inc()
	return nil
}

func (es *EventSubscriber) handleSnapshotRestored(ctx context.Context, event bus.Event) error {
	es.metrics.SnapshotRestores.Inc()
	return nil
}

// decodePayload converts an event payload into the target type. The
// payload arrives as the original struct from the memory bus but as
// generic JSON from Kafka, so unmatched shapes go through a JSON round
// trip.
func decodePayload[T any](payload any, target *T) bool {
	if direct, ok := payload.(T); ok {
		*target = direct
		return true
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}
