// Package bus provides event bus implementations for evaluation
// lifecycle notifications.
package bus

import (
	"context"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Request sends a request and waits for a response.
	Request(ctx context.Context, topic string, req Event) (Event, error)

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type (e.g., "evaluation.batch.completed").
	Type string `json:"type"`

	// Source is the service that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created.
	Timestamp int64 `json:"timestamp"`

	// CorrelationID links related events (e.g., request/response).
	CorrelationID string `json:"correlation_id,omitempty"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// Topics for different event types.
const (
	// Evaluation lifecycle topics.
	TopicBatchCompleted = "evaluation.batch.completed"
	TopicPassCompleted  = "evaluation.pass.completed"
	TopicMetricsReset   = "evaluation.metrics.reset"

	// Judgment management topics.
	TopicJudgmentsLoaded = "judgments.loaded"

	// Snapshot topics.
	TopicSnapshotSaved    = "snapshot.saved"
	TopicSnapshotRestored = "snapshot.restored"
)

// BatchCompletedPayload is published on TopicBatchCompleted after every
// Update call against the evaluation service.
type BatchCompletedPayload struct {
	// Metric is the metric name, e.g. "ndcg_5".
	Metric string `json:"metric"`

	// Lists is how many lists the batch contained.
	Lists int `json:"lists"`

	// BatchMean is the batch-local weighted mean.
	BatchMean float64 `json:"batch_mean"`

	// RunningMean is the all-time running weighted mean after the batch.
	RunningMean float64 `json:"running_mean"`
}
