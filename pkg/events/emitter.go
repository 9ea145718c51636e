package events

import (
	"context"
	"encoding/json"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
)

const (
	EventReconciliationCompleted = "reconciliation.completed"
	EventReconciliationFailed    = "reconciliation.failed"
)

// Emitter publishes reconciliation lifecycle events. It satisfies the
// matching.Emitter collaborator.
type Emitter struct {
	producer *kafka.Producer
}

// NewEmitter creates a new event emitter backed by a Kafka producer.
func NewEmitter(producer *kafka.Producer) *Emitter {
	return &Emitter{producer: producer}
}

// EmitReconciliationCompleted publishes a reconciliation.completed event.
func (e *Emitter) EmitReconciliationCompleted(ctx context.Context, tenantID, jobID string, summary models.ReconciliationSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	return e.producer.PublishReconciliationEvent(ctx, &kafka.ReconciliationEvent{
		EventType: EventReconciliationCompleted,
		TenantID:  tenantID,
		JobID:     jobID,
		Summary:   data,
	})
}

// EmitReconciliationFailed publishes a reconciliation.failed event.
func (e *Emitter) EmitReconciliationFailed(ctx context.Context, tenantID, jobID, message string) error {
	return e.producer.PublishReconciliationEvent(ctx, &kafka.ReconciliationEvent{
		EventType:    EventReconciliationFailed,
		TenantID:     tenantID,
		JobID:        jobID,
		ErrorMessage: message,
	})
}
