// Package events carries knowledge-base enrichment events from request
// handlers to the enrichment worker.
package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services/workqueue"
)

// Publisher hands an enrichment event to whatever processes it.
// Publishing never runs enrichment inline.
type Publisher interface {
	Publish(ctx context.Context, event models.EnrichmentEvent) error
}

// Handler consumes one enrichment event.
type Handler interface {
	HandleEvent(ctx context.Context, event models.EnrichmentEvent) error
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx context.Context, event models.EnrichmentEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event models.EnrichmentEvent) error {
	return f(ctx, event)
}

// QueuePublisher processes events in-process on a work queue.
// Used when no Redis is configured.
type QueuePublisher struct {
	queue   *workqueue.Queue
	handler Handler
	logger  *zap.Logger
}

// NewQueuePublisher creates a publisher that enqueues events for handler.
func NewQueuePublisher(queue *workqueue.Queue, handler Handler, logger *zap.Logger) *QueuePublisher {
	return &QueuePublisher{
		queue:   queue,
		handler: handler,
		logger:  logger.Named("events"),
	}
}

var _ Publisher = (*QueuePublisher)(nil)

func (p *QueuePublisher) Publish(_ context.Context, event models.EnrichmentEvent) error {
	if err := p.queue.Enqueue(newEventTask(p.handler, event)); err != nil {
		return fmt.Errorf("failed to enqueue enrichment event: %w", err)
	}

	p.logger.Debug("Enrichment event queued",
		zap.String("event_id", event.ID.String()),
		zap.String("kind", string(event.Kind)),
		zap.String("organization_id", event.OrganizationID.String()))
	return nil
}

// eventTask runs a handler for one event on the work queue.
type eventTask struct {
	workqueue.BaseTask
	handler Handler
	event   models.EnrichmentEvent
}

func newEventTask(handler Handler, event models.EnrichmentEvent) *eventTask {
	// Chat exchanges need an LLM call to extract insights; saved analyses do not.
	requiresLLM := event.Kind == models.EnrichmentChatExchange
	return &eventTask{
		BaseTask: workqueue.NewBaseTask("enrich:"+string(event.Kind), requiresLLM),
		handler:  handler,
		event:    event,
	}
}

func (t *eventTask) Execute(ctx context.Context, _ workqueue.TaskEnqueuer) error {
	return t.handler.HandleEvent(ctx, t.event)
}

// NopPublisher drops events. Used by the CLI and tests that do not enrich.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.EnrichmentEvent) error { return nil }
