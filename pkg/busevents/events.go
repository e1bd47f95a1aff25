// Package busevents implements the event publisher (C6): typed domain
// events published onto the durable queue, replacing the teacher's
// Postgres NOTIFY/WebSocket fan-out entirely (spec §6.2 names a fixed set
// of wire payloads; there are no subscribers inside this process, only the
// queue-driven matching consumer and the external backend). The typed
// public-method-per-payload shape is grounded on the teacher's
// pkg/events.EventPublisher (PublishX(ctx, payload) marshal-then-send).
package busevents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/ports"
)

// TaskPendingMatchEvent is the wire payload published once a task clears
// clarification and registration (spec §6.2, §4.7 step 6).
type TaskPendingMatchEvent struct {
	TaskID           string    `json:"taskId"`
	SpecificationURI string    `json:"specificationUri"`
	RequesterID      string    `json:"requesterId"`
	Timestamp        time.Time `json:"timestamp"`
}

// Publisher publishes domain events onto a single configured topic.
type Publisher struct {
	queue ports.Queue
	topic string
}

func NewPublisher(queue ports.Queue, topic string) *Publisher {
	return &Publisher{queue: queue, topic: topic}
}

// PublishTaskPendingMatch marshals and enqueues evt onto the configured
// task-event topic (TASK_EVENT_TOPIC).
func (p *Publisher) PublishTaskPendingMatch(ctx context.Context, evt TaskPendingMatchEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return apierrors.Wrap(apierrors.KindUnknown, "event_marshal_failed", "failed marshalling TaskPendingMatchEvent", err)
	}
	if err := p.queue.Publish(ctx, p.topic, payload); err != nil {
		return apierrors.Wrap(apierrors.KindQueue, "event_publish_failed", "failed publishing TaskPendingMatchEvent", err)
	}
	return nil
}
