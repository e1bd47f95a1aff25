// Package broker implements the message broker (C13): authorisation-gated
// relay of free-form messages between a requester and the processor
// assigned to their task, enqueued onto the durable queue for delivery
// (spec §4.9). Grounded on the teacher's pkg/api authorisation-check-then-
// act handler shape (load entity, assert ownership, act).
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
)

// BrokerQueueMessage is the wire payload enqueued for delivery to either
// side of a task (spec §6.2).
type BrokerQueueMessage struct {
	Target      string    `json:"target"` // "processor" | "requester"
	TargetID    string    `json:"targetId"`
	TaskID      string    `json:"taskId"`
	SenderRole  string    `json:"senderRole"` // "requester" | "processor"
	ContentType string    `json:"contentType"`
	Content     any       `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

// preferredMessagingStatus is the task status messaging is expected to
// happen in; other statuses are allowed but logged (spec §4.9).
const preferredMessagingStatus = models.TaskStatusExecuting

// Broker relays messages between a task's requester and its assigned
// processor, enqueuing onto the message topic for delivery.
type Broker struct {
	tasks ports.TaskStore
	queue ports.Queue
	topic string
}

func New(tasks ports.TaskStore, queue ports.Queue, topic string) *Broker {
	return &Broker{tasks: tasks, queue: queue, topic: topic}
}

// SendMessageToProcessor relays content from the task's requester to its
// assigned processor (spec §4.9). requesterID must match task.RequesterID.
func (b *Broker) SendMessageToProcessor(ctx context.Context, taskID, requesterID string, content any) error {
	task, err := b.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.RequesterID != requesterID {
		return apierrors.New(apierrors.KindAuthz, "not_task_requester", "sender is not the task's requester")
	}
	if task.AssignedProcessorID == "" {
		return apierrors.NewValidation("no_assigned_processor", "task has no assigned processor yet")
	}
	warnIfUnexpectedStatus(task)
	return b.enqueue(ctx, BrokerQueueMessage{
		Target:      "processor",
		TargetID:    task.AssignedProcessorID,
		TaskID:      taskID,
		SenderRole:  "requester",
		ContentType: contentType(content),
		Content:     content,
		Timestamp:   time.Now(),
	})
}

// SendMessageToRequester relays content from the task's assigned processor
// to its requester (spec §4.9). processorID must match
// task.AssignedProcessorID.
func (b *Broker) SendMessageToRequester(ctx context.Context, taskID, processorID string, content any) error {
	task, err := b.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.AssignedProcessorID != processorID {
		return apierrors.New(apierrors.KindAuthz, "not_assigned_processor", "sender is not the task's assigned processor")
	}
	warnIfUnexpectedStatus(task)
	return b.enqueue(ctx, BrokerQueueMessage{
		Target:      "requester",
		TargetID:    task.RequesterID,
		TaskID:      taskID,
		SenderRole:  "processor",
		ContentType: contentType(content),
		Content:     content,
		Timestamp:   time.Now(),
	})
}

func (b *Broker) loadTask(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := b.tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apierrors.NewNotFound("task_not_found", "task not found")
		}
		return nil, apierrors.Wrap(apierrors.KindDatabase, "task_load_failed", "failed loading task for messaging", err)
	}
	return task, nil
}

func (b *Broker) enqueue(ctx context.Context, msg BrokerQueueMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return apierrors.Wrap(apierrors.KindUnknown, "message_marshal_failed", "failed marshalling broker message", err)
	}
	if err := b.queue.Publish(ctx, b.topic, payload); err != nil {
		return apierrors.Wrap(apierrors.KindQueue, "message_publish_failed", "failed publishing broker message", err)
	}
	return nil
}

// contentType implements spec §4.9's "'text' if typeof content === string,
// else 'json'" rule.
func contentType(content any) string {
	if _, ok := content.(string); ok {
		return "text"
	}
	return "json"
}

func warnIfUnexpectedStatus(task *models.Task) {
	if task.Status != preferredMessagingStatus {
		slog.Warn("broker: messaging task outside preferred status", "task_id", task.TaskID, "status", task.Status)
	}
}
