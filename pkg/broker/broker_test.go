package broker_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/broker"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
)

type fakeTaskStore struct {
	tasks map[string]*models.Task
}

func (f *fakeTaskStore) CreateTask(ctx context.Context, task *models.Task) error { return nil }
func (f *fakeTaskStore) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return t, nil
}
func (f *fakeTaskStore) UpdateStatus(ctx context.Context, taskID string, status models.TaskStatus, errMsg string) error {
	return nil
}
func (f *fakeTaskStore) AssignProcessor(ctx context.Context, taskID, processorID string) error {
	return nil
}
func (f *fakeTaskStore) AssignWorkflow(ctx context.Context, taskID, workflowPlanURI string) error {
	return nil
}

type fakeQueue struct {
	published []struct {
		topic   string
		payload []byte
	}
}

func (f *fakeQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	f.published = append(f.published, struct {
		topic   string
		payload []byte
	}{topic, payload})
	return nil
}
func (f *fakeQueue) Receive(ctx context.Context, topic string) (*ports.QueueMessage, error) {
	return nil, ports.ErrUnavailable
}
func (f *fakeQueue) Ack(ctx context.Context, topic string, messageID string) error { return nil }

func TestBroker_SendMessageToProcessor_Authorized(t *testing.T) {
	tasks := &fakeTaskStore{tasks: map[string]*models.Task{
		"t1": {TaskID: "t1", RequesterID: "u1", AssignedProcessorID: "p1", Status: models.TaskStatusExecuting},
	}}
	q := &fakeQueue{}
	b := broker.New(tasks, q, "messages")

	err := b.SendMessageToProcessor(context.Background(), "t1", "u1", "hello")
	require.NoError(t, err)
	require.Len(t, q.published, 1)

	var msg broker.BrokerQueueMessage
	require.NoError(t, json.Unmarshal(q.published[0].payload, &msg))
	require.Equal(t, "processor", msg.Target)
	require.Equal(t, "p1", msg.TargetID)
	require.Equal(t, "text", msg.ContentType)
}

func TestBroker_SendMessageToProcessor_WrongRequester(t *testing.T) {
	tasks := &fakeTaskStore{tasks: map[string]*models.Task{
		"t1": {TaskID: "t1", RequesterID: "u2", AssignedProcessorID: "p1", Status: models.TaskStatusExecuting},
	}}
	b := broker.New(tasks, &fakeQueue{}, "messages")

	err := b.SendMessageToProcessor(context.Background(), "t1", "u1", "hello")
	require.Error(t, err)
	require.Equal(t, apierrors.KindAuthz, apierrors.KindOf(err))
}

func TestBroker_SendMessageToRequester_JSONContent(t *testing.T) {
	tasks := &fakeTaskStore{tasks: map[string]*models.Task{
		"t1": {TaskID: "t1", RequesterID: "u1", AssignedProcessorID: "p1", Status: models.TaskStatusExecuting},
	}}
	q := &fakeQueue{}
	b := broker.New(tasks, q, "messages")

	err := b.SendMessageToRequester(context.Background(), "t1", "p1", map[string]any{"progress": 0.5})
	require.NoError(t, err)

	var msg broker.BrokerQueueMessage
	require.NoError(t, json.Unmarshal(q.published[0].payload, &msg))
	require.Equal(t, "requester", msg.Target)
	require.Equal(t, "u1", msg.TargetID)
	require.Equal(t, "json", msg.ContentType)
}

func TestBroker_SendMessageToRequester_WrongProcessor(t *testing.T) {
	tasks := &fakeTaskStore{tasks: map[string]*models.Task{
		"t1": {TaskID: "t1", RequesterID: "u1", AssignedProcessorID: "p1", Status: models.TaskStatusExecuting},
	}}
	b := broker.New(tasks, &fakeQueue{}, "messages")

	err := b.SendMessageToRequester(context.Background(), "t1", "p2", "hi")
	require.Error(t, err)
	require.Equal(t, apierrors.KindAuthz, apierrors.KindOf(err))
}

func TestBroker_MessageForMissingTask(t *testing.T) {
	b := broker.New(&fakeTaskStore{tasks: map[string]*models.Task{}}, &fakeQueue{}, "messages")

	err := b.SendMessageToProcessor(context.Background(), "missing", "u1", "hi")
	require.Error(t, err)
	require.Equal(t, apierrors.KindNotFound, apierrors.KindOf(err))
}
