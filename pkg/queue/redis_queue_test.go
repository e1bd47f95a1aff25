package queue_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/queue"
)

func newTestClient(t *testing.T, consumerID string) *queue.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c := queue.New(config.QueueConfig{RedisAddr: mr.Addr()}, consumerID)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_PublishReceiveAck(t *testing.T) {
	c := newTestClient(t, "worker-1")
	ctx := context.Background()

	require.NoError(t, c.Publish(ctx, "task-events", []byte(`{"taskId":"t1"}`)))

	msg, err := c.Receive(ctx, "task-events")
	require.NoError(t, err)
	require.Equal(t, `{"taskId":"t1"}`, string(msg.Payload))
	require.NotEmpty(t, msg.ID)

	require.NoError(t, c.Ack(ctx, "task-events", msg.ID))
}

func TestClient_Receive_EmptyTopicReturnsUnavailable(t *testing.T) {
	c := newTestClient(t, "worker-1")
	ctx := context.Background()

	_, err := c.Receive(ctx, "empty-topic")
	require.ErrorIs(t, err, ports.ErrUnavailable)
}

func TestClient_Receive_OnlyDeliversOncePerGroup(t *testing.T) {
	c1 := newTestClient(t, "worker-1")
	ctx := context.Background()

	require.NoError(t, c1.Publish(ctx, "task-events", []byte("payload-1")))

	msg, err := c1.Receive(ctx, "task-events")
	require.NoError(t, err)
	require.Equal(t, "payload-1", string(msg.Payload))

	// A second Receive on the same group, without Ack, should not redeliver
	// a fresh ">" entry since there is nothing new pending.
	_, err = c1.Receive(ctx, "task-events")
	require.ErrorIs(t, err, ports.ErrUnavailable)
}
