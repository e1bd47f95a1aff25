package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/agentbus/core/pkg/cache"
	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
)

// newTestClient points a cache.Client at an in-process fake Redis server —
// the teacher pack's miniredis pattern for exercising go-redis call sites
// without a real server.
func newTestClient(t *testing.T) *cache.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c := cache.New(config.CacheConfig{RedisAddr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_StatusRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetStatus(ctx, "task:status:missing")
	require.ErrorIs(t, err, ports.ErrNotFound)

	status := &ports.CachedStatus{Status: models.TaskStatusMatching, UpdatedAt: time.Now()}
	require.NoError(t, c.SetStatus(ctx, "task:status:t1", status, time.Minute))

	got, err := c.GetStatus(ctx, "task:status:t1")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusMatching, got.Status)
}

func TestClient_SetStatusLinked(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	status := &ports.CachedStatus{Status: models.TaskStatusClarified, FinalTaskID: "t1", UpdatedAt: time.Now()}
	require.NoError(t, c.SetStatusLinked(ctx, "task:status:d1", "task:status:t1", status, time.Minute))

	fromDialogue, err := c.GetStatus(ctx, "task:status:d1")
	require.NoError(t, err)
	fromTask, err := c.GetStatus(ctx, "task:status:t1")
	require.NoError(t, err)
	require.Equal(t, fromDialogue.FinalTaskID, fromTask.FinalTaskID)
	require.Equal(t, "t1", fromTask.FinalTaskID)
}

func TestClient_DialogueRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	state := &models.DialogueState{
		DialogueID: "d1",
		Stage:      models.StageGatheringPlatforms,
		ExtractedParams: models.ExtractedParams{
			InitialDescription: "build a landing page",
		},
	}
	require.NoError(t, c.SetDialogue(ctx, state, time.Minute))

	got, err := c.GetDialogue(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, models.StageGatheringPlatforms, got.Stage)
	require.Equal(t, "build a landing page", got.ExtractedParams.InitialDescription)
}

func TestClient_SetSpec(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	spec := &models.TaskSpecification{Description: "x", Tags: []string{"pdf"}}
	require.NoError(t, c.SetSpec(ctx, "t1", spec, time.Minute))
}
