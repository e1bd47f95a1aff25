package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/store"
)

// newTestClient spins up a disposable Postgres container, runs the package's
// embedded migrations against it, and registers cleanup — the teacher's
// test/database.NewTestClient pattern, minus the ent wiring.
func newTestClient(t *testing.T) *store.Client {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("agentbus_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := store.NewClient(ctx, config.StoreConfig{DSN: connStr, MaxOpenConns: 5, MaxIdleConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestTaskStore_CreateGetUpdate(t *testing.T) {
	client := newTestClient(t)
	s := store.NewTaskStore(client)
	ctx := context.Background()

	task := &models.Task{
		TaskID:           "task-1",
		RequesterID:      "req-1",
		SpecificationURI: "s3://specs/task-1.json",
		Status:           models.TaskStatusInitial,
	}
	require.NoError(t, s.CreateTask(ctx, task))
	require.False(t, task.CreatedAt.IsZero())

	got, err := s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusInitial, got.Status)
	require.Equal(t, "req-1", got.RequesterID)

	// Walk the task through the legal prefix of the lifecycle graph up to
	// Matching before exercising AssignProcessor, since the store now
	// rejects any edge outside models.TaskStatus.CanTransitionTo.
	for _, status := range []models.TaskStatus{
		models.TaskStatusPendingClarification,
		models.TaskStatusClarified,
		models.TaskStatusPendingRegistration,
		models.TaskStatusPendingMatch,
		models.TaskStatusMatching,
	} {
		require.NoError(t, s.UpdateStatus(ctx, "task-1", status, ""))
	}
	got, err = s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusMatching, got.Status)

	require.NoError(t, s.AssignProcessor(ctx, "task-1", "proc-9"))
	got, err = s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, "proc-9", got.AssignedProcessorID)
	require.Equal(t, models.TaskStatusProcessorAssigned, got.Status)

	_, err = s.GetTask(ctx, "does-not-exist")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestTaskStore_UpdateStatusMissingTask(t *testing.T) {
	client := newTestClient(t)
	s := store.NewTaskStore(client)
	err := s.UpdateStatus(context.Background(), "missing", models.TaskStatusFailed, "boom")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestTaskStore_UpdateStatusRejectsIllegalTransition(t *testing.T) {
	client := newTestClient(t)
	s := store.NewTaskStore(client)
	ctx := context.Background()

	task := &models.Task{
		TaskID:           "task-illegal",
		RequesterID:      "req-1",
		SpecificationURI: "s3://specs/task-illegal.json",
		Status:           models.TaskStatusInitial,
	}
	require.NoError(t, s.CreateTask(ctx, task))

	// Initial can only move to PendingClarification; Executing is not a
	// direct descendant, so the transition must be rejected.
	err := s.UpdateStatus(ctx, "task-illegal", models.TaskStatusExecuting, "")
	require.Error(t, err)

	var apiErr *apierrors.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apierrors.KindConflict, apiErr.Kind)

	got, getErr := s.GetTask(ctx, "task-illegal")
	require.NoError(t, getErr)
	require.Equal(t, models.TaskStatusInitial, got.Status)
}
