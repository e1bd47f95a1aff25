package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
)

// TaskStore implements ports.TaskStore over the pooled Postgres connection.
type TaskStore struct {
	db *sql.DB
}

// NewTaskStore builds a TaskStore from an already-migrated Client.
func NewTaskStore(c *Client) *TaskStore {
	return &TaskStore{db: c.db}
}

var _ ports.TaskStore = (*TaskStore)(nil)

func (s *TaskStore) CreateTask(ctx context.Context, task *models.Task) error {
	const q = `
		INSERT INTO tasks (task_id, requester_id, specification_uri, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING created_at, updated_at`
	return s.db.QueryRowContext(ctx, q, task.TaskID, task.RequesterID, task.SpecificationURI, task.Status).
		Scan(&task.CreatedAt, &task.UpdatedAt)
}

func (s *TaskStore) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	const q = `
		SELECT task_id, requester_id, specification_uri, status,
		       COALESCE(assigned_processor_id, ''), COALESCE(workflow_plan_uri, ''),
		       COALESCE(result_uri, ''), COALESCE(error, ''), created_at, updated_at
		FROM tasks WHERE task_id = $1`

	var t models.Task
	err := s.db.QueryRowContext(ctx, q, taskID).Scan(
		&t.TaskID, &t.RequesterID, &t.SpecificationURI, &t.Status,
		&t.AssignedProcessorID, &t.WorkflowPlanURI, &t.ResultURI, &t.Error,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return &t, nil
}

func (s *TaskStore) UpdateStatus(ctx context.Context, taskID string, status models.TaskStatus, errMsg string) error {
	return s.transitionStatus(ctx, taskID, status, func(tx *sql.Tx) (sql.Result, error) {
		const q = `UPDATE tasks SET status = $2, error = NULLIF($3, '') WHERE task_id = $1`
		return tx.ExecContext(ctx, q, taskID, status, errMsg)
	})
}

func (s *TaskStore) AssignProcessor(ctx context.Context, taskID, processorID string) error {
	return s.transitionStatus(ctx, taskID, models.TaskStatusProcessorAssigned, func(tx *sql.Tx) (sql.Result, error) {
		const q = `UPDATE tasks SET assigned_processor_id = $2, status = $3 WHERE task_id = $1`
		return tx.ExecContext(ctx, q, taskID, processorID, models.TaskStatusProcessorAssigned)
	})
}

func (s *TaskStore) AssignWorkflow(ctx context.Context, taskID, workflowPlanURI string) error {
	return s.transitionStatus(ctx, taskID, models.TaskStatusWorkflowAssigned, func(tx *sql.Tx) (sql.Result, error) {
		const q = `UPDATE tasks SET workflow_plan_uri = $2, status = $3 WHERE task_id = $1`
		return tx.ExecContext(ctx, q, taskID, workflowPlanURI, models.TaskStatusWorkflowAssigned)
	})
}

// transitionStatus is the single status-write chokepoint for TaskStore: it
// reads the task's current status with FOR UPDATE, rejects (and logs) any
// edge outside models.TaskStatus.CanTransitionTo's graph (spec §4.3: "any
// state entry outside this graph is rejected and logged"), and only then
// runs the caller's update inside the same transaction — the guarantee
// spec §8's status-monotonicity invariant requires.
func (s *TaskStore) transitionStatus(ctx context.Context, taskID string, to models.TaskStatus, update func(*sql.Tx) (sql.Result, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx for task %s: %w", taskID, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	var from models.TaskStatus
	const selectQ = `SELECT status FROM tasks WHERE task_id = $1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, selectQ, taskID).Scan(&from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.ErrNotFound
		}
		return fmt.Errorf("lock task %s for transition: %w", taskID, err)
	}

	if !from.CanTransitionTo(to) {
		slog.Error("rejected illegal task status transition", "task_id", taskID, "from", from, "to", to)
		return apierrors.NewConflict("illegal_status_transition",
			fmt.Sprintf("task %s cannot move from %s to %s", taskID, from, to))
	}

	res, err := update(tx)
	if err != nil {
		return fmt.Errorf("apply transition for task %s: %w", taskID, err)
	}
	if err := checkRowAffected(res, taskID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition for task %s: %w", taskID, err)
	}
	return nil
}

func checkRowAffected(res sql.Result, taskID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for task %s: %w", taskID, err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}
