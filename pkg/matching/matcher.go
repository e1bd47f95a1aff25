// Package matching implements the matching service (C12): the
// queue-triggered consumer that turns a TaskPendingMatch event into a
// ranked candidate list (and, for complex tasks, a workflow plan),
// submitted back to the external backend. The consumer loop is grounded
// on the teacher's pkg/queue/worker.go poll/claim/process shape, stripped
// of ent/SessionExecutor and rebuilt over ports.Queue.Receive/Ack.
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/backend"
	"github.com/agentbus/core/pkg/busevents"
	"github.com/agentbus/core/pkg/discovery"
	"github.com/agentbus/core/pkg/evaluator"
	"github.com/agentbus/core/pkg/health"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/taskstate"
	"github.com/agentbus/core/pkg/workflow"
)

// idempotentSkip is the set of durable statuses that mean a matching run is
// already in flight or done for this taskId (spec §4.8's guard).
var idempotentSkip = map[models.TaskStatus]bool{
	models.TaskStatusMatching:            true,
	models.TaskStatusPendingConfirmation: true,
	models.TaskStatusConfirmed:           true,
	models.TaskStatusExecuting:           true,
	models.TaskStatusCompleted:           true,
}

// eligible is the set of durable statuses a matching run may start from
// (first attempt or retry after a terminal-but-retryable failure).
var eligible = map[models.TaskStatus]bool{
	models.TaskStatusPendingMatch:   true,
	models.TaskStatusMatchingFailed: true,
	models.TaskStatusNoMatchFound:   true,
}

// Matcher runs the matching pipeline for one TaskPendingMatch event at a
// time. It holds no state across events beyond its collaborators — every
// run re-derives everything it needs from the durable task row.
type Matcher struct {
	tasks      ports.TaskStore
	blobs      ports.BlobStore
	state      *taskstate.Manager
	backend    *backend.Client
	discoverer *discovery.Discoverer
	health     *health.Checker
	evaluator  *evaluator.Evaluator
	workflow   *workflow.Synthesiser

	disableWorkflow bool
	defaultMaxCand  int
}

func New(
	tasks ports.TaskStore,
	blobs ports.BlobStore,
	state *taskstate.Manager,
	backendClient *backend.Client,
	discoverer *discovery.Discoverer,
	healthChecker *health.Checker,
	eval *evaluator.Evaluator,
	synth *workflow.Synthesiser,
	disableWorkflow bool,
	defaultMaxCandidates int,
) *Matcher {
	if defaultMaxCandidates <= 0 {
		defaultMaxCandidates = 10
	}
	return &Matcher{
		tasks:           tasks,
		blobs:           blobs,
		state:           state,
		backend:         backendClient,
		discoverer:      discoverer,
		health:          healthChecker,
		evaluator:       eval,
		workflow:        synth,
		disableWorkflow: disableWorkflow,
		defaultMaxCand:  defaultMaxCandidates,
	}
}

// ProcessEvent runs the full pipeline of spec §4.8 for one event, enforcing
// the idempotent status guard before doing any work. It never returns an
// error to the caller: background/queue-driven matching logs and updates
// cached status instead (spec §7 "do not re-throw").
func (m *Matcher) ProcessEvent(ctx context.Context, evt busevents.TaskPendingMatchEvent) {
	log := slog.With("task_id", evt.TaskID)

	task, err := m.tasks.GetTask(ctx, evt.TaskID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			log.Warn("matching: task not found, marking cached failed")
			_ = m.state.SetStatus(ctx, evt.TaskID, models.TaskStatusFailed, "task not found at matching time")
			return
		}
		log.Error("matching: failed to load task", "error", err)
		return
	}

	if idempotentSkip[task.Status] {
		log.Debug("matching: idempotent skip", "status", task.Status)
		return
	}
	if !eligible[task.Status] {
		log.Warn("matching: task in unexpected status, marking failed", "status", task.Status)
		m.fail(ctx, evt.TaskID, models.TaskStatusMatchingFailed, "task not in a matchable status")
		return
	}

	if err := m.tasks.UpdateStatus(ctx, evt.TaskID, models.TaskStatusMatching, ""); err != nil {
		log.Error("matching: failed to record Matching status", "error", err)
		return
	}
	_ = m.state.SetStatus(ctx, evt.TaskID, models.TaskStatusMatching, "")

	spec := &models.TaskSpecification{}
	if err := m.blobs.GetJSON(ctx, task.SpecificationURI, spec); err != nil {
		log.Error("matching: failed to load specification", "error", err)
		m.fail(ctx, evt.TaskID, models.TaskStatusMatchingFailed, "specification unreadable")
		return
	}

	candidates, err := m.discoverer.Find(ctx, spec)
	if err != nil {
		log.Error("matching: discovery failed", "error", err)
		m.fail(ctx, evt.TaskID, models.TaskStatusMatchingFailed, "discovery failed")
		return
	}
	if len(candidates) == 0 {
		m.fail(ctx, evt.TaskID, models.TaskStatusNoMatchFound, "no candidates found")
		return
	}

	healthy := m.health.Filter(ctx, candidates)
	if len(healthy) == 0 {
		m.fail(ctx, evt.TaskID, models.TaskStatusNoMatchFound, "no healthy candidates")
		return
	}

	ranked, err := m.evaluator.EvaluateAndRank(ctx, spec, healthy)
	if err != nil {
		log.Error("matching: evaluation failed", "error", err)
		m.fail(ctx, evt.TaskID, models.TaskStatusMatchingFailed, "evaluation failed")
		return
	}

	var plan *models.WorkflowPlan
	if spec.IsComplex && !m.disableWorkflow {
		plan, err = m.workflow.Generate(ctx, evt.TaskID, spec, healthy)
		if err != nil {
			log.Warn("matching: workflow synthesis failed, falling back to candidate list", "error", err)
			plan = nil
		}
	}

	if err := m.submit(ctx, evt.TaskID, plan, ranked); err != nil {
		// Backend submission failure is retryable and does not alter task
		// status (spec §4.8 "Backend submission failure is retryable").
		log.Error("matching: backend submission failed, will retry on redelivery", "error", err)
		return
	}

	if err := m.tasks.UpdateStatus(ctx, evt.TaskID, models.TaskStatusPendingConfirmation, ""); err != nil {
		log.Error("matching: failed to record PendingConfirmation status", "error", err)
		return
	}
	_ = m.state.SetStatus(ctx, evt.TaskID, models.TaskStatusPendingConfirmation, "")
}

func (m *Matcher) submit(ctx context.Context, taskID string, plan *models.WorkflowPlan, ranked []models.RankedCandidate) error {
	if plan != nil {
		planURI, err := m.blobs.PutJSON(ctx, workflowPlanPath(taskID), plan)
		if err != nil {
			return apierrors.Wrap(apierrors.KindStorage, "plan_store_failed", "failed storing workflow plan", err)
		}
		if err := m.tasks.AssignWorkflow(ctx, taskID, planURI); err != nil {
			return err
		}
		return m.backend.UpdateTaskCandidates(ctx, backend.CandidateSubmission{TaskID: taskID, WorkflowPlanURI: planURI})
	}

	n := m.defaultMaxCand
	if n > len(ranked) {
		n = len(ranked)
	}
	ids := make([]string, n)
	prices := make([]float64, n)
	for i := 0; i < n; i++ {
		ids[i] = ranked[i].ProcessorID
		prices[i] = ranked[i].Score.PriceQuote
	}
	if n > 0 {
		if err := m.tasks.AssignProcessor(ctx, taskID, ids[0]); err != nil {
			return err
		}
	}
	return m.backend.UpdateTaskCandidates(ctx, backend.CandidateSubmission{
		TaskID:                taskID,
		CandidateProcessorIDs: ids,
		CandidatePrices:       prices,
	})
}

// fail records a terminal-but-retryable matching outcome durably and in
// cache (spec §4.8's classification: no-candidates => NoMatchFound, else
// MatchingFailed).
func (m *Matcher) fail(ctx context.Context, taskID string, status models.TaskStatus, reason string) {
	if err := m.tasks.UpdateStatus(ctx, taskID, status, reason); err != nil {
		slog.Error("matching: failed to record failure status", "task_id", taskID, "error", err)
	}
	_ = m.state.SetStatus(ctx, taskID, status, reason)
}

func workflowPlanPath(taskID string) string {
	return "workflow-plans/" + taskID + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + ".json"
}

// Consumer drives Matcher off a ports.Queue topic, one message at a time,
// grounded on the teacher's pkg/queue/worker.go run loop (poll, process,
// backoff on error, cooperative shutdown via stop channel + WaitGroup).
type Consumer struct {
	queue   ports.Queue
	topic   string
	matcher *Matcher

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewConsumer(queue ports.Queue, topic string, matcher *Matcher) *Consumer {
	return &Consumer{queue: queue, topic: topic, matcher: matcher, stopCh: make(chan struct{})}
}

// Start begins the poll loop in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop signals the loop to exit and waits for it to finish. Safe to call
// more than once.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
			c.pollOnce(ctx)
		}
	}
}

func (c *Consumer) pollOnce(ctx context.Context) {
	msg, err := c.queue.Receive(ctx, c.topic)
	if err != nil {
		if errors.Is(err, ports.ErrUnavailable) {
			c.sleep(250 * time.Millisecond)
			return
		}
		slog.Error("matching: queue receive failed", "error", err)
		c.sleep(time.Second)
		return
	}

	var evt busevents.TaskPendingMatchEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		slog.Error("matching: undecodable event, acking to drop it", "error", err)
		_ = c.queue.Ack(ctx, c.topic, msg.ID)
		return
	}

	c.matcher.ProcessEvent(ctx, evt)
	if err := c.queue.Ack(ctx, c.topic, msg.ID); err != nil {
		slog.Error("matching: ack failed", "error", err, "task_id", evt.TaskID)
	}
}

func (c *Consumer) sleep(d time.Duration) {
	select {
	case <-c.stopCh:
	case <-time.After(d):
	}
}
