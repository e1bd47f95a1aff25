package taskstate

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
)

// dialogueLockShards is the fixed bucket count backing the per-dialogueId
// lock (spec §4.4/§9): enough to make collisions between concurrently
// active dialogues rare without growing unbounded with dialogue count.
const dialogueLockShards = 256

// Manager is the task state manager (C3). It owns the cache discipline
// described in spec.md §4.2: namespaced keys, TTL on every write, and
// atomic dialogue-id/task-id linking.
type Manager struct {
	cache ports.Cache
	ttl   time.Duration

	dialogueLocks [dialogueLockShards]sync.Mutex
}

func NewManager(cache ports.Cache, ttl time.Duration) *Manager {
	return &Manager{cache: cache, ttl: ttl}
}

// LockDialogue serialises the read-modify-write of a single dialogue's
// state (spec §4.4/§9: "concurrent processUserResponse calls for the same
// dialogue are serialised ... last-writer-wins is unsafe"). It takes an
// in-process sync.Mutex sharded by dialogueID's hash into a fixed bucket
// count, and returns the unlock function the caller must defer. Distinct
// dialogueIds hashing to the same shard block each other too, which is an
// accepted, bounded cost of a fixed-size shard table.
func (m *Manager) LockDialogue(dialogueID string) (unlock func()) {
	mu := &m.dialogueLocks[dialogueShard(dialogueID)]
	mu.Lock()
	return mu.Unlock
}

func dialogueShard(dialogueID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(dialogueID))
	return h.Sum32() % dialogueLockShards
}

// GetStatus reads the cached status for id, transparently following a
// finalTaskId pointer if the entry was linked (spec §4.2/§9).
func (m *Manager) GetStatus(ctx context.Context, id string) (*ports.CachedStatus, error) {
	status, err := m.cache.GetStatus(ctx, StatusKey(id))
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apierrors.NewNotFound("status_not_found", "no cached status for id")
		}
		return nil, apierrors.Wrap(apierrors.KindDatabase, "status_read_failed", "failed reading cached status", err)
	}
	if status.FinalTaskID != "" && status.FinalTaskID != id {
		return m.GetStatus(ctx, status.FinalTaskID)
	}
	return status, nil
}

// SetStatus writes a cached status entry for id.
func (m *Manager) SetStatus(ctx context.Context, id string, status models.TaskStatus, errMsg string) error {
	entry := &ports.CachedStatus{Status: status, Error: errMsg, UpdatedAt: time.Now()}
	if err := m.cache.SetStatus(ctx, StatusKey(id), entry, m.ttl); err != nil {
		return apierrors.Wrap(apierrors.KindDatabase, "status_write_failed", "failed writing cached status", err)
	}
	return nil
}

// LinkDialogueToTask atomically points the dialogue-id status key at the
// final task-id, and seeds the task-id status key with the same value —
// the transaction spec §4.2/§9 requires so reads through either key agree.
func (m *Manager) LinkDialogueToTask(ctx context.Context, dialogueID, taskID string, status models.TaskStatus) error {
	entry := &ports.CachedStatus{Status: status, FinalTaskID: taskID, UpdatedAt: time.Now()}
	if err := m.cache.SetStatusLinked(ctx, StatusKey(dialogueID), StatusKey(taskID), entry, m.ttl); err != nil {
		return apierrors.Wrap(apierrors.KindDatabase, "link_failed", "failed linking dialogue to task", err)
	}
	return nil
}

// SaveDialogue writes dialogue state and derives the corresponding cached
// status from its stage (spec §4.2: "writing dialogue state also updates
// the status entry derived from the dialogue stage").
func (m *Manager) SaveDialogue(ctx context.Context, state *models.DialogueState) error {
	if err := m.cache.SetDialogue(ctx, state, m.ttl); err != nil {
		return apierrors.Wrap(apierrors.KindDatabase, "dialogue_write_failed", "failed writing dialogue state", err)
	}
	return m.SetStatus(ctx, state.DialogueID, statusForStage(state.Stage), stageErrorMessage(state))
}

// GetDialogue reads cached dialogue state for dialogueID.
func (m *Manager) GetDialogue(ctx context.Context, dialogueID string) (*models.DialogueState, error) {
	state, err := m.cache.GetDialogue(ctx, dialogueID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apierrors.NewNotFound("dialogue_not_found", "dialogue not found or expired")
		}
		return nil, apierrors.Wrap(apierrors.KindDatabase, "dialogue_read_failed", "failed reading cached dialogue", err)
	}
	return state, nil
}

// SetSpec optionally caches a formatted spec (spec §4.2, task:spec:<id>).
func (m *Manager) SetSpec(ctx context.Context, taskID string, spec *models.TaskSpecification) error {
	if err := m.cache.SetSpec(ctx, taskID, spec, m.ttl); err != nil {
		return apierrors.Wrap(apierrors.KindDatabase, "spec_cache_failed", "failed caching spec", err)
	}
	return nil
}

func statusForStage(stage models.DialogueStage) models.TaskStatus {
	switch stage {
	case models.StageCompleted:
		return models.TaskStatusClarified
	case models.StageFailed:
		return models.TaskStatusClarificationFailed
	case models.StageCancelled:
		return models.TaskStatusCancelled
	default:
		return models.TaskStatusPendingClarification
	}
}

func stageErrorMessage(state *models.DialogueState) string {
	if state.Stage == models.StageFailed {
		return "clarification dialogue failed"
	}
	return ""
}
