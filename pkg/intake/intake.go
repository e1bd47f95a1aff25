// Package intake implements the intake service (C7, spec §4.7): the thin
// orchestration layer in front of the dialogue engine (C4) and spec
// formatter (C5) that turns a COMPLETED dialogue into a registered,
// pending-match task. Finalisation runs in the background so the
// triggering HTTP response returns immediately (spec §4.7: "the API
// response returns first").
package intake

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/agentbus/core/pkg/backend"
	"github.com/agentbus/core/pkg/busevents"
	"github.com/agentbus/core/pkg/dialogue"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/specformat"
	"github.com/agentbus/core/pkg/taskstate"
)

// Service orchestrates dialogue-driven task intake.
type Service struct {
	engine    *dialogue.Engine
	blobs     ports.BlobStore
	state     *taskstate.Manager
	backend   *backend.Client
	publisher *busevents.Publisher
}

func New(engine *dialogue.Engine, blobs ports.BlobStore, state *taskstate.Manager, backendClient *backend.Client, publisher *busevents.Publisher) *Service {
	return &Service{engine: engine, blobs: blobs, state: state, backend: backendClient, publisher: publisher}
}

// InitiateTaskClarification starts a new dialogue (spec §4.7 entry point).
func (s *Service) InitiateTaskClarification(ctx context.Context, req dialogue.InitialRequest) (*models.DialogueState, error) {
	return s.engine.StartDialogue(ctx, req)
}

// ContinueClarification advances an existing dialogue by one user turn. If
// the resulting stage is COMPLETED, finalisation is scheduled in the
// background and this call still returns the COMPLETED state immediately
// (spec §4.7).
func (s *Service) ContinueClarification(ctx context.Context, dialogueID, userResponse string) (*models.DialogueState, error) {
	st, err := s.engine.ProcessUserResponse(ctx, dialogueID, userResponse)
	if err != nil {
		return nil, err
	}
	if st.Stage == models.StageCompleted {
		go s.finalize(context.Background(), *st)
	}
	return st, nil
}

// finalize runs spec §4.7's seven-step background sequence. Any step's
// failure transitions cached status to RegistrationFailed with the error
// message; earlier side-effects are not rolled back (spec §4.7: "the spec
// blob is content-addressable and harmless if orphaned").
func (s *Service) finalize(ctx context.Context, st models.DialogueState) {
	log := slog.With("dialogue_id", st.DialogueID)

	// 1. Build spec via C5.
	spec := specformat.Format(st.ExtractedParams, time.Now())

	// 2. Store spec in blob store at a path derived from dialogue-id.
	specURI, err := s.blobs.PutJSON(ctx, specPath(st.DialogueID), spec)
	if err != nil {
		log.Error("intake: failed storing specification", "error", err)
		s.registrationFailed(ctx, st.DialogueID, "failed storing task specification")
		return
	}

	// 3. Update cached status to PendingRegistration.
	if err := s.state.SetStatus(ctx, st.DialogueID, models.TaskStatusPendingRegistration, ""); err != nil {
		log.Error("intake: failed updating status to PendingRegistration", "error", err)
	}

	// 4. Invoke backend contract createTaskOnContract.
	result, err := s.backend.CreateTaskOnContract(ctx, st.RequesterID, specURI)
	if err != nil || !result.Success {
		reason := "backend registration failed"
		if err == nil && result.Error != "" {
			reason = result.Error
		}
		log.Error("intake: backend registration failed", "error", err, "backend_error", result.Error)
		s.registrationFailed(ctx, st.DialogueID, reason)
		return
	}
	finalTaskID := result.TaskID

	// 5. Link dialogueId <-> finalTaskId in cache.
	if err := s.state.LinkDialogueToTask(ctx, st.DialogueID, finalTaskID, models.TaskStatusPendingRegistration); err != nil {
		log.Error("intake: failed linking dialogue to task", "error", err)
		s.registrationFailed(ctx, st.DialogueID, "failed linking dialogue to task")
		return
	}

	// 6. Publish TaskPendingMatch(finalTaskId, specificationUri, requesterId).
	if err := s.publisher.PublishTaskPendingMatch(ctx, busevents.TaskPendingMatchEvent{
		TaskID:           finalTaskID,
		SpecificationURI: specURI,
		RequesterID:      st.RequesterID,
		Timestamp:        time.Now(),
	}); err != nil {
		log.Error("intake: failed publishing TaskPendingMatch", "error", err)
		s.registrationFailed(ctx, finalTaskID, "failed publishing match event")
		return
	}

	// 7. Update cached status for finalTaskId to PendingMatch.
	if err := s.state.SetStatus(ctx, finalTaskID, models.TaskStatusPendingMatch, ""); err != nil {
		log.Error("intake: failed updating status to PendingMatch", "error", err)
	}
}

func (s *Service) registrationFailed(ctx context.Context, id, reason string) {
	if err := s.state.SetStatus(ctx, id, models.TaskStatusRegistrationFailed, reason); err != nil {
		slog.Error("intake: failed recording RegistrationFailed status", "id", id, "error", err)
	}
}

// specPath implements spec §6.3's blob path convention:
// task-specs/<dialogueId>-<epochMs>.json.
func specPath(dialogueID string) string {
	return "task-specs/" + dialogueID + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + ".json"
}
