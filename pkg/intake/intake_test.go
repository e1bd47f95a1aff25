package intake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	agentbackend "github.com/agentbus/core/pkg/backend"
	"github.com/agentbus/core/pkg/busevents"
	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/dialogue"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/prompt"
	"github.com/agentbus/core/pkg/taskstate"
)

type fakeBlobStore struct {
	objects map[string]any
}

func (f *fakeBlobStore) PutJSON(ctx context.Context, path string, v any) (string, error) {
	if f.objects == nil {
		f.objects = map[string]any{}
	}
	f.objects[path] = v
	return "s3://bucket/" + path, nil
}
func (f *fakeBlobStore) GetJSON(ctx context.Context, uri string, v any) error { return nil }

type statusWrite struct {
	id     string
	status models.TaskStatus
}

type fakeCache struct {
	writes   []statusWrite
	linked   map[string]string
	dialogue *models.DialogueState
}

func (f *fakeCache) GetStatus(ctx context.Context, key string) (*ports.CachedStatus, error) {
	return nil, ports.ErrNotFound
}
func (f *fakeCache) SetStatus(ctx context.Context, key string, status *ports.CachedStatus, ttl time.Duration) error {
	f.writes = append(f.writes, statusWrite{id: key, status: status.Status})
	return nil
}
func (f *fakeCache) SetStatusLinked(ctx context.Context, dialogueKey, taskKey string, status *ports.CachedStatus, ttl time.Duration) error {
	if f.linked == nil {
		f.linked = map[string]string{}
	}
	f.linked[dialogueKey] = taskKey
	f.writes = append(f.writes, statusWrite{id: dialogueKey, status: status.Status})
	return nil
}
func (f *fakeCache) GetDialogue(ctx context.Context, id string) (*models.DialogueState, error) {
	if f.dialogue == nil || f.dialogue.DialogueID != id {
		return nil, ports.ErrNotFound
	}
	return f.dialogue, nil
}
func (f *fakeCache) SetDialogue(ctx context.Context, state *models.DialogueState, ttl time.Duration) error {
	f.dialogue = state
	return nil
}
func (f *fakeCache) SetSpec(ctx context.Context, taskID string, spec *models.TaskSpecification, ttl time.Duration) error {
	return nil
}

type fakeQueue struct {
	published [][]byte
}

func (f *fakeQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	f.published = append(f.published, payload)
	return nil
}
func (f *fakeQueue) Receive(ctx context.Context, topic string) (*ports.QueueMessage, error) {
	return nil, ports.ErrUnavailable
}
func (f *fakeQueue) Ack(ctx context.Context, topic string, messageID string) error { return nil }

func newTestService(blobs *fakeBlobStore, cache *fakeCache, q *fakeQueue, backendURL string) *Service {
	state := taskstate.NewManager(cache, time.Minute)
	backendClient := agentbackend.New(config.BackendConfig{URL: backendURL})
	publisher := busevents.NewPublisher(q, "task-events")
	return New(nil, blobs, state, backendClient, publisher)
}

func TestService_Finalize_HappyPathMockBackend(t *testing.T) {
	blobs := &fakeBlobStore{}
	cache := &fakeCache{}
	q := &fakeQueue{}
	s := newTestService(blobs, cache, q, "")

	st := models.DialogueState{
		DialogueID:  "d1",
		RequesterID: "u1",
		Stage:       models.StageCompleted,
		ExtractedParams: models.ExtractedParams{
			RefinedDescription: "build a landing page",
		},
	}
	s.finalize(context.Background(), st)

	require.Len(t, blobs.objects, 1)
	require.Len(t, q.published, 1)

	var statuses []models.TaskStatus
	for _, w := range cache.writes {
		statuses = append(statuses, w.status)
	}
	require.Contains(t, statuses, models.TaskStatusPendingRegistration)
	require.Contains(t, statuses, models.TaskStatusPendingMatch)
	require.NotContains(t, statuses, models.TaskStatusRegistrationFailed)
}

func TestService_Finalize_BackendFailureMarksRegistrationFailed(t *testing.T) {
	blobs := &fakeBlobStore{}
	cache := &fakeCache{}
	q := &fakeQueue{}
	// An unreachable backend URL forces CreateTaskOnContract to fail.
	s := newTestService(blobs, cache, q, "http://127.0.0.1:1")

	st := models.DialogueState{
		DialogueID:  "d2",
		RequesterID: "u1",
		Stage:       models.StageCompleted,
		ExtractedParams: models.ExtractedParams{
			RefinedDescription: "build a landing page",
		},
	}
	s.finalize(context.Background(), st)

	var statuses []models.TaskStatus
	for _, w := range cache.writes {
		statuses = append(statuses, w.status)
	}
	require.Contains(t, statuses, models.TaskStatusRegistrationFailed)
	require.Empty(t, q.published)
}

func TestService_ContinueClarification_CompletedTriggersBackgroundFinalize(t *testing.T) {
	blobs := &fakeBlobStore{}
	cache := &fakeCache{}
	q := &fakeQueue{}
	state := taskstate.NewManager(cache, time.Minute)
	backendClient := agentbackend.New(config.BackendConfig{})
	publisher := busevents.NewPublisher(q, "task-events")

	llm := &sequencedLLM{
		responses: []ports.ChatResponse{
			{ToolCalls: []ports.ToolCall{
				{ID: "1", Name: "determine_next_question_or_finalize", Arguments: `{"next_stage":"FINALIZING","is_ready_to_finalize":true}`},
			}},
		},
	}
	engine := dialogue.NewEngine(llm, prompt.NewCatalog(""), state, 10, time.Hour)
	s := New(engine, blobs, state, backendClient, publisher)

	// Seed a dialogue already in FINALIZING so the next finalize signal
	// completes it, per dialogue's "second consecutive signal" rule.
	seeded := &models.DialogueState{DialogueID: "d3", RequesterID: "u1", Stage: models.StageFinalizing}
	require.NoError(t, cache.SetDialogue(context.Background(), seeded, time.Hour))

	st, err := s.ContinueClarification(context.Background(), "d3", "yes, finalize it")
	require.NoError(t, err)
	require.Equal(t, models.StageCompleted, st.Stage)

	require.Eventually(t, func() bool {
		return len(q.published) == 1
	}, time.Second, 5*time.Millisecond)
}

type sequencedLLM struct {
	i         int
	responses []ports.ChatResponse
}

func (f *sequencedLLM) Chat(ctx context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	if f.i >= len(f.responses) {
		return ports.ChatResponse{Text: "thanks"}, nil
	}
	r := f.responses[f.i]
	f.i++
	return r, nil
}
func (f *sequencedLLM) Embed(ctx context.Context, inputs []string) ([][]float32, error) { return nil, nil }
