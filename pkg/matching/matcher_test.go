package matching_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	agentbackend "github.com/agentbus/core/pkg/backend"
	"github.com/agentbus/core/pkg/busevents"
	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/discovery"
	"github.com/agentbus/core/pkg/evaluator"
	"github.com/agentbus/core/pkg/health"
	"github.com/agentbus/core/pkg/httpprober"
	"github.com/agentbus/core/pkg/matching"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/prompt"
	"github.com/agentbus/core/pkg/taskstate"
	"github.com/agentbus/core/pkg/workflow"
)

type fakeTaskStore struct {
	tasks    map[string]*models.Task
	statuses []models.TaskStatus
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
	f.statuses = append(f.statuses, status)
	if t, ok := f.tasks[taskID]; ok {
		t.Status = status
		t.Error = errMsg
	}
	return nil
}
func (f *fakeTaskStore) AssignProcessor(ctx context.Context, taskID, processorID string) error {
	f.tasks[taskID].AssignedProcessorID = processorID
	return nil
}
func (f *fakeTaskStore) AssignWorkflow(ctx context.Context, taskID, workflowPlanURI string) error {
	f.tasks[taskID].WorkflowPlanURI = workflowPlanURI
	return nil
}

type fakeProcessorStore struct {
	byID map[string]*models.Processor
}

func (f *fakeProcessorStore) GetProcessor(ctx context.Context, id string) (*models.Processor, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return p, nil
}
func (f *fakeProcessorStore) GetProcessors(ctx context.Context, ids []string) ([]*models.Processor, error) {
	var out []*models.Processor
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeProcessorStore) FindByTags(ctx context.Context, tags []string) ([]*models.Processor, error) {
	var out []*models.Processor
	for _, p := range f.byID {
		for _, t := range tags {
			for _, pt := range p.CapabilityTags {
				if t == pt {
					out = append(out, p)
				}
			}
		}
	}
	return out, nil
}
func (f *fakeProcessorStore) ListActive(ctx context.Context, limit int) ([]*models.Processor, error) {
	return nil, nil
}
func (f *fakeProcessorStore) UpdateHealth(ctx context.Context, id string, status models.ProcessorStatus, checkedAt time.Time) error {
	if p, ok := f.byID[id]; ok {
		p.Status = status
	}
	return nil
}

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
func (f *fakeBlobStore) GetJSON(ctx context.Context, uri string, v any) error {
	switch dst := v.(type) {
	case *models.TaskSpecification:
		*dst = *f.objects[uri].(*models.TaskSpecification)
	}
	return nil
}

type fakeCache struct{}

func (fakeCache) GetStatus(ctx context.Context, key string) (*ports.CachedStatus, error) {
	return nil, ports.ErrNotFound
}
func (fakeCache) SetStatus(ctx context.Context, key string, status *ports.CachedStatus, ttl time.Duration) error {
	return nil
}
func (fakeCache) SetStatusLinked(ctx context.Context, dialogueKey, taskKey string, status *ports.CachedStatus, ttl time.Duration) error {
	return nil
}
func (fakeCache) GetDialogue(ctx context.Context, id string) (*models.DialogueState, error) {
	return nil, ports.ErrNotFound
}
func (fakeCache) SetDialogue(ctx context.Context, state *models.DialogueState, ttl time.Duration) error {
	return nil
}
func (fakeCache) SetSpec(ctx context.Context, taskID string, spec *models.TaskSpecification, ttl time.Duration) error {
	return nil
}

func newMatcher(t *testing.T, tasks *fakeTaskStore, procs *fakeProcessorStore, blobs *fakeBlobStore, healthSrv *httptest.Server) *matching.Matcher {
	state := taskstate.NewManager(fakeCache{}, time.Minute)
	backendClient := agentbackend.New(config.BackendConfig{})
	disc := discovery.New(procs, nil, nil, config.MatchingConfig{})
	checker := health.New(httpprober.New(), procs, time.Second)
	eval := evaluator.New(nil, nil, prompt.NewCatalog(""), 10)
	synth := workflow.New(nil, prompt.NewCatalog(""))
	return matching.New(tasks, blobs, state, backendClient, disc, checker, eval, synth, true, 10)
}

func TestMatcher_ProcessEvent_IdempotentSkip(t *testing.T) {
	tasks := &fakeTaskStore{tasks: map[string]*models.Task{
		"t1": {TaskID: "t1", Status: models.TaskStatusMatching},
	}}
	m := newMatcher(t, tasks, &fakeProcessorStore{byID: map[string]*models.Processor{}}, &fakeBlobStore{}, nil)

	m.ProcessEvent(context.Background(), busevents.TaskPendingMatchEvent{TaskID: "t1"})
	require.Empty(t, tasks.statuses)
}

func TestMatcher_ProcessEvent_NoCandidatesIsNoMatchFound(t *testing.T) {
	tasks := &fakeTaskStore{tasks: map[string]*models.Task{
		"t1": {TaskID: "t1", Status: models.TaskStatusPendingMatch, SpecificationURI: "spec-uri"},
	}}
	blobs := &fakeBlobStore{objects: map[string]any{"spec-uri": &models.TaskSpecification{Description: "x"}}}
	m := newMatcher(t, tasks, &fakeProcessorStore{byID: map[string]*models.Processor{}}, blobs, nil)

	m.ProcessEvent(context.Background(), busevents.TaskPendingMatchEvent{TaskID: "t1"})
	require.Equal(t, []models.TaskStatus{models.TaskStatusMatching, models.TaskStatusNoMatchFound}, tasks.statuses)
}

func TestMatcher_ProcessEvent_HappyPathSubmitsAndAdvances(t *testing.T) {
	healthSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthSrv.Close()

	procs := &fakeProcessorStore{byID: map[string]*models.Processor{
		"p1": {ProcessorID: "p1", Name: "writer", Status: models.ProcessorStatusActive, EndpointURL: healthSrv.URL, CapabilityTags: []string{"copy"}, Pricing: models.Pricing{Price: 2}},
	}}
	tasks := &fakeTaskStore{tasks: map[string]*models.Task{
		"t1": {TaskID: "t1", Status: models.TaskStatusPendingMatch, SpecificationURI: "spec-uri"},
	}}
	blobs := &fakeBlobStore{objects: map[string]any{"spec-uri": &models.TaskSpecification{Description: "write copy", Tags: []string{"copy"}}}}

	m := newMatcher(t, tasks, procs, blobs, healthSrv)
	m.ProcessEvent(context.Background(), busevents.TaskPendingMatchEvent{TaskID: "t1"})

	require.Equal(t, []models.TaskStatus{models.TaskStatusMatching, models.TaskStatusPendingConfirmation}, tasks.statuses)
	require.Equal(t, "p1", tasks.tasks["t1"].AssignedProcessorID)
}
