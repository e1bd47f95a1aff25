// Package ports declares the capability contracts (C1) the agent bus core
// consumes. Concrete backends — a durable row store, a cache, a vector
// index, an object blob store, a queue, a language model, an HTTP prober —
// are adapters implementing these interfaces; the core never imports a
// backend package directly. See pkg/store, pkg/cache, pkg/vectorindex,
// pkg/blobstore, pkg/queue, pkg/llm for the concrete adapters this module
// ships, and SPEC_FULL.md section B for the rationale behind each choice.
package ports

import (
	"context"
	"time"

	"github.com/agentbus/core/pkg/models"
)

// TaskStore is the durable task store contract. The durable row is
// exclusively owned through this port — no other package mutates task rows
// outside the documented lifecycle transitions (spec §3 "Ownership").
type TaskStore interface {
	// CreateTask inserts a new task row. TaskID is set by the caller before
	// insertion — the store does not generate IDs. The store sets CreatedAt
	// and UpdatedAt and writes them back into task.
	CreateTask(ctx context.Context, task *models.Task) error

	// GetTask returns the authoritative task row, or ErrNotFound.
	GetTask(ctx context.Context, taskID string) (*models.Task, error)

	// UpdateStatus transitions a task's status, refreshing UpdatedAt.
	// Implementations enforce models.TaskStatus legality themselves — an edge
	// outside TaskStatus.CanTransitionTo's graph is rejected with a
	// KindConflict error rather than written, so callers need not pre-validate
	// (spec §4.3 "any state entry outside this graph is rejected and logged").
	UpdateStatus(ctx context.Context, taskID string, status models.TaskStatus, errMsg string) error

	// AssignProcessor records a single-processor match result.
	AssignProcessor(ctx context.Context, taskID, processorID string) error

	// AssignWorkflow records a multi-step workflow match result.
	AssignWorkflow(ctx context.Context, taskID, workflowPlanURI string) error
}

// ProcessorStore is the durable processor catalog contract.
type ProcessorStore interface {
	// GetProcessor returns one processor by ID, or ErrNotFound.
	GetProcessor(ctx context.Context, processorID string) (*models.Processor, error)

	// GetProcessors hydrates a batch of processors, skipping IDs that are
	// missing rather than failing (discovery's vector-index branch may
	// reference stale IDs).
	GetProcessors(ctx context.Context, processorIDs []string) ([]*models.Processor, error)

	// FindByTags returns active processors whose CapabilityTags intersect
	// tags (spec §4.8.1(a)). An empty tags slice matches nothing.
	FindByTags(ctx context.Context, tags []string) ([]*models.Processor, error)

	// ListActive returns the first page of active processors, capped at
	// limit — used when DISABLE_PROCESSOR_FILTERING is set (spec §4.8.1).
	ListActive(ctx context.Context, limit int) ([]*models.Processor, error)

	// UpdateHealth writes back a health-check outcome (spec §4.8.2).
	UpdateHealth(ctx context.Context, processorID string, status models.ProcessorStatus, checkedAt time.Time) error
}

// CachedStatus is the value stored at a task:status:<id> cache key (spec §4.2).
type CachedStatus struct {
	Status      models.TaskStatus `json:"status"`
	Error       string            `json:"error,omitempty"`
	FinalTaskID string            `json:"finalTaskId,omitempty"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Cache is the advisory, TTL-bounded dual-store cache contract (spec §3/§4.2).
type Cache interface {
	// GetStatus reads a cached status entry, or ErrNotFound.
	GetStatus(ctx context.Context, key string) (*CachedStatus, error)

	// SetStatus writes a cached status entry with the given TTL.
	SetStatus(ctx context.Context, key string, status *CachedStatus, ttl time.Duration) error

	// SetStatusLinked atomically writes two status keys pointing at the same
	// record (spec §4.2's dialogue/task linking transaction).
	SetStatusLinked(ctx context.Context, dialogueKey, taskKey string, status *CachedStatus, ttl time.Duration) error

	// GetDialogue reads cached dialogue state, or ErrNotFound.
	GetDialogue(ctx context.Context, dialogueID string) (*models.DialogueState, error)

	// SetDialogue writes cached dialogue state with a TTL.
	SetDialogue(ctx context.Context, state *models.DialogueState, ttl time.Duration) error

	// SetSpec optionally caches a formatted spec (spec §4.2, task:spec:<id>).
	SetSpec(ctx context.Context, taskID string, spec *models.TaskSpecification, ttl time.Duration) error
}

// VectorMatch is one hit returned by VectorIndex.Query.
type VectorMatch struct {
	ID       string
	Score    float64 // cosine similarity, higher is closer
	Metadata map[string]any
}

// VectorIndex is the semantic search contract over processor description
// embeddings (spec §3/§6.3).
type VectorIndex interface {
	// Upsert stores or replaces the embedding and metadata for id.
	Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error

	// Query returns the topK nearest neighbours to embedding, restricted to
	// vectors whose metadata matches filter (e.g. {"status": "active"}).
	Query(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]VectorMatch, error)

	// Delete removes a vector by id.
	Delete(ctx context.Context, id string) error
}

// BlobStore is the content-addressable-friendly object store contract
// (spec §3/§6.3 blob paths).
type BlobStore interface {
	// PutJSON serialises v and stores it at path, returning an opaque URI.
	PutJSON(ctx context.Context, path string, v any) (uri string, err error)

	// GetJSON fetches the object at uri and unmarshals it into v.
	GetJSON(ctx context.Context, uri string, v any) error
}

// QueueMessage is one message read from the durable queue.
type QueueMessage struct {
	ID      string // backend-assigned message id, used to Ack
	Topic   string
	Payload []byte
}

// Queue is the at-least-once durable queue contract (spec §5 "Queue semantics").
type Queue interface {
	// Publish enqueues payload onto topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Receive blocks (subject to ctx) until a message is available on topic,
	// or returns ErrUnavailable if none arrived before the implementation's
	// internal poll timeout — callers are expected to loop.
	Receive(ctx context.Context, topic string) (*QueueMessage, error)

	// Ack acknowledges successful processing of a message, preventing
	// redelivery.
	Ack(ctx context.Context, topic string, messageID string) error
}

// HTTPProber issues health-check GET requests against processor endpoints
// (spec §4.8.2).
type HTTPProber interface {
	// Probe issues a GET to url and reports success iff the response status
	// is 2xx. The returned error, when non-nil, distinguishes timeout vs
	// transport vs non-2xx failures via errors.Is/As on the concrete type.
	Probe(ctx context.Context, url string, timeout time.Duration) error
}
