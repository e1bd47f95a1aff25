// Package discovery implements candidate processor discovery (C8, spec
// §4.8.1): the union of a tag-intersection query against the durable
// processor store and a semantic vector-similarity query, deduplicated by
// processor id.
package discovery

import (
	"context"
	"errors"
	"log/slog"

	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
)

// semanticFanout is the multiplier applied to DefaultMaxCandidates when
// choosing how many vector-index hits to request before hydration (spec
// §4.8.1: "K = DEFAULT_MAX_CANDIDATES × 3").
const semanticFanout = 3

// Discoverer finds candidate processors for a task specification.
type Discoverer struct {
	processors ports.ProcessorStore
	embedder   ports.LanguageModel // nil disables the semantic branch entirely
	vectors    ports.VectorIndex   // nil disables the semantic branch entirely
	cfg        config.MatchingConfig
}

func New(processors ports.ProcessorStore, embedder ports.LanguageModel, vectors ports.VectorIndex, cfg config.MatchingConfig) *Discoverer {
	return &Discoverer{processors: processors, embedder: embedder, vectors: vectors, cfg: cfg}
}

// Find returns the deduplicated union of tag-intersection and semantic
// matches for spec, or the first page of active processors when filtering
// is disabled (spec §4.8.1, DISABLE_PROCESSOR_FILTERING).
func (d *Discoverer) Find(ctx context.Context, spec *models.TaskSpecification) ([]*models.Processor, error) {
	if d.cfg.DisableProcessorFiltering {
		limit := d.cfg.DefaultMaxCandidates
		if limit <= 0 {
			limit = 10
		}
		return d.processors.ListActive(ctx, limit)
	}

	byTag, err := d.processors.FindByTags(ctx, spec.Tags)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]*models.Processor, len(byTag))
	for _, p := range byTag {
		seen[p.ProcessorID] = p
	}

	semantic, err := d.findSemantic(ctx, spec)
	if err != nil {
		return nil, err
	}
	for _, p := range semantic {
		if _, ok := seen[p.ProcessorID]; !ok {
			seen[p.ProcessorID] = p
		}
	}

	out := make([]*models.Processor, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	return out, nil
}

// findSemantic embeds the spec description and queries the vector index,
// skipping silently when either dependency is unavailable (spec §4.8.1:
// "skipped silently if either the embedder or the vector index is
// unavailable" — logged at Debug since this is expected degraded-mode
// behaviour, not a failure).
func (d *Discoverer) findSemantic(ctx context.Context, spec *models.TaskSpecification) ([]*models.Processor, error) {
	if d.embedder == nil || d.vectors == nil {
		slog.Debug("discovery: semantic branch disabled, no embedder/vector index configured")
		return nil, nil
	}

	limit := d.cfg.DefaultMaxCandidates
	if limit <= 0 {
		limit = 10
	}

	embeddings, err := d.embedder.Embed(ctx, []string{spec.Description})
	if err != nil {
		if errors.Is(err, ports.ErrUnavailable) {
			slog.Debug("discovery: embedder unavailable, skipping semantic branch")
			return nil, nil
		}
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, nil
	}

	matches, err := d.vectors.Query(ctx, embeddings[0], limit*semanticFanout, map[string]any{"status": string(models.ProcessorStatusActive)})
	if err != nil {
		if errors.Is(err, ports.ErrUnavailable) {
			slog.Debug("discovery: vector index unavailable, skipping semantic branch")
			return nil, nil
		}
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return d.processors.GetProcessors(ctx, ids)
}
