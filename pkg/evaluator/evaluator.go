// Package evaluator implements the candidate evaluator (C10, spec §4.8.3):
// a six-dimension weighted composite score per candidate, with optional LM
// re-ranking.
package evaluator

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/prompt"
)

// weights are spec §4.8.3's fixed sub-score weights; they sum to 1 and every
// candidate always has all six scores populated (each with a documented
// default when the underlying signal is absent), so no runtime
// renormalisation over "actually-present" scores is needed.
const (
	weightSemantic   = 0.35
	weightPrice      = 0.20
	weightReputation = 0.15
	weightReliability = 0.10
	weightSpeed      = 0.10
	weightSchema     = 0.10
)

const rerankPoolCap = 10

// Evaluator scores and ranks candidates for a task specification.
type Evaluator struct {
	embedder          ports.LanguageModel // nil disables semantic relevance entirely (defaults to 0.5)
	llm               ports.LanguageModel // nil disables LM re-ranking
	prompts           *prompt.Catalog
	defaultMaxCandidates int
}

func New(embedder, llm ports.LanguageModel, prompts *prompt.Catalog, defaultMaxCandidates int) *Evaluator {
	if defaultMaxCandidates <= 0 {
		defaultMaxCandidates = 10
	}
	return &Evaluator{embedder: embedder, llm: llm, prompts: prompts, defaultMaxCandidates: defaultMaxCandidates}
}

// EvaluateAndRank scores every candidate, orders them by overall score
// descending, optionally asks the LM to re-rank the top pool, and returns
// at most DefaultMaxCandidates dense-ranked results (spec §4.8.3).
func (e *Evaluator) EvaluateAndRank(ctx context.Context, spec *models.TaskSpecification, candidates []*models.Processor) ([]models.RankedCandidate, error) {
	taskVec, procVecs := e.embedAll(ctx, spec, candidates)

	scores := make([]models.CandidateScore, len(candidates))
	var wg sync.WaitGroup
	for i, p := range candidates {
		wg.Add(1)
		go func(i int, p *models.Processor) {
			defer wg.Done()
			scores[i] = scoreCandidate(p, taskVec, procVecs[p.ProcessorID])
		}(i, p)
	}
	wg.Wait()

	ranked := make([]models.RankedCandidate, len(candidates))
	for i, p := range candidates {
		ranked[i] = models.RankedCandidate{ProcessorID: p.ProcessorID, Score: scores[i], ProcessorMetadata: p}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.OverallScore > ranked[j].Score.OverallScore
	})

	if len(ranked) > 1 && e.llm != nil {
		ranked = e.rerank(ctx, spec, ranked)
	}

	if len(ranked) > e.defaultMaxCandidates {
		ranked = ranked[:e.defaultMaxCandidates]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

// embedAll embeds the task description and every candidate's description in
// one batch call (spec §5: batch embedding is chunked, not parallelised).
// Returns nil/empty maps when the embedder is unavailable.
func (e *Evaluator) embedAll(ctx context.Context, spec *models.TaskSpecification, candidates []*models.Processor) ([]float32, map[string][]float32) {
	if e.embedder == nil {
		return nil, nil
	}

	inputs := make([]string, 0, len(candidates)+1)
	inputs = append(inputs, spec.Description)
	for _, p := range candidates {
		inputs = append(inputs, p.Description)
	}

	vecs, err := e.embedder.Embed(ctx, inputs)
	if err != nil || len(vecs) != len(inputs) {
		slog.Debug("evaluator: embedding unavailable, semantic relevance defaults to 0.5", "error", err)
		return nil, nil
	}

	procVecs := make(map[string][]float32, len(candidates))
	for i, p := range candidates {
		procVecs[p.ProcessorID] = vecs[i+1]
	}
	return vecs[0], procVecs
}

func scoreCandidate(p *models.Processor, taskVec []float32, procVec []float32) models.CandidateScore {
	semantic := semanticRelevance(taskVec, procVec)
	price := priceScore(p.Pricing.Price)
	reputation := reputationScore(p.ReputationScore)
	reliability := reliabilityScore(p.SuccessRate)
	speed := speedScore(p.AverageExecutionTimeMs)
	schema := schemaCompatibility(p.InputSchema, p.OutputSchema)

	overall := weightSemantic*semantic + weightPrice*price + weightReputation*reputation +
		weightReliability*reliability + weightSpeed*speed + weightSchema*schema

	return models.CandidateScore{
		ProcessorID:         p.ProcessorID,
		SemanticRelevance:   semantic,
		PriceScore:          price,
		ReputationScore:     reputation,
		ReliabilityScore:    reliability,
		SpeedScore:          speed,
		SchemaCompatibility: schema,
		OverallScore:        overall,
		PriceQuote:          p.Pricing.Price,
		EstimatedDurationMs: p.AverageExecutionTimeMs,
	}
}

// semanticRelevance is the cosine similarity of task and processor
// embeddings, clamped to [0,1] (negative similarities clamp to 0); 0.5
// default when either vector is absent (spec §4.8.3).
func semanticRelevance(task, proc []float32) float64 {
	if len(task) == 0 || len(proc) == 0 || len(task) != len(proc) {
		return 0.5
	}
	var dot, normA, normB float64
	for i := range task {
		a, b := float64(task[i]), float64(proc[i])
		dot += a * b
		normA += a * a
		normB += b * b
	}
	if normA == 0 || normB == 0 {
		return 0.5
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos < 0 {
		return 0
	}
	return cos
}

func priceScore(price float64) float64 {
	if price <= 0 {
		price = 0
	}
	return 10 / (10 + price)
}

func reputationScore(reputation float64) float64 {
	if reputation <= 0 {
		return 0.6
	}
	return reputation / 5
}

func reliabilityScore(successRate float64) float64 {
	if successRate <= 0 {
		return 0.9
	}
	return successRate
}

func speedScore(avgMs float64) float64 {
	if avgMs <= 0 {
		avgMs = 30000
	}
	return 5000 / (5000 + avgMs)
}

// rerankResult is one entry of the LM's rerank response (spec §4.8.3).
type rerankResult struct {
	ID            string `json:"id"`
	Justification string `json:"justification"`
}

// rerank asks the LM to reorder and justify the top algorithmic candidates.
// On any LM/parse failure the algorithmic ranking is kept unchanged.
func (e *Evaluator) rerank(ctx context.Context, spec *models.TaskSpecification, ranked []models.RankedCandidate) []models.RankedCandidate {
	pool := ranked
	if len(pool) > rerankPoolCap {
		pool = pool[:rerankPoolCap]
	}

	summaries := make([]map[string]any, len(pool))
	for i, rc := range pool {
		summaries[i] = map[string]any{
			"id":      rc.ProcessorID,
			"name":    rc.ProcessorMetadata.Name,
			"summary": rc.ProcessorMetadata.Description,
		}
	}

	rerankPrompt, err := e.prompts.Format("evaluator.rerank", map[string]any{
		"spec": map[string]any{
			"description":      spec.Description,
			"inputs_json":      spec.Inputs,
			"outputs_json":     spec.Outputs,
			"constraints_json": spec.Constraints,
		},
		"candidates_json": summaries,
	})
	if err != nil {
		slog.Warn("evaluator: failed formatting rerank prompt, keeping algorithmic ranking", "error", err)
		return ranked
	}

	resp, err := e.llm.Chat(ctx, ports.ChatRequest{
		Messages:    []ports.Message{{Role: "user", Content: rerankPrompt}},
		Temperature: 0,
	})
	if err != nil {
		slog.Warn("evaluator: LM rerank call failed, keeping algorithmic ranking", "error", err)
		return ranked
	}

	var results []rerankResult
	if err := json.Unmarshal([]byte(resp.Text), &results); err != nil {
		slog.Warn("evaluator: LM rerank response unparsable, keeping algorithmic ranking", "error", err)
		return ranked
	}

	byID := make(map[string]models.RankedCandidate, len(ranked))
	for _, rc := range ranked {
		byID[rc.ProcessorID] = rc
	}

	seen := make(map[string]bool, len(results))
	out := make([]models.RankedCandidate, 0, len(ranked))
	for _, r := range results {
		rc, ok := byID[r.ID]
		if !ok || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		rc.Justification = r.Justification
		out = append(out, rc)
	}
	for _, rc := range ranked {
		if !seen[rc.ProcessorID] {
			out = append(out, rc)
		}
	}
	return out
}
