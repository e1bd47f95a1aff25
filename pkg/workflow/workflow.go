// Package workflow implements the workflow synthesiser (C11, spec §4.8.4):
// LM-driven DAG synthesis over a healthy candidate pool, with schema and
// structural validation (step-id uniqueness, dependency references,
// acyclicity, processor-pool membership).
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/prompt"
)

// Synthesiser generates a multi-step workflow plan for complex tasks.
type Synthesiser struct {
	llm     ports.LanguageModel
	prompts *prompt.Catalog
}

func New(llm ports.LanguageModel, prompts *prompt.Catalog) *Synthesiser {
	return &Synthesiser{llm: llm, prompts: prompts}
}

// rawPlan mirrors the LM's expected JSON output shape (spec §3/§4.8.4).
type rawPlan struct {
	WorkflowID    string    `json:"workflowId"`
	ExecutionMode string    `json:"executionMode"`
	Steps         []rawStep `json:"steps"`
}

type rawStep struct {
	StepID              string         `json:"stepId"`
	Description         string         `json:"description"`
	AssignedProcessorID string         `json:"assignedProcessorId"`
	Dependencies        []string       `json:"dependencies"`
	InputMapping        map[string]any `json:"inputMapping,omitempty"`
	OutputMapping       map[string]any `json:"outputMapping,omitempty"`
}

// Generate prompts the LM for a workflow plan and validates it against the
// plan schema plus the structural rules of spec §4.8.4. On any failure it
// returns (nil, err) and the caller falls back to the top-N candidate path.
func (s *Synthesiser) Generate(ctx context.Context, taskID string, spec *models.TaskSpecification, healthy []*models.Processor) (*models.WorkflowPlan, error) {
	processorSummaries := make([]map[string]any, len(healthy))
	byID := make(map[string]*models.Processor, len(healthy))
	for i, p := range healthy {
		byID[p.ProcessorID] = p
		processorSummaries[i] = map[string]any{
			"id":          p.ProcessorID,
			"name":        p.Name,
			"description": truncate(p.Description, 200),
			"inputKeys":   inputKeys(p.InputSchema),
			"outputKeys":  outputKeys(p.OutputSchema),
		}
	}

	synthesisPrompt, err := s.prompts.Format("workflow.synthesize", map[string]any{
		"spec": map[string]any{
			"description":  spec.Description,
			"inputs_json":  spec.Inputs,
			"outputs_json": spec.Outputs,
		},
		"processors_json": processorSummaries,
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: format prompt: %w", err)
	}

	resp, err := s.llm.Chat(ctx, ports.ChatRequest{
		Messages: []ports.Message{{Role: "user", Content: synthesisPrompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: LM call failed: %w", err)
	}

	schema, err := compiledPlanSchema()
	if err != nil {
		return nil, fmt.Errorf("workflow: plan schema unavailable: %w", err)
	}

	var doc any
	if err := json.Unmarshal([]byte(resp.Text), &doc); err != nil {
		return nil, fmt.Errorf("workflow: plan response is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("workflow: plan failed schema validation: %w", err)
	}

	var plan rawPlan
	if err := json.Unmarshal([]byte(resp.Text), &plan); err != nil {
		return nil, fmt.Errorf("workflow: plan failed to decode: %w", err)
	}

	if err := validateStructure(plan, byID); err != nil {
		return nil, fmt.Errorf("workflow: plan failed structural validation: %w", err)
	}

	return buildPlan(taskID, plan, byID), nil
}

// validateStructure checks step-id uniqueness, dependency references, pool
// membership, and acyclicity (spec §4.8.4).
func validateStructure(plan rawPlan, pool map[string]*models.Processor) error {
	if len(plan.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}

	seen := make(map[string]bool, len(plan.Steps))
	for _, step := range plan.Steps {
		if seen[step.StepID] {
			return fmt.Errorf("duplicate step id %q", step.StepID)
		}
		seen[step.StepID] = true

		if _, ok := pool[step.AssignedProcessorID]; !ok {
			return fmt.Errorf("step %q assigned to processor %q outside the healthy pool", step.StepID, step.AssignedProcessorID)
		}
	}

	adjacency := make(map[string][]string, len(plan.Steps))
	for _, step := range plan.Steps {
		for _, dep := range step.Dependencies {
			if !seen[dep] {
				return fmt.Errorf("step %q depends on unknown step %q", step.StepID, dep)
			}
		}
		adjacency[step.StepID] = step.Dependencies
	}

	if cyclic(adjacency) {
		return fmt.Errorf("plan dependency graph contains a cycle")
	}
	return nil
}

// cyclic runs a plain recursive DFS over the dependency adjacency, looking
// for a back-edge (spec §4.8.4: "no cycles (DFS)").
func cyclic(adjacency map[string][]string) bool {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(adjacency))

	var visit func(node string) bool
	visit = func(node string) bool {
		switch state[node] {
		case visiting:
			return true
		case done:
			return false
		}
		state[node] = visiting
		for _, dep := range adjacency[node] {
			if visit(dep) {
				return true
			}
		}
		state[node] = done
		return false
	}

	for node := range adjacency {
		if visit(node) {
			return true
		}
	}
	return false
}

// buildPlan fills per-step cost/duration from processor metadata and rolls
// totals up: summed cost always, duration summed when sequential or maxed
// when parallel (spec §4.8.4).
func buildPlan(taskID string, plan rawPlan, pool map[string]*models.Processor) *models.WorkflowPlan {
	mode := models.ExecutionModeSequential
	if plan.ExecutionMode == string(models.ExecutionModeParallel) {
		mode = models.ExecutionModeParallel
	}

	steps := make([]models.Step, len(plan.Steps))
	var totalCost, totalDuration, maxDuration float64
	for i, rs := range plan.Steps {
		p := pool[rs.AssignedProcessorID]
		steps[i] = models.Step{
			StepID:              rs.StepID,
			Description:         rs.Description,
			AssignedProcessorID: rs.AssignedProcessorID,
			Dependencies:        rs.Dependencies,
			InputMapping:        rs.InputMapping,
			OutputMapping:       rs.OutputMapping,
			EstimatedCost:       p.Pricing.Price,
			EstimatedDurationMs: p.AverageExecutionTimeMs,
		}
		totalCost += p.Pricing.Price
		totalDuration += p.AverageExecutionTimeMs
		if p.AverageExecutionTimeMs > maxDuration {
			maxDuration = p.AverageExecutionTimeMs
		}
	}

	duration := totalDuration
	if mode == models.ExecutionModeParallel {
		duration = maxDuration
	}

	return &models.WorkflowPlan{
		WorkflowID:               plan.WorkflowID,
		TaskID:                   taskID,
		Steps:                    steps,
		ExecutionMode:            mode,
		TotalEstimatedCost:       totalCost,
		TotalEstimatedDurationMs: duration,
		GeneratedAt:              time.Now(),
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func inputKeys(schema string) []string  { return schemaKeys(schema) }
func outputKeys(schema string) []string { return schemaKeys(schema) }

// schemaKeys extracts top-level "properties" keys from a JSON Schema
// string, best-effort — malformed or keyless schemas yield an empty slice.
func schemaKeys(schema string) []string {
	if schema == "" {
		return nil
	}
	var doc struct {
		Properties map[string]any `json:"properties"`
	}
	if err := json.Unmarshal([]byte(schema), &doc); err != nil {
		slog.Debug("workflow: schema not parsable for key extraction", "error", err)
		return nil
	}
	keys := make([]string, 0, len(doc.Properties))
	for k := range doc.Properties {
		keys = append(keys, k)
	}
	return keys
}
