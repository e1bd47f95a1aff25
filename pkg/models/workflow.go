package models

import "time"

// ExecutionMode controls how a workflow plan's estimated duration is totalled.
type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
	ExecutionModeParallel   ExecutionMode = "parallel"
)

// Step is one node of a workflow plan's dependency graph (spec §3).
type Step struct {
	StepID              string         `json:"stepId"`
	Description         string         `json:"description"`
	AssignedProcessorID string         `json:"assignedProcessorId"`
	Dependencies        []string       `json:"dependencies"`
	InputMapping        map[string]any `json:"inputMapping,omitempty"`
	OutputMapping       map[string]any `json:"outputMapping,omitempty"`
	EstimatedCost       float64        `json:"estimatedCost"`
	EstimatedDurationMs float64        `json:"estimatedDurationMs"`
}

// WorkflowPlan is an acyclic, per-task graph assigning steps to processors
// (spec §3/§4.8.4).
type WorkflowPlan struct {
	WorkflowID              string        `json:"workflowId"`
	TaskID                  string        `json:"taskId"`
	Steps                   []Step        `json:"steps"`
	ExecutionMode           ExecutionMode `json:"executionMode"`
	TotalEstimatedCost      float64       `json:"totalEstimatedCost"`
	TotalEstimatedDurationMs float64      `json:"totalEstimatedDurationMs"`
	GeneratedAt             time.Time     `json:"generatedAt"`
}
