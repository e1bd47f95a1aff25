package models

import "time"

// ShapeDescriptor describes the structural shape of one named input or
// output of a task (spec §3 "inputs/outputs: mapping from name to shape
// descriptor"). Kept intentionally loose — the bus never executes tasks, it
// only needs enough structure to score schema compatibility (spec §4.8.3).
type ShapeDescriptor struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Constraints holds the optional qualifiers extracted during clarification.
type Constraints struct {
	Budget             float64   `json:"budget,omitempty"`
	Deadline           time.Time `json:"deadline,omitempty"`
	Quality            string    `json:"quality,omitempty"`
	RequiredPlatforms  []string  `json:"requiredPlatforms,omitempty"`
	Timeframe          string    `json:"timeframe,omitempty"`
	Competitors        []string  `json:"competitors,omitempty"`
	HasBudget          bool      `json:"-"`
	HasDeadline        bool      `json:"-"`
}

// TaskSpecification is the canonical result of clarification (spec §3/§4.5).
type TaskSpecification struct {
	Description string                     `json:"description"`
	Inputs      map[string]ShapeDescriptor `json:"inputs"`
	Outputs     map[string]ShapeDescriptor `json:"outputs"`
	Constraints *Constraints               `json:"constraints,omitempty"`
	Tags        []string                   `json:"tags"`
	IsComplex   bool                       `json:"isComplex"`
}
