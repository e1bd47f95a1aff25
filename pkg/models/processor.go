package models

import "time"

// ProcessorStatus is the health/availability state of a catalog entry.
type ProcessorStatus string

const (
	ProcessorStatusActive    ProcessorStatus = "active"
	ProcessorStatusInactive  ProcessorStatus = "inactive"
	ProcessorStatusBusy      ProcessorStatus = "busy"
	ProcessorStatusUnhealthy ProcessorStatus = "unhealthy"
)

// Pricing describes how a processor charges for its work.
type Pricing struct {
	Model string  `json:"model"` // e.g. "flat", "per_unit", "per_hour"
	Price float64 `json:"price"`
	Unit  string  `json:"unit,omitempty"`
}

// Processor is a registered autonomous agent/service catalog entry (spec §3).
type Processor struct {
	ProcessorID            string
	Name                   string
	Description            string
	CapabilityTags         []string
	InputSchema            string // JSON Schema, empty if unspecified
	OutputSchema           string // JSON Schema, empty if unspecified
	EndpointURL            string
	Status                 ProcessorStatus
	ReputationScore        float64 // 0..5
	CompletedTasks         int
	SuccessRate            float64 // 0..1
	AverageExecutionTimeMs float64
	Pricing                Pricing
	LastCheckedAt          time.Time
}
