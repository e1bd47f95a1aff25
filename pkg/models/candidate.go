package models

// CandidateScore holds the per-(task, processor) sub-scores computed by the
// evaluator (spec §4.8.3). All sub-scores and OverallScore are in [0,1].
type CandidateScore struct {
	ProcessorID         string
	SemanticRelevance   float64
	PriceScore          float64
	ReputationScore     float64
	ReliabilityScore    float64
	SpeedScore          float64
	SchemaCompatibility float64
	OverallScore        float64
	PriceQuote          float64
	EstimatedDurationMs float64
}

// RankedCandidate is the externally visible result of matching (spec §3).
type RankedCandidate struct {
	ProcessorID        string
	Rank               int // dense, starts at 1
	Score              CandidateScore
	ProcessorMetadata  *Processor
	Justification      string
}
