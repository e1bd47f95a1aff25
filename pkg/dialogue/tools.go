package dialogue

import (
	"encoding/json"
	"log/slog"

	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
)

const (
	toolUpdateParams    = "update_dialogue_parameters"
	toolDetermineNextOp = "determine_next_question_or_finalize"
)

// dialogueTools declares the two LM tools of spec §4.4.
var dialogueTools = []ports.ToolDefinition{
	{
		Name:        toolUpdateParams,
		Description: "Record or update parameters extracted from the conversation so far.",
		ParametersSchema: `{
			"type": "object",
			"properties": {
				"competitors": {"type": "array", "items": {"type": "string"}},
				"platforms": {"type": "array", "items": {"type": "string"}},
				"required_platforms": {"type": "array", "items": {"type": "string"}},
				"budget": {"type": "number", "description": "numeric budget, no currency symbol"},
				"timeframe": {"type": "string"},
				"deadline": {"type": "string", "description": "ISO-8601 date"},
				"key_features": {"type": "array", "items": {"type": "string"}},
				"target_audience": {"type": "string"},
				"quality": {"type": "string"},
				"tags": {"type": "array", "items": {"type": "string"}},
				"refined_description": {"type": "string"},
				"is_complex": {"type": "boolean"}
			}
		}`,
	},
	{
		Name:        toolDetermineNextOp,
		Description: "Decide the next clarification stage, or signal readiness to finalize.",
		ParametersSchema: `{
			"type": "object",
			"properties": {
				"next_stage": {
					"type": "string",
					"enum": ["GATHERING_COMPETITORS", "GATHERING_TIMEFRAME", "GATHERING_PLATFORMS", "FINALIZING"]
				},
				"reasoning": {"type": "string"},
				"is_ready_to_finalize": {"type": "boolean"}
			},
			"required": ["next_stage", "is_ready_to_finalize"]
		}`,
	},
}

// dispatchTool applies one tool call's effect to state and returns the
// tool-result turn payload (spec §4.4).
func dispatchTool(tc ports.ToolCall, st *models.DialogueState) models.ToolResult {
	switch tc.Name {
	case toolUpdateParams:
		return applyUpdateParams(tc, st)
	case toolDetermineNextOp:
		return applyDetermineNext(tc, st)
	default:
		return models.ToolResult{ToolCallID: tc.ID, Name: tc.Name, Content: "unknown tool", IsError: true}
	}
}

type updateParamsArgs struct {
	Competitors        []string `json:"competitors"`
	Platforms          []string `json:"platforms"`
	RequiredPlatforms  []string `json:"required_platforms"`
	Budget             *float64 `json:"budget"`
	Timeframe          string   `json:"timeframe"`
	Deadline           string   `json:"deadline"`
	KeyFeatures        []string `json:"key_features"`
	TargetAudience     string   `json:"target_audience"`
	Quality            string   `json:"quality"`
	Tags               []string `json:"tags"`
	RefinedDescription string   `json:"refined_description"`
	IsComplex          *bool    `json:"is_complex"`
}

func applyUpdateParams(tc ports.ToolCall, st *models.DialogueState) models.ToolResult {
	var args updateParamsArgs
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		slog.Warn("dialogue: invalid update_dialogue_parameters arguments", "error", err)
		return models.ToolResult{ToolCallID: tc.ID, Name: tc.Name, Content: "invalid arguments, ignored", IsError: true}
	}

	p := &st.ExtractedParams
	if len(args.Competitors) > 0 {
		p.Competitors = args.Competitors
	}
	if len(args.Platforms) > 0 {
		p.Platforms = args.Platforms
	}
	if len(args.RequiredPlatforms) > 0 {
		p.RequiredPlatforms = args.RequiredPlatforms
	}
	if args.Budget != nil {
		p.Budget = args.Budget
	}
	if args.Timeframe != "" {
		p.Timeframe = args.Timeframe
	}
	if args.Deadline != "" {
		p.Deadline = args.Deadline
	}
	if len(args.KeyFeatures) > 0 {
		p.KeyFeatures = args.KeyFeatures
	}
	if args.TargetAudience != "" {
		p.TargetAudience = args.TargetAudience
	}
	if args.Quality != "" {
		p.Quality = args.Quality
	}
	if len(args.Tags) > 0 {
		p.Tags = args.Tags
	}
	if args.RefinedDescription != "" {
		p.RefinedDescription = args.RefinedDescription
	}
	if args.IsComplex != nil {
		p.IsComplexHint = args.IsComplex
	}

	return models.ToolResult{ToolCallID: tc.ID, Name: tc.Name, Content: "parameters updated"}
}

type determineNextArgs struct {
	NextStage         string `json:"next_stage"`
	Reasoning         string `json:"reasoning"`
	IsReadyToFinalize bool   `json:"is_ready_to_finalize"`
}

func applyDetermineNext(tc ports.ToolCall, st *models.DialogueState) models.ToolResult {
	var args determineNextArgs
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		slog.Warn("dialogue: invalid determine_next_question_or_finalize arguments", "error", err)
		return models.ToolResult{ToolCallID: tc.ID, Name: tc.Name, Content: "invalid arguments, ignored", IsError: true}
	}

	wasFinalizing := st.Stage == models.StageFinalizing
	if stage, ok := parseStage(args.NextStage); ok {
		st.Stage = stage
	}
	if args.IsReadyToFinalize {
		switch {
		case wasFinalizing:
			// Second consecutive finalize signal: the user confirmed on a
			// further turn (spec §4.4 "then (on a further turn) COMPLETED").
			st.Stage = models.StageCompleted
		case st.Stage != models.StageCompleted:
			st.Stage = models.StageFinalizing
		}
	}

	return models.ToolResult{ToolCallID: tc.ID, Name: tc.Name, Content: "stage updated"}
}

func parseStage(s string) (models.DialogueStage, bool) {
	switch models.DialogueStage(s) {
	case models.StageGatheringCompetitors, models.StageGatheringTimeframe,
		models.StageGatheringPlatforms, models.StageFinalizing:
		return models.DialogueStage(s), true
	default:
		return "", false
	}
}
