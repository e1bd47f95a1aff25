package dialogue

import (
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/prompt"
)

// renderStageTemplate renders the assistant-visible prose for the current
// stage without a second LM round-trip (spec §4.4/§9 "Fallback after tool
// calls"), keyed by stage and templated with known/missing parameters.
func renderStageTemplate(catalog *prompt.Catalog, st *models.DialogueState) (string, error) {
	name := stageTemplateName(st.Stage)
	data := map[string]any{
		"extractedParams_json": extractedParamsAsMap(st.ExtractedParams),
	}
	return catalog.Format(name, data)
}

func stageTemplateName(stage models.DialogueStage) string {
	switch stage {
	case models.StageGatheringCompetitors:
		return "dialogue.question.gathering_competitors"
	case models.StageGatheringTimeframe:
		return "dialogue.question.gathering_timeframe"
	case models.StageGatheringPlatforms:
		return "dialogue.question.gathering_platforms"
	case models.StageFinalizing, models.StageCompleted:
		return "dialogue.question.finalizing"
	default:
		return "dialogue.apology"
	}
}

func extractedParamsAsMap(p models.ExtractedParams) map[string]any {
	m := map[string]any{}
	if p.RefinedDescription != "" {
		m["description"] = p.RefinedDescription
	} else if p.InitialDescription != "" {
		m["description"] = p.InitialDescription
	}
	if len(p.Competitors) > 0 {
		m["competitors"] = toAnySlice(p.Competitors)
	}
	if len(p.Platforms) > 0 {
		m["platforms"] = toAnySlice(p.Platforms)
	}
	if len(p.RequiredPlatforms) > 0 {
		m["requiredPlatforms"] = toAnySlice(p.RequiredPlatforms)
	}
	if p.Budget != nil {
		m["budget"] = *p.Budget
	}
	if p.Timeframe != "" {
		m["timeframe"] = p.Timeframe
	}
	if p.Deadline != "" {
		m["deadline"] = p.Deadline
	}
	if p.Quality != "" {
		m["quality"] = p.Quality
	}
	return m
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
