package evaluator_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentbus/core/pkg/evaluator"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/prompt"
)

type fakeLLM struct {
	embedVecs map[string][]float32
	embedErr  error
	chatText  string
	chatErr   error
}

func (f *fakeLLM) Chat(ctx context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	if f.chatErr != nil {
		return ports.ChatResponse{}, f.chatErr
	}
	return ports.ChatResponse{Text: f.chatText}, nil
}

func (f *fakeLLM) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = f.embedVecs[in]
	}
	return out, nil
}

func cheapProcessor(id string) *models.Processor {
	return &models.Processor{
		ProcessorID:            id,
		Name:                   id,
		Description:            "builds landing pages",
		Status:                 models.ProcessorStatusActive,
		ReputationScore:        5,
		SuccessRate:            1.0,
		AverageExecutionTimeMs: 1000,
		Pricing:                models.Pricing{Price: 1},
	}
}

func TestEvaluator_EvaluateAndRank_NoLLM(t *testing.T) {
	eval := evaluator.New(nil, nil, prompt.NewCatalog(""), 10)
	spec := &models.TaskSpecification{Description: "build a landing page"}
	candidates := []*models.Processor{cheapProcessor("cheap"), expensiveProcessor("expensive")}

	ranked, err := eval.EvaluateAndRank(context.Background(), spec, candidates)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	require.Equal(t, 1, ranked[0].Rank)
	require.Equal(t, "cheap", ranked[0].ProcessorID)
	require.Greater(t, ranked[0].Score.OverallScore, ranked[1].Score.OverallScore)
}

func expensiveProcessor(id string) *models.Processor {
	p := cheapProcessor(id)
	p.Pricing.Price = 500
	p.ReputationScore = 1
	p.SuccessRate = 0.5
	return p
}

func TestEvaluator_EvaluateAndRank_TruncatesToMax(t *testing.T) {
	eval := evaluator.New(nil, nil, prompt.NewCatalog(""), 1)
	spec := &models.TaskSpecification{Description: "build a landing page"}
	candidates := []*models.Processor{cheapProcessor("a"), cheapProcessor("b")}

	ranked, err := eval.EvaluateAndRank(context.Background(), spec, candidates)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
}

func TestEvaluator_Rerank_AppliesLLMOrderAndFallsBackOnParseFailure(t *testing.T) {
	candidates := []*models.Processor{cheapProcessor("a"), cheapProcessor("b")}
	spec := &models.TaskSpecification{Description: "build a landing page"}

	results := []map[string]string{{"id": "b", "justification": "better fit"}}
	text, _ := json.Marshal(results)

	llm := &fakeLLM{chatText: string(text)}
	eval := evaluator.New(nil, llm, prompt.NewCatalog(""), 10)

	ranked, err := eval.EvaluateAndRank(context.Background(), spec, candidates)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	require.Equal(t, "b", ranked[0].ProcessorID)
	require.Equal(t, "better fit", ranked[0].Justification)
	require.Equal(t, "a", ranked[1].ProcessorID)
	require.Empty(t, ranked[1].Justification)

	badLLM := &fakeLLM{chatText: "not json"}
	eval2 := evaluator.New(nil, badLLM, prompt.NewCatalog(""), 10)
	ranked2, err := eval2.EvaluateAndRank(context.Background(), spec, candidates)
	require.NoError(t, err)
	require.Len(t, ranked2, 2)
}
