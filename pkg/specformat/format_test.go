package specformat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbus/core/pkg/models"
)

func TestFormat_DescriptionFallback(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	spec := Format(models.ExtractedParams{}, now)
	assert.Equal(t, "No description provided.", spec.Description)

	spec = Format(models.ExtractedParams{InitialDescription: "build a site"}, now)
	assert.Equal(t, "build a site", spec.Description)

	spec = Format(models.ExtractedParams{
		InitialDescription: "build a site",
		RefinedDescription: "build a SaaS landing page",
	}, now)
	assert.Equal(t, "build a SaaS landing page", spec.Description)
}

func TestFormat_TagNormalization(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	spec := Format(models.ExtractedParams{
		InitialDescription: "x",
		Tags:               []string{"PDF", " pdf ", "Summary", ""},
		Competitors:        []string{"Linear", "linear"},
		RequiredPlatforms:  []string{"Web", "iOS"},
	}, now)

	for _, tag := range spec.Tags {
		require.NotEmpty(t, tag)
		assert.Equal(t, tag, lower(tag))
	}
	assert.Contains(t, spec.Tags, "pdf")
	assert.Contains(t, spec.Tags, "summary")
	assert.Contains(t, spec.Tags, "competitor:linear")
	assert.Contains(t, spec.Tags, "platform:web")
	assert.Contains(t, spec.Tags, "platform:ios")

	seen := map[string]bool{}
	for _, tag := range spec.Tags {
		assert.False(t, seen[tag], "duplicate tag %q", tag)
		seen[tag] = true
	}
}

func lower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + 32
		}
	}
	return string(out)
}

func TestFormat_DeadlineFuturity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	spec := Format(models.ExtractedParams{
		InitialDescription: "x",
		Deadline:           "2099-12-01T00:00:00Z",
	}, now)
	require.NotNil(t, spec.Constraints)
	assert.True(t, spec.Constraints.HasDeadline)
	assert.True(t, spec.Constraints.Deadline.After(now))

	spec = Format(models.ExtractedParams{
		InitialDescription: "x",
		Deadline:           "2020-01-01T00:00:00Z",
	}, now)
	if spec.Constraints != nil {
		assert.False(t, spec.Constraints.HasDeadline)
	}
}

func TestFormat_BudgetDropsNonPositive(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	zero := 0.0
	spec := Format(models.ExtractedParams{InitialDescription: "x", Budget: &zero}, now)
	if spec.Constraints != nil {
		assert.False(t, spec.Constraints.HasBudget)
	}

	positive := 500.0
	spec = Format(models.ExtractedParams{InitialDescription: "x", Budget: &positive}, now)
	require.NotNil(t, spec.Constraints)
	assert.True(t, spec.Constraints.HasBudget)
	assert.Equal(t, 500.0, spec.Constraints.Budget)
}

func TestFormat_InputsRejectArrays(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	spec := Format(models.ExtractedParams{
		InitialDescription: "x",
		Inputs: map[string]any{
			"valid":   map[string]any{"type": "string"},
			"invalid": []any{"a", "b"},
		},
	}, now)
	_, ok := spec.Inputs["valid"]
	assert.True(t, ok)
	_, ok = spec.Inputs["invalid"]
	assert.False(t, ok)
}

func TestFormat_IsComplexHeuristic(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	simple := Format(models.ExtractedParams{InitialDescription: "x"}, now)
	assert.False(t, simple.IsComplex)

	multiPlatform := Format(models.ExtractedParams{
		InitialDescription: "x",
		RequiredPlatforms:  []string{"web", "ios"},
	}, now)
	assert.True(t, multiPlatform.IsComplex)

	explicit := false
	forcedSimple := Format(models.ExtractedParams{
		InitialDescription: "x",
		RequiredPlatforms:  []string{"web", "ios"},
		IsComplexHint:      &explicit,
	}, now)
	assert.False(t, forcedSimple.IsComplex)
}
