package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/store"
)

func seedProcessor(t *testing.T, client *store.Client, p *models.Processor) {
	t.Helper()
	const q = `
		INSERT INTO processors (processor_id, name, description, capability_tags, endpoint_url, status,
			reputation_score, completed_tasks, success_rate, average_execution_time_ms,
			pricing_model, pricing_price, pricing_unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := client.DB().ExecContext(context.Background(), q,
		p.ProcessorID, p.Name, p.Description, p.CapabilityTags, p.EndpointURL, p.Status,
		p.ReputationScore, p.CompletedTasks, p.SuccessRate, p.AverageExecutionTimeMs,
		p.Pricing.Model, p.Pricing.Price, p.Pricing.Unit,
	)
	require.NoError(t, err)
}

func TestProcessorStore_FindByTags(t *testing.T) {
	client := newTestClient(t)
	s := store.NewProcessorStore(client)
	ctx := context.Background()

	seedProcessor(t, client, &models.Processor{
		ProcessorID: "proc-pdf", Name: "PDF Generator", Description: "renders PDFs",
		CapabilityTags: []string{"pdf", "document"}, EndpointURL: "https://pdf.example/health",
		Status: models.ProcessorStatusActive, ReputationScore: 4.2,
	})
	seedProcessor(t, client, &models.Processor{
		ProcessorID: "proc-img", Name: "Image Resizer", Description: "resizes images",
		CapabilityTags: []string{"image", "resize"}, EndpointURL: "https://img.example/health",
		Status: models.ProcessorStatusActive, ReputationScore: 3.1,
	})
	seedProcessor(t, client, &models.Processor{
		ProcessorID: "proc-inactive", Name: "Old PDF Tool", Description: "legacy",
		CapabilityTags: []string{"pdf"}, EndpointURL: "https://old.example/health",
		Status: models.ProcessorStatusInactive,
	})

	matches, err := s.FindByTags(ctx, []string{"PDF"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "proc-pdf", matches[0].ProcessorID)

	none, err := s.FindByTags(ctx, []string{"video"})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestProcessorStore_UpdateHealthAndListActive(t *testing.T) {
	client := newTestClient(t)
	s := store.NewProcessorStore(client)
	ctx := context.Background()

	seedProcessor(t, client, &models.Processor{
		ProcessorID: "proc-a", Name: "A", Description: "a",
		CapabilityTags: []string{"a"}, EndpointURL: "https://a.example/health",
		Status: models.ProcessorStatusActive, ReputationScore: 5,
	})

	checkedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpdateHealth(ctx, "proc-a", models.ProcessorStatusUnhealthy, checkedAt))

	got, err := s.GetProcessor(ctx, "proc-a")
	require.NoError(t, err)
	require.Equal(t, models.ProcessorStatusUnhealthy, got.Status)
	require.WithinDuration(t, checkedAt, got.LastCheckedAt, time.Second)

	active, err := s.ListActive(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, active)
}
