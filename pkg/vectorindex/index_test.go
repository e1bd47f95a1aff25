package vectorindex_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/vectorindex"
)

func newTestIndex(t *testing.T) *vectorindex.Index {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("agentbus_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := vectorindex.NewClient(ctx, config.VectorIndexConfig{DSN: connStr, Dimensions: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return vectorindex.NewIndex(client)
}

func TestIndex_UpsertQueryDelete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "proc-a", []float32{1, 0, 0}, map[string]any{"status": "active"}))
	require.NoError(t, idx.Upsert(ctx, "proc-b", []float32{0, 1, 0}, map[string]any{"status": "active"}))
	require.NoError(t, idx.Upsert(ctx, "proc-c", []float32{1, 0, 0}, map[string]any{"status": "inactive"}))

	matches, err := idx.Query(ctx, []float32{1, 0, 0}, 5, map[string]any{"status": "active"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "proc-a", matches[0].ID)
	require.InDelta(t, 1.0, matches[0].Score, 1e-6)

	require.NoError(t, idx.Delete(ctx, "proc-a"))
	_, err = idx.Query(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)

	err = idx.Delete(ctx, "proc-a")
	require.ErrorIs(t, err, ports.ErrNotFound)
}
