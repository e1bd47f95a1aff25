package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/agentbus/core/pkg/ports"
)

// Index implements ports.VectorIndex over a pgvector-enabled Postgres table,
// using cosine distance (<=>) to match the spec's "higher is closer" score
// convention by reporting 1-distance.
type Index struct {
	db *sql.DB
}

// NewIndex builds an Index from an already-migrated Client.
func NewIndex(c *Client) *Index {
	return &Index{db: c.db}
}

var _ ports.VectorIndex = (*Index)(nil)

func (x *Index) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal vector metadata for %s: %w", id, err)
	}

	const q = `
		INSERT INTO processor_embeddings (id, embedding, metadata, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET embedding = $2, metadata = $3, updated_at = now()`
	if _, err := x.db.ExecContext(ctx, q, id, pgvector.NewVector(embedding), meta); err != nil {
		return fmt.Errorf("upsert vector %s: %w", id, err)
	}
	return nil
}

func (x *Index) Query(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]ports.VectorMatch, error) {
	var filterJSON []byte
	if len(filter) > 0 {
		var err error
		filterJSON, err = json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshal vector query filter: %w", err)
		}
	} else {
		filterJSON = []byte(`{}`)
	}

	const q = `
		SELECT id, 1 - (embedding <=> $1) AS score, metadata
		FROM processor_embeddings
		WHERE metadata @> $2::jsonb
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := x.db.QueryContext(ctx, q, pgvector.NewVector(embedding), filterJSON, topK)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}
	defer rows.Close()

	var out []ports.VectorMatch
	for rows.Next() {
		var m ports.VectorMatch
		var metaRaw []byte
		if err := rows.Scan(&m.ID, &m.Score, &metaRaw); err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal vector match metadata: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (x *Index) Delete(ctx context.Context, id string) error {
	res, err := x.db.ExecContext(ctx, `DELETE FROM processor_embeddings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete vector %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected deleting vector %s: %w", id, err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}
