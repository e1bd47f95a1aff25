package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
)

// ProcessorStore implements ports.ProcessorStore over the pooled Postgres
// connection, using a text[] GIN index for tag membership queries.
type ProcessorStore struct {
	db *sql.DB
}

// NewProcessorStore builds a ProcessorStore from an already-migrated Client.
func NewProcessorStore(c *Client) *ProcessorStore {
	return &ProcessorStore{db: c.db}
}

var _ ports.ProcessorStore = (*ProcessorStore)(nil)

const processorColumns = `
	processor_id, name, description, capability_tags,
	COALESCE(input_schema, ''), COALESCE(output_schema, ''), endpoint_url, status,
	reputation_score, completed_tasks, success_rate, average_execution_time_ms,
	COALESCE(pricing_model, ''), COALESCE(pricing_price, 0), COALESCE(pricing_unit, ''),
	COALESCE(last_checked_at, to_timestamp(0))`

func scanProcessor(row interface{ Scan(...any) error }) (*models.Processor, error) {
	var p models.Processor
	var tags pq.StringArray
	err := row.Scan(
		&p.ProcessorID, &p.Name, &p.Description, &tags,
		&p.InputSchema, &p.OutputSchema, &p.EndpointURL, &p.Status,
		&p.ReputationScore, &p.CompletedTasks, &p.SuccessRate, &p.AverageExecutionTimeMs,
		&p.Pricing.Model, &p.Pricing.Price, &p.Pricing.Unit,
		&p.LastCheckedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CapabilityTags = []string(tags)
	return &p, nil
}

func (s *ProcessorStore) GetProcessor(ctx context.Context, processorID string) (*models.Processor, error) {
	q := fmt.Sprintf(`SELECT %s FROM processors WHERE processor_id = $1`, processorColumns)
	row := s.db.QueryRowContext(ctx, q, processorID)
	p, err := scanProcessor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get processor %s: %w", processorID, err)
	}
	return p, nil
}

func (s *ProcessorStore) GetProcessors(ctx context.Context, processorIDs []string) ([]*models.Processor, error) {
	if len(processorIDs) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT %s FROM processors WHERE processor_id = ANY($1)`, processorColumns)
	rows, err := s.db.QueryContext(ctx, q, pq.Array(processorIDs))
	if err != nil {
		return nil, fmt.Errorf("get processors: %w", err)
	}
	defer rows.Close()
	return scanProcessorRows(rows)
}

func (s *ProcessorStore) FindByTags(ctx context.Context, tags []string) ([]*models.Processor, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	// && is the array-overlap operator: any shared tag qualifies a candidate.
	q := fmt.Sprintf(`SELECT %s FROM processors WHERE capability_tags && $1 AND status = $2`, processorColumns)
	rows, err := s.db.QueryContext(ctx, q, pq.Array(normalizeTags(tags)), models.ProcessorStatusActive)
	if err != nil {
		return nil, fmt.Errorf("find processors by tags: %w", err)
	}
	defer rows.Close()
	return scanProcessorRows(rows)
}

func (s *ProcessorStore) ListActive(ctx context.Context, limit int) ([]*models.Processor, error) {
	q := fmt.Sprintf(`SELECT %s FROM processors WHERE status = $1 ORDER BY reputation_score DESC LIMIT $2`, processorColumns)
	rows, err := s.db.QueryContext(ctx, q, models.ProcessorStatusActive, limit)
	if err != nil {
		return nil, fmt.Errorf("list active processors: %w", err)
	}
	defer rows.Close()
	return scanProcessorRows(rows)
}

func (s *ProcessorStore) UpdateHealth(ctx context.Context, processorID string, status models.ProcessorStatus, checkedAt time.Time) error {
	const q = `UPDATE processors SET status = $2, last_checked_at = $3 WHERE processor_id = $1`
	res, err := s.db.ExecContext(ctx, q, processorID, status, checkedAt)
	if err != nil {
		return fmt.Errorf("update processor health %s: %w", processorID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for processor %s: %w", processorID, err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func scanProcessorRows(rows *sql.Rows) ([]*models.Processor, error) {
	var out []*models.Processor
	for rows.Next() {
		p, err := scanProcessor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan processor row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeTags lowercases and trims a tag list, the canonical form stored in
// capability_tags and used for && overlap matching.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := strings.ToLower(strings.TrimSpace(t)); n != "" {
			out = append(out, n)
		}
	}
	return out
}
