package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mkhalidji/callcoach/internal/catalog"
)

// RecordRouting appends one immutable routing comparison record.
func (s *Store) RecordRouting(ctx context.Context, decision catalog.RoutingDecision) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	if strings.TrimSpace(decision.CallID) == "" {
		return errors.New("routing call id required")
	}
	if strings.TrimSpace(decision.Variant) == "" {
		return errors.New("routing variant required")
	}
	decidedAt := decision.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO routing_decisions (call_id, run_id, variant, status, mean_score, failed_dimensions, decided_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		decision.CallID, decision.RunID, decision.Variant, decision.Status,
		decision.MeanScore, joinList(decision.FailedDimensions), decidedAt)
	if err != nil {
		return fmt.Errorf("insert routing decision: %w", err)
	}
	return nil
}

// ListRoutingDecisions returns recent routing decisions, newest first.
func (s *Store) ListRoutingDecisions(ctx context.Context, limit int) ([]catalog.RoutingDecision, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	if limit <= 0 {
		limit = 50
	}
	rows := []routingRow{}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM routing_decisions ORDER BY decided_at DESC, id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("select routing decisions: %w", err)
	}
	records := make([]catalog.RoutingDecision, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

// RoutingStats aggregates routing outcomes per variant at read time.
func (s *Store) RoutingStats(ctx context.Context) ([]catalog.VariantStats, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	type statsRow struct {
		Variant   string  `db:"variant"`
		Runs      int     `db:"runs"`
		Succeeded int     `db:"succeeded"`
		Partial   int     `db:"partial"`
		Failed    int     `db:"failed"`
		MeanScore float64 `db:"mean_score"`
	}
	rows := []statsRow{}
	err := s.db.SelectContext(ctx, &rows, `
                SELECT
                        variant,
                        COUNT(*) AS runs,
                        SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END) AS succeeded,
                        SUM(CASE WHEN status = 'partial' THEN 1 ELSE 0 END) AS partial,
                        SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed,
                        COALESCE(AVG(CASE WHEN status != 'failed' THEN mean_score END), 0) AS mean_score
                FROM routing_decisions
                GROUP BY variant
                ORDER BY variant`)
	if err != nil {
		return nil, fmt.Errorf("select routing stats: %w", err)
	}
	stats := make([]catalog.VariantStats, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, catalog.VariantStats{
			Variant:   row.Variant,
			Runs:      row.Runs,
			Succeeded: row.Succeeded,
			Partial:   row.Partial,
			Failed:    row.Failed,
			MeanScore: row.MeanScore,
		})
	}
	return stats, nil
}
