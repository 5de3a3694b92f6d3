package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mkhalidji/callcoach/internal/catalog"
)

// CreateRun records the start of an analysis run together with a pending row
// per requested dimension.
func (s *Store) CreateRun(ctx context.Context, run catalog.AnalysisRun) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	if strings.TrimSpace(run.RunID) == "" {
		return errors.New("run id required")
	}
	if strings.TrimSpace(run.CallID) == "" {
		return errors.New("run call id required")
	}
	if len(run.Dimensions) == 0 {
		return errors.New("run dimensions required")
	}
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	status := run.Status
	if status == "" {
		status = catalog.RunStatusRunning
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analysis_runs (run_id, call_id, variant, dimensions, status, error, started_at)
                         VALUES (?, ?, ?, ?, ?, '', ?)`,
			run.RunID, run.CallID, run.Variant, joinList(run.Dimensions), status, startedAt); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, dimension := range run.Dimensions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_dimensions (run_id, dimension, status, updated_at)
                                 VALUES (?, ?, ?, ?)`,
				run.RunID, dimension, catalog.DimensionStatusPending, startedAt); err != nil {
				return fmt.Errorf("insert run dimension %s: %w", dimension, err)
			}
		}
		return nil
	})
}

// UpdateRunDimension records a dimension's outcome. Once a dimension row
// holds a terminal status the update is a no-op, which makes re-delivery of
// the same outcome harmless regardless of goroutine completion order.
func (s *Store) UpdateRunDimension(ctx context.Context, dim catalog.RunDimension) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	if strings.TrimSpace(dim.RunID) == "" || strings.TrimSpace(dim.Dimension) == "" {
		return errors.New("run id and dimension required")
	}
	updatedAt := dim.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE run_dimensions
                 SET status = ?, error = ?, cached = ?, prompt_tokens = ?, completion_tokens = ?, updated_at = ?
                 WHERE run_id = ? AND dimension = ? AND status NOT IN (?, ?)`,
		dim.Status, dim.Error, dim.Cached, dim.PromptTokens, dim.CompletionTokens, updatedAt,
		dim.RunID, dim.Dimension, catalog.DimensionStatusSucceeded, catalog.DimensionStatusFailed)
	if err != nil {
		return fmt.Errorf("update run dimension: %w", err)
	}
	return nil
}

// FinishRun finalizes a run. A second finish for the same run is a no-op.
func (s *Store) FinishRun(ctx context.Context, runID, status, errMsg string, promptTokens, completionTokens int64) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	if strings.TrimSpace(runID) == "" {
		return errors.New("run id required")
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE analysis_runs
                 SET status = ?, error = ?, prompt_tokens = ?, completion_tokens = ?, finished_at = ?
                 WHERE run_id = ? AND finished_at IS NULL`,
		status, errMsg, promptTokens, completionTokens, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun returns a run with its per-dimension rows.
func (s *Store) GetRun(ctx context.Context, runID string) (*catalog.AnalysisRun, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM analysis_runs WHERE run_id = ?`, strings.TrimSpace(runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select run: %w", err)
	}
	dimRows := []runDimensionRow{}
	if err := s.db.SelectContext(ctx, &dimRows,
		`SELECT * FROM run_dimensions WHERE run_id = ? ORDER BY dimension`, row.RunID); err != nil {
		return nil, fmt.Errorf("select run dimensions: %w", err)
	}
	record := row.record()
	record.DimensionRuns = make([]catalog.RunDimension, 0, len(dimRows))
	for _, dim := range dimRows {
		record.DimensionRuns = append(record.DimensionRuns, dim.record())
	}
	return &record, nil
}

// ListRuns returns recent runs, newest first, without per-dimension detail.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]catalog.AnalysisRun, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	if limit <= 0 {
		limit = 50
	}
	rows := []runRow{}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM analysis_runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	records := make([]catalog.AnalysisRun, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}
