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

// ActiveRubric returns the single active rubric for a dimension.
func (s *Store) ActiveRubric(ctx context.Context, dimension string) (*catalog.Rubric, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	dimension = strings.TrimSpace(dimension)
	if dimension == "" {
		return nil, errors.New("dimension required")
	}
	var row rubricRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM rubrics WHERE dimension = ? AND active = 1`, dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select active rubric: %w", err)
	}
	record := row.record()
	return &record, nil
}

// PublishRubric inserts the rubric as the new active version for its
// dimension. The prior active version, if any, is deactivated in the same
// transaction so the one-active-per-dimension invariant holds at every commit
// point.
func (s *Store) PublishRubric(ctx context.Context, rubric catalog.Rubric) (*catalog.Rubric, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	rubric.Dimension = strings.TrimSpace(rubric.Dimension)
	rubric.Version = strings.TrimSpace(rubric.Version)
	if rubric.Dimension == "" {
		return nil, errors.New("rubric dimension required")
	}
	if rubric.Version == "" {
		return nil, errors.New("rubric version required")
	}
	if strings.TrimSpace(rubric.Criteria) == "" {
		return nil, errors.New("rubric criteria required")
	}
	now := time.Now().UTC()
	var inserted rubricRow
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE rubrics SET active = 0, deprecated_at = ? WHERE dimension = ? AND active = 1`,
			now, rubric.Dimension); err != nil {
			return fmt.Errorf("deactivate prior rubric: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO rubrics (dimension, version, criteria, scoring_guide, examples, active, created_at)
                         VALUES (?, ?, ?, ?, ?, 1, ?)`,
			rubric.Dimension, rubric.Version, rubric.Criteria, rubric.ScoringGuide, rubric.Examples, now)
		if err != nil {
			return fmt.Errorf("insert rubric: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("rubric insert id: %w", err)
		}
		return tx.GetContext(ctx, &inserted, `SELECT * FROM rubrics WHERE id = ?`, id)
	})
	if err != nil {
		return nil, err
	}
	record := inserted.record()
	return &record, nil
}

// ListRubrics returns every stored version, newest first, optionally filtered
// by dimension.
func (s *Store) ListRubrics(ctx context.Context, dimension string) ([]catalog.Rubric, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	rows := []rubricRow{}
	var err error
	if dimension = strings.TrimSpace(dimension); dimension != "" {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT * FROM rubrics WHERE dimension = ? ORDER BY created_at DESC, id DESC`, dimension)
	} else {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT * FROM rubrics ORDER BY dimension, created_at DESC, id DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("select rubrics: %w", err)
	}
	records := make([]catalog.Rubric, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}
