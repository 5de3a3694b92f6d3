package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mkhalidji/callcoach/internal/catalog"
)

// LookupEvaluation returns the cached dimension result for the exact
// (transcript hash, dimension, rubric version) triple, or nil on a miss.
func (s *Store) LookupEvaluation(ctx context.Context, transcriptHash, dimension, rubricVersion string) (*catalog.CachedEvaluation, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	var row evaluationRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM evaluations WHERE transcript_hash = ? AND dimension = ? AND rubric_version = ?`,
		strings.TrimSpace(transcriptHash), strings.TrimSpace(dimension), strings.TrimSpace(rubricVersion))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select evaluation: %w", err)
	}
	record := row.record()
	return &record, nil
}

// StoreEvaluation persists a computed dimension result. Entries are
// write-once: a second store for the same key is a no-op, so racing
// evaluations of the same triple converge on whichever committed first.
func (s *Store) StoreEvaluation(ctx context.Context, entry catalog.CachedEvaluation) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	if strings.TrimSpace(entry.TranscriptHash) == "" {
		return errors.New("evaluation transcript hash required")
	}
	if strings.TrimSpace(entry.Dimension) == "" {
		return errors.New("evaluation dimension required")
	}
	if strings.TrimSpace(entry.RubricVersion) == "" {
		return errors.New("evaluation rubric version required")
	}
	if len(entry.Payload) == 0 {
		return errors.New("evaluation payload required")
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (transcript_hash, dimension, rubric_version, payload, created_at)
                 VALUES (?, ?, ?, ?, ?)
                 ON CONFLICT(transcript_hash, dimension, rubric_version) DO NOTHING`,
		entry.TranscriptHash, entry.Dimension, entry.RubricVersion, string(entry.Payload), createdAt)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}
