package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/transcript"
)

// SaveTranscript persists a transcript. Re-ingesting a call supersedes the
// stored row; the new content hash keys the evaluation cache so stale results
// are never reused.
func (s *Store) SaveTranscript(ctx context.Context, t transcript.Transcript) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	encoded, err := json.Marshal(t.Utterances)
	if err != nil {
		return fmt.Errorf("encode utterances: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcripts (call_id, rep_id, content_hash, utterances, created_at)
                 VALUES (?, ?, ?, ?, ?)
                 ON CONFLICT(call_id) DO UPDATE SET
                        rep_id = excluded.rep_id,
                        content_hash = excluded.content_hash,
                        utterances = excluded.utterances`,
		t.CallID, t.RepID, t.ContentHash(), string(encoded), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// GetTranscript loads the stored transcript for a call.
func (s *Store) GetTranscript(ctx context.Context, callID string) (*transcript.Transcript, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	var row transcriptRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM transcripts WHERE call_id = ?`, strings.TrimSpace(callID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select transcript: %w", err)
	}
	var utterances []transcript.Utterance
	if err := json.Unmarshal([]byte(row.Utterances), &utterances); err != nil {
		return nil, fmt.Errorf("decode utterances: %w", err)
	}
	return &transcript.Transcript{
		CallID:     row.CallID,
		RepID:      row.RepID,
		Utterances: utterances,
	}, nil
}
