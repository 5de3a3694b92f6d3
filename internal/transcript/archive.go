package transcript

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Archive is an append-only JSONL store of ingested transcripts. It exists as
// an audit trail alongside the relational catalog and as an import source for
// transcripts captured before the catalog was provisioned. One file per call
// keeps appends key-scoped; re-ingesting a call appends a superseding line and
// readers take the latest.
type Archive struct {
	root string
	mu   sync.RWMutex
}

// NewArchive creates the archive root directory if needed.
func NewArchive(root string) (*Archive, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("archive root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{root: root}, nil
}

// Append records a transcript in the archive.
func (a *Archive) Append(ctx context.Context, t Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}
	path, err := a.callFile(t.CallID)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()
	if err := json.NewEncoder(file).Encode(t); err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return nil
}

// Load returns the most recently archived transcript for a call, or nil when
// the call has never been archived.
func (a *Archive) Load(ctx context.Context, callID string) (*Transcript, error) {
	path, err := a.callFile(callID)
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var latest *Transcript
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var t Transcript
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			return nil, fmt.Errorf("decode archived transcript: %w", err)
		}
		latest = &t
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan archive: %w", err)
	}
	return latest, nil
}

// CallIDs lists every call present in the archive.
func (a *Archive) CallIDs(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("read archive dir: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".jsonl"))
	}
	return ids, nil
}

func (a *Archive) callFile(callID string) (string, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return "", errors.New("archive: call id required")
	}
	safe := sanitizeCallID(callID)
	return filepath.Join(a.root, safe+".jsonl"), nil
}

func sanitizeCallID(callID string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, callID)
	return mapped
}
