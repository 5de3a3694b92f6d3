package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/common"
	"github.com/mkhalidji/callcoach/internal/rubric"
	"github.com/mkhalidji/callcoach/internal/sqlite"
	"github.com/mkhalidji/callcoach/internal/transcript"
)

type closer interface {
	Close() error
}

// Orchestrator wires together the persistent stores that back the coaching
// server and exposes convenience accessors for the API layer.
type Orchestrator struct {
	cfg Config

	catalog catalog.Store
	archive *transcript.Archive

	closers []closer
}

// New constructs an orchestrator from the provided configuration and optional
// overrides. Unless seeding is disabled, the default rubric versions are
// installed for any dimension that has none.
func New(ctx context.Context, cfg Config, opts ...Option) (*Orchestrator, error) {
	cfg = applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	settings := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	archive, err := transcript.NewArchive(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("init transcript archive: %w", err)
	}

	store := settings.catalog
	if store == nil {
		sqliteStore, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		store = sqliteStore
	}

	orch := &Orchestrator{
		cfg:     cfg,
		catalog: store,
		archive: archive,
	}
	if c, ok := store.(closer); ok && settings.catalog == nil {
		orch.closers = append(orch.closers, c)
	}

	if !settings.disableSeed {
		seedCtx, cancel := context.WithTimeout(ctx, cfg.SeedTimeout)
		defer cancel()
		if err := rubric.Seed(seedCtx, store); err != nil {
			orch.Close()
			return nil, fmt.Errorf("seed rubrics: %w", err)
		}
	}
	orch.importArchive(ctx)
	return orch, nil
}

// importArchive backfills catalog rows for transcripts that exist only in the
// archive, so calls ingested before the catalog was provisioned stay
// analyzable. Failures are logged per call and never abort startup.
func (o *Orchestrator) importArchive(ctx context.Context) {
	logger := common.Logger()
	callIDs, err := o.archive.CallIDs(ctx)
	if err != nil {
		logger.Warn("orchestrator: archive scan failed", "error", err)
		return
	}
	imported := 0
	for _, callID := range callIDs {
		if _, err := o.catalog.GetTranscript(ctx, callID); err == nil {
			continue
		} else if !errors.Is(err, catalog.ErrNotFound) {
			logger.Warn("orchestrator: catalog probe failed", "call_id", callID, "error", err)
			continue
		}
		archived, err := o.archive.Load(ctx, callID)
		if err != nil || archived == nil {
			logger.Warn("orchestrator: archived transcript unreadable", "call_id", callID, "error", err)
			continue
		}
		if err := o.catalog.SaveTranscript(ctx, *archived); err != nil {
			logger.Warn("orchestrator: transcript import failed", "call_id", callID, "error", err)
			continue
		}
		imported++
	}
	if imported > 0 {
		logger.Info("orchestrator: imported archived transcripts", "count", imported)
	}
}

// Catalog exposes the relational catalog behind the engine and API.
func (o *Orchestrator) Catalog() catalog.Store {
	if o == nil {
		return nil
	}
	return o.catalog
}

// Archive exposes the append-only transcript archive.
func (o *Orchestrator) Archive() *transcript.Archive {
	if o == nil {
		return nil
	}
	return o.archive
}

// Close releases any resources associated with the orchestrator.
func (o *Orchestrator) Close() error {
	if o == nil {
		return nil
	}
	var err error
	for i := len(o.closers) - 1; i >= 0; i-- {
		closer := o.closers[i]
		if closer == nil {
			continue
		}
		if cerr := closer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}
