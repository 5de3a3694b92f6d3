package orchestrator

import (
	"github.com/mkhalidji/callcoach/internal/catalog"
)

type Option func(*options)

type options struct {
	disableSeed bool
	catalog     catalog.Store
}

// WithSeedDisabled prevents the orchestrator from installing the default
// rubric versions on startup. Primarily used in tests.
func WithSeedDisabled() Option {
	return func(o *options) {
		o.disableSeed = true
	}
}

// WithCatalog injects a catalog store implementation instead of opening the
// SQLite database from configuration.
func WithCatalog(store catalog.Store) Option {
	return func(o *options) {
		o.catalog = store
	}
}
