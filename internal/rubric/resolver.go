package rubric

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/common"
)

// ErrNoActiveRubric indicates that no rubric version is active for the
// requested dimension. This is a configuration problem, not a transient
// failure: callers must not retry it.
var ErrNoActiveRubric = errors.New("rubric: no active rubric for dimension")

// Resolver looks up the active evaluation rubric per dimension.
type Resolver struct {
	store catalog.RubricStore
}

func NewResolver(store catalog.RubricStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the single active rubric for the dimension.
func (r *Resolver) Resolve(ctx context.Context, dimension string) (catalog.Rubric, error) {
	dimension = strings.TrimSpace(dimension)
	if dimension == "" {
		return catalog.Rubric{}, errors.New("rubric: dimension required")
	}
	if r == nil || r.store == nil {
		return catalog.Rubric{}, errors.New("rubric: resolver not initialised")
	}
	active, err := r.store.ActiveRubric(ctx, dimension)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.Rubric{}, fmt.Errorf("%w: %s", ErrNoActiveRubric, dimension)
	}
	if err != nil {
		return catalog.Rubric{}, fmt.Errorf("rubric: resolve %s: %w", dimension, err)
	}
	return *active, nil
}

// Publish installs a new rubric version as the active one for its dimension.
// Existing versions are never mutated; the store deactivates the prior active
// version in the same transaction.
func (r *Resolver) Publish(ctx context.Context, rubric catalog.Rubric) (catalog.Rubric, error) {
	if r == nil || r.store == nil {
		return catalog.Rubric{}, errors.New("rubric: resolver not initialised")
	}
	published, err := r.store.PublishRubric(ctx, rubric)
	if err != nil {
		return catalog.Rubric{}, fmt.Errorf("rubric: publish %s %s: %w", rubric.Dimension, rubric.Version, err)
	}
	common.Logger().Info("rubric: published new version",
		"dimension", published.Dimension, "version", published.Version)
	return *published, nil
}
