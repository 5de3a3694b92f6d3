package rubric

import (
	"context"
	"errors"
	"testing"

	"github.com/mkhalidji/callcoach/internal/catalog"
)

type stubRubricStore struct {
	rubrics   []catalog.Rubric
	listErr   error
	published []catalog.Rubric
}

func (s *stubRubricStore) ActiveRubric(_ context.Context, dimension string) (*catalog.Rubric, error) {
	for i := range s.rubrics {
		if s.rubrics[i].Dimension == dimension && s.rubrics[i].Active {
			r := s.rubrics[i]
			return &r, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (s *stubRubricStore) PublishRubric(_ context.Context, r catalog.Rubric) (*catalog.Rubric, error) {
	for i := range s.rubrics {
		if s.rubrics[i].Dimension == r.Dimension {
			s.rubrics[i].Active = false
		}
	}
	r.Active = true
	s.rubrics = append(s.rubrics, r)
	s.published = append(s.published, r)
	return &r, nil
}

func (s *stubRubricStore) ListRubrics(_ context.Context, dimension string) ([]catalog.Rubric, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []catalog.Rubric
	for _, r := range s.rubrics {
		if dimension == "" || r.Dimension == dimension {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestResolveActiveRubric(t *testing.T) {
	store := &stubRubricStore{rubrics: []catalog.Rubric{
		{Dimension: "discovery", Version: "1.0", Criteria: "old", Active: false},
		{Dimension: "discovery", Version: "2.0", Criteria: "current", Active: true},
	}}
	resolver := NewResolver(store)

	got, err := resolver.Resolve(context.Background(), "discovery")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Version != "2.0" {
		t.Fatalf("resolved version %s", got.Version)
	}
}

func TestResolveNoActiveRubric(t *testing.T) {
	resolver := NewResolver(&stubRubricStore{})

	_, err := resolver.Resolve(context.Background(), "discovery")
	if !errors.Is(err, ErrNoActiveRubric) {
		t.Fatalf("expected ErrNoActiveRubric, got %v", err)
	}
}

func TestResolveRejectsEmptyDimension(t *testing.T) {
	resolver := NewResolver(&stubRubricStore{})
	if _, err := resolver.Resolve(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank dimension")
	}
}

func TestSeedInstallsAllDefaultDimensions(t *testing.T) {
	store := &stubRubricStore{}
	if err := Seed(context.Background(), store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(store.published) != len(DefaultDimensions()) {
		t.Fatalf("published %d rubrics, want %d", len(store.published), len(DefaultDimensions()))
	}
	for _, dimension := range DefaultDimensions() {
		active, err := store.ActiveRubric(context.Background(), dimension)
		if err != nil {
			t.Fatalf("active %s: %v", dimension, err)
		}
		if active.Version != "1.0" || active.Criteria == "" {
			t.Fatalf("unexpected seed for %s: %+v", dimension, active)
		}
	}
}

func TestSeedSkipsExistingDimensions(t *testing.T) {
	store := &stubRubricStore{rubrics: []catalog.Rubric{
		{Dimension: DimensionDiscovery, Version: "3.1", Criteria: "operator tuned", Active: true},
	}}
	if err := Seed(context.Background(), store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	active, err := store.ActiveRubric(context.Background(), DimensionDiscovery)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.Version != "3.1" {
		t.Fatalf("seed replaced operator rubric: %s", active.Version)
	}
	if len(store.published) != len(DefaultDimensions())-1 {
		t.Fatalf("published %d rubrics", len(store.published))
	}
}
