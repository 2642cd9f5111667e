package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/globe-tracker/model"
	"github.com/signalsfoundry/globe-tracker/store"
)

// ElementSource supplies the current collection of element sets on demand.
// This is the boundary to the external data system: network retrieval,
// caching, and record validation all live behind it. A failed fetch means
// "no new data this cycle", never a pipeline failure.
type ElementSource interface {
	Fetch(ctx context.Context) ([]model.ElementSet, error)
}

// StaticSource is an ElementSource over a fixed collection. Useful for
// demos and tests.
type StaticSource []model.ElementSet

// Fetch returns a copy of the collection.
func (s StaticSource) Fetch(ctx context.Context) ([]model.ElementSet, error) {
	out := make([]model.ElementSet, len(s))
	copy(out, s)
	return out, nil
}

// StoreSource adapts an ElementStore to the ElementSource interface. An
// empty store reads as an unavailable upstream: there is nothing to build
// from yet, so the refresh service keeps whatever it last published.
type StoreSource struct {
	Store *store.ElementStore
}

// Fetch returns the store's current catalog snapshot.
func (s *StoreSource) Fetch(ctx context.Context) ([]model.ElementSet, error) {
	sets := s.Store.List()
	if len(sets) == 0 {
		return nil, fmt.Errorf("element store is empty: %w", ErrUpstreamUnavailable)
	}
	return sets, nil
}
