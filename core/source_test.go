package core

import (
	"context"
	"errors"
	"testing"

	"github.com/signalsfoundry/globe-tracker/model"
	"github.com/signalsfoundry/globe-tracker/store"
)

func TestStaticSourceReturnsCopy(t *testing.T) {
	src := StaticSource{{Name: "SAT-1"}}

	sets, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(sets) != 1 || sets[0].Name != "SAT-1" {
		t.Fatalf("Fetch = %v, want [SAT-1]", sets)
	}

	sets[0].Name = "MUTATED"
	again, _ := src.Fetch(context.Background())
	if again[0].Name != "SAT-1" {
		t.Fatalf("caller mutation leaked into the source")
	}
}

func TestStoreSourceEmptyReadsAsUnavailable(t *testing.T) {
	src := &StoreSource{Store: store.NewElementStore()}

	_, err := src.Fetch(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestStoreSourceServesCatalog(t *testing.T) {
	s := store.NewElementStore()
	s.Replace([]model.ElementSet{{Name: "SAT-1"}, {Name: "SAT-2"}})
	src := &StoreSource{Store: s}

	sets, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("len = %d, want 2", len(sets))
	}
}
