package tests

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/globe-tracker/core"
	"github.com/signalsfoundry/globe-tracker/internal/logging"
	"github.com/signalsfoundry/globe-tracker/model"
	"github.com/signalsfoundry/globe-tracker/store"
	"github.com/signalsfoundry/globe-tracker/timectrl"
)

var issTLE = model.ElementSet{
	Name:  "ISS (ZARYA)",
	Line1: "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990",
	Line2: "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760",
}

// End-to-end: catalog in the store, real SGP4 propagation, refresh service
// publication, and continuous position queries against the sim clock.
func TestPipelinePublishesQueryableTrajectories(t *testing.T) {
	elements := store.NewElementStore()
	elements.Replace([]model.ElementSet{issTLE})

	epoch := time.Date(2021, 10, 2, 12, 0, 0, 0, time.UTC)
	clock := timectrl.NewSimClock(epoch, 1.0)

	sampler := core.NewSampler(core.NewSGP4Propagator(), core.WithSamplerLogger(logging.Noop()))
	refresher := core.NewRefreshService(core.RefreshConfig{
		Period:        time.Hour,
		CycleTimeout:  10 * time.Second,
		SampleCount:   10,
		SampleSpacing: time.Minute,
	}, &core.StoreSource{Store: elements}, sampler, clock,
		core.WithRefreshLogger(logging.Noop()),
	)

	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	set := refresher.Current()
	if set == nil || set.Len() != 1 {
		t.Fatalf("Current() = %v, want a 1-object set", set)
	}
	tr, ok := set.Get(issTLE.Name)
	if !ok {
		t.Fatalf("ISS trajectory missing from published set")
	}

	start, end := tr.Window()
	for _, q := range []time.Time{start, start.Add(90 * time.Second), end, end.Add(time.Hour)} {
		pos := tr.PositionAt(q)
		norm := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
		// LEO altitude in metres: above Earth's surface, below 10000 km.
		if norm < 6.3e6 || norm > 1.0e7 {
			t.Fatalf("PositionAt(%v) norm = %.0f m, outside LEO range", q, norm)
		}
	}

	// The orbit moves between samples.
	if tr.PositionAt(start) == tr.PositionAt(start.Add(5*time.Minute)) {
		t.Fatalf("expected position to change along the trajectory")
	}
}

// A catalog replacement must be observable through the subscription used to
// trigger rebuilds, and the next cycle must reflect the new catalog.
func TestPipelinePicksUpCatalogReplacement(t *testing.T) {
	elements := store.NewElementStore()
	elements.Replace([]model.ElementSet{issTLE})

	clock := timectrl.NewSimClock(time.Date(2021, 10, 2, 12, 0, 0, 0, time.UTC), 1.0)
	sampler := core.NewSampler(core.NewSGP4Propagator())
	refresher := core.NewRefreshService(core.RefreshConfig{
		SampleCount:   5,
		SampleSpacing: time.Minute,
	}, &core.StoreSource{Store: elements}, sampler, clock)

	notified := 0
	elements.Subscribe(func(store.Event) {
		notified++
		refresher.TriggerRefresh()
	})

	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatalf("initial RefreshNow: %v", err)
	}

	renamed := issTLE
	renamed.Name = "STATION"
	elements.Replace([]model.ElementSet{renamed})
	if notified != 1 {
		t.Fatalf("subscriber notified %d times, want 1", notified)
	}

	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow after replacement: %v", err)
	}
	set := refresher.Current()
	if _, ok := set.Get("STATION"); !ok {
		t.Fatalf("new catalog name missing after rebuild")
	}
	if _, ok := set.Get(issTLE.Name); ok {
		t.Fatalf("old catalog name still present after rebuild")
	}
}

// Upstream loss after a good publish must keep the old set serving.
func TestPipelineSurvivesUpstreamLoss(t *testing.T) {
	elements := store.NewElementStore()
	elements.Replace([]model.ElementSet{issTLE})

	clock := timectrl.NewSimClock(time.Date(2021, 10, 2, 12, 0, 0, 0, time.UTC), 1.0)
	sampler := core.NewSampler(core.NewSGP4Propagator())
	refresher := core.NewRefreshService(core.RefreshConfig{
		SampleCount:   5,
		SampleSpacing: time.Minute,
	}, &core.StoreSource{Store: elements}, sampler, clock)

	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	good := refresher.Current()

	elements.Replace(nil)
	if err := refresher.RefreshNow(context.Background()); err == nil {
		t.Fatalf("expected an error when the catalog is empty")
	}

	if refresher.Current() != good {
		t.Fatalf("published set changed after a failed cycle")
	}
	if !refresher.Stale() {
		t.Fatalf("staleness flag not raised after a failed cycle")
	}
}
