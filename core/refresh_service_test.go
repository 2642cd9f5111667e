package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/globe-tracker/model"
)

// stubClock is a fixed simulation clock for deterministic windows.
type stubClock struct {
	t time.Time
}

func (c *stubClock) Now() time.Time { return c.t }

// flakySource can be switched between serving a collection and failing.
type flakySource struct {
	mu   sync.Mutex
	sets []model.ElementSet
	err  error
}

func (f *flakySource) Fetch(ctx context.Context) ([]model.ElementSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.ElementSet, len(f.sets))
	copy(out, f.sets)
	return out, nil
}

func (f *flakySource) set(sets []model.ElementSet, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = sets
	f.err = err
}

func newTestRefreshService(source ElementSource, prop Propagator) *RefreshService {
	sampler := NewSampler(prop)
	clock := &stubClock{t: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)}
	return NewRefreshService(RefreshConfig{
		Period:        time.Hour,
		CycleTimeout:  5 * time.Second,
		SampleCount:   4,
		SampleSpacing: time.Minute,
	}, source, sampler, clock)
}

func TestRefreshService_PublishesOnStartup(t *testing.T) {
	source := &flakySource{sets: []model.ElementSet{{Name: "SAT-1"}, {Name: "SAT-2"}}}
	rs := newTestRefreshService(source, &fakeProp{})

	if rs.State() != StateIdle {
		t.Fatalf("initial state = %v, want idle", rs.State())
	}
	if rs.Current() != nil {
		t.Fatalf("Current() should be nil before the first cycle")
	}

	if err := rs.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	if rs.State() != StatePublished {
		t.Fatalf("state = %v, want published", rs.State())
	}
	set := rs.Current()
	if set == nil || set.Len() != 2 {
		t.Fatalf("Current() = %v, want a 2-object set", set)
	}
	if rs.Stale() {
		t.Fatalf("fresh publish should not be stale")
	}
}

func TestRefreshService_KeepsLastGoodSetOnEmptyUpstream(t *testing.T) {
	source := &flakySource{sets: []model.ElementSet{{Name: "SAT-1"}}}
	rs := newTestRefreshService(source, &fakeProp{})

	if err := rs.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	good := rs.Current()

	// Upstream returns zero records on the next cycle.
	source.set(nil, nil)
	err := rs.RefreshNow(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}

	if rs.Current() != good {
		t.Fatalf("failed cycle must leave the published set unchanged")
	}
	if !rs.Stale() {
		t.Fatalf("failed cycle must flag staleness")
	}
	if rs.State() != StatePublished {
		t.Fatalf("state = %v, want published (still serving last good set)", rs.State())
	}

	// Recovery clears the flag.
	source.set([]model.ElementSet{{Name: "SAT-1"}}, nil)
	if err := rs.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow after recovery: %v", err)
	}
	if rs.Stale() {
		t.Fatalf("successful cycle must clear staleness")
	}
}

func TestRefreshService_SourceErrorReadsAsUpstreamUnavailable(t *testing.T) {
	source := &flakySource{err: fmt.Errorf("connection refused")}
	rs := newTestRefreshService(source, &fakeProp{})

	err := rs.RefreshNow(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
	if rs.Current() != nil {
		t.Fatalf("nothing should be published after a failed first cycle")
	}
	if rs.State() != StateIdle {
		t.Fatalf("state = %v, want idle (nothing ever published)", rs.State())
	}
}

func TestRefreshService_PartialFailureStillPublishes(t *testing.T) {
	source := &flakySource{sets: []model.ElementSet{{Name: "SAT-1"}, {Name: "DOOMED"}}}
	rs := newTestRefreshService(source, &fakeProp{failAt: func(es model.ElementSet, _ time.Time) bool {
		return es.Name == "DOOMED"
	}})

	if err := rs.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	set := rs.Current()
	if set == nil || set.Len() != 1 {
		t.Fatalf("Current() = %v, want a 1-object set", set)
	}
	if _, ok := set.Get("SAT-1"); !ok {
		t.Fatalf("surviving object missing from published set")
	}
	if rs.State() != StatePublished {
		t.Fatalf("state = %v, want published", rs.State())
	}
}

func TestRefreshService_AllObjectsFailedKeepsLastGood(t *testing.T) {
	source := &flakySource{sets: []model.ElementSet{{Name: "SAT-1"}}}
	prop := &fakeProp{}
	rs := newTestRefreshService(source, prop)

	if err := rs.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	good := rs.Current()

	prop.failAt = func(model.ElementSet, time.Time) bool { return true }
	err := rs.RefreshNow(context.Background())
	if !errors.Is(err, ErrEmptyRefresh) {
		t.Fatalf("error = %v, want ErrEmptyRefresh", err)
	}
	if rs.Current() != good {
		t.Fatalf("empty refresh must not replace the published set")
	}
	if !rs.Stale() {
		t.Fatalf("empty refresh must flag staleness")
	}
}

// Readers must never observe a mix of old and new objects: every set they
// pull is complete, no matter how publication interleaves with their reads.
func TestRefreshService_AtomicSwapUnderConcurrentReads(t *testing.T) {
	names := []string{"SAT-1", "SAT-2", "SAT-3"}
	sets := make([]model.ElementSet, len(names))
	for i, n := range names {
		sets[i] = model.ElementSet{Name: n}
	}
	source := &flakySource{sets: sets}
	rs := newTestRefreshService(source, &fakeProp{})

	if err := rs.RefreshNow(context.Background()); err != nil {
		t.Fatalf("initial RefreshNow: %v", err)
	}

	var stop atomic.Bool
	var wg sync.WaitGroup

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queryAt := time.Date(2025, time.June, 1, 0, 1, 30, 0, time.UTC)
			for !stop.Load() {
				set := rs.Current()
				if set == nil {
					t.Errorf("Current() returned nil to a reader")
					return
				}
				if set.Len() != len(names) {
					t.Errorf("reader saw a set with %d objects, want %d", set.Len(), len(names))
					return
				}
				for _, n := range names {
					tr, ok := set.Get(n)
					if !ok {
						t.Errorf("reader saw a set missing %q", n)
						return
					}
					tr.PositionAt(queryAt)
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if err := rs.RefreshNow(context.Background()); err != nil {
			t.Fatalf("RefreshNow %d: %v", i, err)
		}
	}
	stop.Store(true)
	wg.Wait()
}

func TestRefreshService_TriggerCoalesces(t *testing.T) {
	rs := newTestRefreshService(&flakySource{sets: []model.ElementSet{{Name: "SAT-1"}}}, &fakeProp{})

	// Multiple triggers while no loop is draining the channel must not
	// block or panic; they collapse into one pending kick.
	for i := 0; i < 10; i++ {
		rs.TriggerRefresh()
	}
	select {
	case <-rs.kick:
	default:
		t.Fatalf("expected one pending kick")
	}
	select {
	case <-rs.kick:
		t.Fatalf("kicks should have coalesced into a single pending trigger")
	default:
	}
}

func TestRefreshService_RunStopsOnCancel(t *testing.T) {
	rs := newTestRefreshService(&flakySource{sets: []model.ElementSet{{Name: "SAT-1"}}}, &fakeProp{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rs.Run(ctx) }()

	// Give the startup cycle a moment, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}

	if rs.Current() == nil {
		t.Fatalf("startup cycle should have published before cancellation")
	}
}
