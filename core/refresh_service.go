package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/globe-tracker/internal/logging"
	"github.com/signalsfoundry/globe-tracker/model"
	"github.com/signalsfoundry/globe-tracker/timectrl"
)

// State is the refresh service's position in its build lifecycle.
type State int32

const (
	// StateIdle means nothing has been published and no build is running.
	StateIdle State = iota
	// StateBuilding means a trajectory set is being constructed.
	StateBuilding
	// StatePublished means a complete set is available to readers.
	StatePublished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StatePublished:
		return "published"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// RefreshConfig controls the rebuild schedule and the sampling window.
type RefreshConfig struct {
	// Period is the cadence of scheduled rebuilds.
	Period time.Duration
	// CycleTimeout bounds a single rebuild; a cycle that exceeds it is
	// abandoned and the last good set keeps serving.
	CycleTimeout time.Duration
	// SampleCount and SampleSpacing define each trajectory's window:
	// SampleCount epochs, SampleSpacing apart, starting at the simulation
	// clock's current time.
	SampleCount   int
	SampleSpacing time.Duration
}

func (cfg RefreshConfig) withDefaults() RefreshConfig {
	if cfg.Period <= 0 {
		cfg.Period = 10 * time.Minute
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 30 * time.Second
	}
	if cfg.SampleCount < 1 {
		cfg.SampleCount = 181
	}
	if cfg.SampleSpacing <= 0 {
		cfg.SampleSpacing = 30 * time.Second
	}
	return cfg
}

// RefreshService owns the "current trajectory set" lifecycle: it rebuilds
// the set on a schedule and on new-data triggers, and publishes each result
// with an atomic pointer swap. It is the sole writer; any number of readers
// call Current without ever blocking on a rebuild or observing a partially
// built set.
type RefreshService struct {
	cfg     RefreshConfig
	source  ElementSource
	sampler *Sampler
	clock   timectrl.Clock
	log     logging.Logger
	metrics PipelineMetrics
	tracer  trace.Tracer

	current atomic.Pointer[model.TrajectorySet]
	stale   atomic.Bool
	state   atomic.Int32

	// mu serializes build cycles; seq makes the never-publish-older
	// invariant explicit even if serialization is ever relaxed.
	mu           sync.Mutex
	publishedSeq uint64
	nextSeq      atomic.Uint64

	kick chan struct{}
}

// RefreshOption customizes a RefreshService.
type RefreshOption func(*RefreshService)

// WithRefreshLogger sets the service logger; defaults to Noop.
func WithRefreshLogger(l logging.Logger) RefreshOption {
	return func(rs *RefreshService) {
		if l != nil {
			rs.log = l
		}
	}
}

// WithRefreshMetrics sets the metrics sink; defaults to a no-op.
func WithRefreshMetrics(m PipelineMetrics) RefreshOption {
	return func(rs *RefreshService) {
		if m != nil {
			rs.metrics = m
		}
	}
}

// NewRefreshService constructs a refresh service. The clock decides each
// cycle's window start; the service never advances or owns simulation time.
func NewRefreshService(cfg RefreshConfig, source ElementSource, sampler *Sampler, clock timectrl.Clock, opts ...RefreshOption) *RefreshService {
	rs := &RefreshService{
		cfg:     cfg.withDefaults(),
		source:  source,
		sampler: sampler,
		clock:   clock,
		log:     logging.Noop(),
		metrics: noopMetrics{},
		tracer:  otel.Tracer("globe-tracker/core"),
		kick:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(rs)
	}
	rs.state.Store(int32(StateIdle))
	return rs
}

// Current returns the published trajectory set, or nil before the first
// successful cycle. The returned set is immutable and stays valid for as
// long as the caller holds it, even across later publications.
func (rs *RefreshService) Current() *model.TrajectorySet {
	return rs.current.Load()
}

// Stale reports whether the most recent cycle failed, leaving readers on
// older-than-scheduled data.
func (rs *RefreshService) Stale() bool {
	return rs.stale.Load()
}

// State returns the service's current lifecycle state.
func (rs *RefreshService) State() State {
	return State(rs.state.Load())
}

// TriggerRefresh requests a rebuild outside the schedule, typically on
// new element data. Requests arriving while a build is in flight coalesce
// into a single follow-up cycle.
func (rs *RefreshService) TriggerRefresh() {
	select {
	case rs.kick <- struct{}{}:
	default:
	}
}

// Run executes the startup build and then rebuilds on every schedule tick
// or trigger until ctx is cancelled.
func (rs *RefreshService) Run(ctx context.Context) error {
	if err := rs.RefreshNow(ctx); err != nil {
		rs.log.Warn(ctx, "startup refresh failed", logging.String("error", err.Error()))
	}

	ticker := time.NewTicker(rs.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := rs.RefreshNow(ctx); err != nil {
				rs.log.Warn(ctx, "scheduled refresh failed", logging.String("error", err.Error()))
			}
		case <-rs.kick:
			if err := rs.RefreshNow(ctx); err != nil {
				rs.log.Warn(ctx, "triggered refresh failed", logging.String("error", err.Error()))
			}
		}
	}
}

// RefreshNow runs one complete build cycle synchronously. On failure the
// previously published set keeps serving and the staleness flag is raised;
// the error reports why (ErrUpstreamUnavailable, ErrEmptyRefresh, timeout).
func (rs *RefreshService) RefreshNow(ctx context.Context) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	seq := rs.nextSeq.Add(1)
	start := time.Now()
	rs.state.Store(int32(StateBuilding))

	ctx, span := rs.tracer.Start(ctx, "refresh.cycle",
		trace.WithAttributes(attribute.Int64("refresh.seq", int64(seq))),
	)
	defer span.End()

	if rs.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rs.cfg.CycleTimeout)
		defer cancel()
	}

	sets, err := rs.source.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		return rs.failCycle(ctx, span, "upstream_unavailable", start, err)
	}
	if len(sets) == 0 {
		return rs.failCycle(ctx, span, "upstream_unavailable", start,
			fmt.Errorf("source returned zero element sets: %w", ErrUpstreamUnavailable))
	}

	windowStart := rs.clock.Now()
	set, err := rs.sampler.BuildSet(ctx, sets, windowStart, rs.cfg.SampleCount, rs.cfg.SampleSpacing)
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, ErrEmptyRefresh):
			outcome = "empty"
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			outcome = "timeout"
		}
		return rs.failCycle(ctx, span, outcome, start, err)
	}

	// Publish. The sequence guard keeps an older in-flight result from
	// ever replacing a newer publication.
	if seq <= rs.publishedSeq {
		return rs.failCycle(ctx, span, "superseded", start,
			fmt.Errorf("cycle %d superseded by %d", seq, rs.publishedSeq))
	}
	rs.current.Store(set)
	rs.publishedSeq = seq
	rs.stale.Store(false)
	rs.metrics.SetStale(false)
	rs.state.Store(int32(StatePublished))

	elapsed := time.Since(start)
	rs.metrics.CycleCompleted("published", elapsed, set.Len())
	span.SetAttributes(
		attribute.String("refresh.outcome", "published"),
		attribute.Int("refresh.objects", set.Len()),
	)
	rs.log.Info(ctx, "trajectory set published",
		logging.Int("objects", set.Len()),
		logging.String("window_start", windowStart.UTC().Format(time.RFC3339)),
		logging.Any("duration_ms", elapsed.Milliseconds()),
	)
	return nil
}

// failCycle records a failed cycle, restores the serving state, and flags
// staleness. Callers must hold mu.
func (rs *RefreshService) failCycle(ctx context.Context, span trace.Span, outcome string, start time.Time, err error) error {
	rs.stale.Store(true)
	rs.metrics.SetStale(true)
	if rs.current.Load() != nil {
		rs.state.Store(int32(StatePublished))
	} else {
		rs.state.Store(int32(StateIdle))
	}

	rs.metrics.CycleCompleted(outcome, time.Since(start), 0)
	span.SetAttributes(attribute.String("refresh.outcome", outcome))
	rs.log.Warn(ctx, "refresh cycle failed",
		logging.String("outcome", outcome),
		logging.String("error", err.Error()),
	)
	return err
}
