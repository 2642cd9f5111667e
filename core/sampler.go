package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/globe-tracker/internal/logging"
	"github.com/signalsfoundry/globe-tracker/model"
)

// PipelineMetrics receives trajectory pipeline events. Implementations
// must be safe for concurrent use; see internal/observability for the
// Prometheus-backed one.
type PipelineMetrics interface {
	EpochSkipped(object string)
	ObjectOmitted(object string)
	CycleCompleted(outcome string, duration time.Duration, objects int)
	SetStale(stale bool)
}

type noopMetrics struct{}

func (noopMetrics) EpochSkipped(string)                         {}
func (noopMetrics) ObjectOmitted(string)                        {}
func (noopMetrics) CycleCompleted(string, time.Duration, int)   {}
func (noopMetrics) SetStale(bool)                               {}

// Sampler turns element sets into trajectories by propagating at discrete
// epochs over a window and converting each sample into the render frame.
// The resulting trajectories answer continuous position queries by
// interpolation, so propagation cost is amortized across many render
// frames instead of being paid per frame.
type Sampler struct {
	prop    Propagator
	log     logging.Logger
	metrics PipelineMetrics
}

// SamplerOption customizes a Sampler.
type SamplerOption func(*Sampler)

// WithSamplerLogger sets the sampler's logger; defaults to Noop.
func WithSamplerLogger(l logging.Logger) SamplerOption {
	return func(s *Sampler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSamplerMetrics sets the sampler's metrics sink; defaults to a no-op.
func WithSamplerMetrics(m PipelineMetrics) SamplerOption {
	return func(s *Sampler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewSampler constructs a Sampler around the given propagation capability.
func NewSampler(prop Propagator, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		prop:    prop,
		log:     logging.Noop(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildTrajectory samples the object's position at
// windowStart + i*sampleSpacing for i in [0, sampleCount), converting each
// sample into the render frame. A failed propagation or conversion skips
// that epoch only; the trajectory is valid as long as one epoch succeeds.
// Returns ErrEmptyTrajectory when every epoch fails.
func (s *Sampler) BuildTrajectory(ctx context.Context, es model.ElementSet, windowStart time.Time, sampleCount int, sampleSpacing time.Duration) (*model.Trajectory, error) {
	if sampleCount < 1 {
		return nil, fmt.Errorf("sample count %d: must be at least 1", sampleCount)
	}
	if sampleSpacing <= 0 {
		return nil, fmt.Errorf("sample spacing %s: must be positive", sampleSpacing)
	}

	epochs := make([]model.SampleEpoch, 0, sampleCount)
	for i := 0; i < sampleCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ti := windowStart.Add(time.Duration(i) * sampleSpacing)

		eci, err := s.prop.Propagate(es, ti)
		if err != nil {
			s.skipEpoch(ctx, es.Name, ti, err)
			continue
		}
		pos, err := ToRenderFrame(eci, ti)
		if err != nil {
			s.skipEpoch(ctx, es.Name, ti, err)
			continue
		}

		epochs = append(epochs, model.SampleEpoch{Time: ti, Position: pos})
	}

	if len(epochs) == 0 {
		return nil, fmt.Errorf("object %q: %w", es.Name, ErrEmptyTrajectory)
	}
	return &model.Trajectory{Name: es.Name, Epochs: epochs}, nil
}

// BuildSet builds a complete trajectory set from the given element sets.
// Objects whose trajectories come up empty are omitted with a warning, not
// an error; the set is valid as long as one object survives. Returns
// ErrEmptyRefresh when no object does.
func (s *Sampler) BuildSet(ctx context.Context, sets []model.ElementSet, windowStart time.Time, sampleCount int, sampleSpacing time.Duration) (*model.TrajectorySet, error) {
	trs := make([]*model.Trajectory, 0, len(sets))
	for _, es := range sets {
		tr, err := s.BuildTrajectory(ctx, es, windowStart, sampleCount, sampleSpacing)
		if err != nil {
			if errors.Is(err, ErrEmptyTrajectory) {
				s.log.Warn(ctx, "object omitted from trajectory set",
					logging.String("object", es.Name),
					logging.String("error", err.Error()),
				)
				s.metrics.ObjectOmitted(es.Name)
				continue
			}
			return nil, err
		}
		trs = append(trs, tr)
	}

	if len(trs) == 0 {
		return nil, fmt.Errorf("%d element sets: %w", len(sets), ErrEmptyRefresh)
	}
	return model.NewTrajectorySet(time.Now().UTC(), trs), nil
}

func (s *Sampler) skipEpoch(ctx context.Context, object string, ti time.Time, err error) {
	s.log.Warn(ctx, "sample epoch skipped",
		logging.String("object", object),
		logging.String("epoch", ti.UTC().Format(time.RFC3339)),
		logging.String("error", err.Error()),
	)
	s.metrics.EpochSkipped(object)
}
