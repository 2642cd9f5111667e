package model

import (
	"sort"
	"time"
)

// RenderCoordinate is a Cartesian position in the render frame, in metres.
type RenderCoordinate struct {
	X float64
	Y float64
	Z float64
}

// Lerp returns the point a fraction f of the way from c to other.
// f=0 yields c, f=1 yields other; f is not clamped.
func (c RenderCoordinate) Lerp(other RenderCoordinate, f float64) RenderCoordinate {
	return RenderCoordinate{
		X: c.X + (other.X-c.X)*f,
		Y: c.Y + (other.Y-c.Y)*f,
		Z: c.Z + (other.Z-c.Z)*f,
	}
}

// SampleEpoch is one precomputed (time, position) pair within a trajectory.
type SampleEpoch struct {
	Time     time.Time
	Position RenderCoordinate
}

// Trajectory is an ordered, non-empty sequence of sample epochs for one
// object, spanning a contiguous window [t0, tN]. Epoch times are strictly
// increasing; the sampler guarantees this at construction and nothing
// mutates a trajectory afterwards.
type Trajectory struct {
	Name   string
	Epochs []SampleEpoch
}

// Window returns the first and last epoch times of the trajectory.
func (tr *Trajectory) Window() (start, end time.Time) {
	return tr.Epochs[0].Time, tr.Epochs[len(tr.Epochs)-1].Time
}

// PositionAt returns the trajectory position at time t by piecewise-linear
// interpolation between the two bracketing epochs. Queries before the first
// epoch or after the last clamp to the nearest boundary epoch's position;
// the render path relies on this never extrapolating.
func (tr *Trajectory) PositionAt(t time.Time) RenderCoordinate {
	epochs := tr.Epochs
	n := len(epochs)

	if !t.After(epochs[0].Time) {
		return epochs[0].Position
	}
	if !t.Before(epochs[n-1].Time) {
		return epochs[n-1].Position
	}

	// Index of the first epoch at or after t. The clamp checks above
	// guarantee 1 <= i <= n-1.
	i := sort.Search(n, func(i int) bool {
		return !epochs[i].Time.Before(t)
	})
	if epochs[i].Time.Equal(t) {
		return epochs[i].Position
	}

	lo, hi := epochs[i-1], epochs[i]
	span := hi.Time.Sub(lo.Time)
	f := float64(t.Sub(lo.Time)) / float64(span)
	return lo.Position.Lerp(hi.Position, f)
}

// TrajectorySet is one complete, internally consistent snapshot of the sky:
// a mapping from object name to trajectory. Sets are immutable after
// construction and replaced wholesale, never mutated, so readers may hold a
// set across many frames without synchronization.
type TrajectorySet struct {
	BuiltAt time.Time

	trajectories map[string]*Trajectory
}

// NewTrajectorySet builds a snapshot from the given trajectories, keyed by
// trajectory name. Later duplicates of a name win.
func NewTrajectorySet(builtAt time.Time, trs []*Trajectory) *TrajectorySet {
	m := make(map[string]*Trajectory, len(trs))
	for _, tr := range trs {
		m[tr.Name] = tr
	}
	return &TrajectorySet{BuiltAt: builtAt, trajectories: m}
}

// Get returns the trajectory for the given object name, if present.
func (s *TrajectorySet) Get(name string) (*Trajectory, bool) {
	tr, ok := s.trajectories[name]
	return tr, ok
}

// Names returns the object names in the set, sorted for stable iteration.
func (s *TrajectorySet) Names() []string {
	names := make([]string, 0, len(s.trajectories))
	for name := range s.trajectories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of objects in the set.
func (s *TrajectorySet) Len() int {
	return len(s.trajectories)
}
