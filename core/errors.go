package core

import "errors"

// Sentinel errors for the trajectory pipeline. Every one of these is
// recoverable: callers degrade to skipping an epoch, omitting an object, or
// serving the last published set. None may abort the render path.
var (
	// ErrInvalidVector marks a propagation output that is not a finite
	// 3-vector. The affected epoch is skipped.
	ErrInvalidVector = errors.New("invalid position vector")

	// ErrEmptyTrajectory marks an object for which every sample epoch
	// failed. The object is omitted from the set being built.
	ErrEmptyTrajectory = errors.New("no valid epochs in trajectory")

	// ErrEmptyRefresh marks a refresh cycle that produced no trajectories
	// at all. The previously published set stays current.
	ErrEmptyRefresh = errors.New("refresh produced empty trajectory set")

	// ErrUpstreamUnavailable marks an element-set source failure. Treated
	// like ErrEmptyRefresh: last good data keeps serving, staleness is
	// flagged.
	ErrUpstreamUnavailable = errors.New("element-set source unavailable")
)
