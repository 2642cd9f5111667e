package model

// ElementSet holds the two-line mean-element encoding for one tracked
// object, keyed by its catalog name. The lines are passed opaquely to the
// propagation layer; this core performs no TLE parsing or validation.
//
// An ElementSet is immutable once received: a fresher set for the same name
// supersedes it wholesale during the next refresh cycle.
type ElementSet struct {
	Name  string
	Line1 string
	Line2 string
}
