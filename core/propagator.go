package core

import (
	"fmt"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/globe-tracker/model"
)

// Propagator computes an object's inertial-frame position (kilometres) at
// a given time from its element set. Implementations are assumed
// numerically correct but may fail per call; callers must tolerate that by
// skipping the affected sample.
type Propagator interface {
	Propagate(es model.ElementSet, t time.Time) (Vec3, error)
}

// SGP4Propagator adapts go-satellite's SGP4 implementation to the
// Propagator interface. Initialized satellite records are cached per
// element-line pair so repeated sampling of the same set amortizes the
// TLE initialization cost. Safe for concurrent use.
type SGP4Propagator struct {
	mu   sync.Mutex
	sats map[string]satellite.Satellite
}

// NewSGP4Propagator constructs an empty propagator cache.
func NewSGP4Propagator() *SGP4Propagator {
	return &SGP4Propagator{sats: make(map[string]satellite.Satellite)}
}

// Propagate returns the ECI position of the object at time t.
// SGP4 reports decayed or divergent states through NaN components rather
// than errors, so the output is gated on finiteness and a plausible
// orbital radius before being returned.
func (p *SGP4Propagator) Propagate(es model.ElementSet, t time.Time) (Vec3, error) {
	sat, err := p.cachedSat(es)
	if err != nil {
		return Vec3{}, err
	}

	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	pos, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)

	v := Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}
	if !v.IsFinite() || v.Norm() < EarthRadiusKm {
		return Vec3{}, fmt.Errorf("propagate %q at %s: %w", es.Name, t.Format(time.RFC3339), ErrInvalidVector)
	}
	return v, nil
}

// cachedSat returns the initialized satellite record for the element set,
// building and memoizing it on first use. The cache key is the raw line
// pair, so a superseding element set for the same name initializes fresh.
func (p *SGP4Propagator) cachedSat(es model.ElementSet) (satellite.Satellite, error) {
	key := es.Line1 + "\n" + es.Line2

	p.mu.Lock()
	defer p.mu.Unlock()

	if sat, ok := p.sats[key]; ok {
		return sat, nil
	}

	sat, err := initSat(es)
	if err != nil {
		return satellite.Satellite{}, err
	}
	p.sats[key] = sat
	return sat, nil
}

// initSat wraps TLEToSat, converting its panics on malformed lines into an
// error. Element validation happens upstream of this core, but a corrupt
// record must degrade to an omitted object, not a crash.
func initSat(es model.ElementSet) (sat satellite.Satellite, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("initialize sgp4 for %q: malformed element lines: %v", es.Name, r)
		}
	}()
	sat = satellite.TLEToSat(es.Line1, es.Line2, satellite.GravityWGS72)
	return sat, nil
}
