package core

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/globe-tracker/model"
)

// WGS84 ellipsoid semi-axes in kilometres, matching the geodetic model the
// propagation library uses for its ECI-to-geodetic conversion.
const (
	wgs84SemiMajorKm = 6378.137
	wgs84SemiMinorKm = 6356.7523142
)

const kmToM = 1000.0

// ToRenderFrame converts an inertial-frame position (kilometres) at the
// given instant to the render frame's Cartesian representation (metres).
// The timestamp resolves Earth rotation at that instant: the position is
// first taken to geodetic longitude/latitude/height, then re-projected
// onto Earth-fixed Cartesian axes. The kilometre-to-metre conversion is
// part of the contract; the renderer's base length unit is the metre.
//
// Fails with ErrInvalidVector when the input is not a finite 3-vector
// (the usual aftermath of a failed propagation). Callers treat that as
// "no sample for this instant", never as fatal.
func ToRenderFrame(eci Vec3, t time.Time) (model.RenderCoordinate, error) {
	if !eci.IsFinite() {
		return model.RenderCoordinate{}, fmt.Errorf("position (%g, %g, %g): %w", eci.X, eci.Y, eci.Z, ErrInvalidVector)
	}

	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)

	altKm, _, lla := satellite.ECIToLLA(satellite.Vector3{X: eci.X, Y: eci.Y, Z: eci.Z}, gmst)
	return geodeticToRender(lla.Latitude, lla.Longitude, altKm), nil
}

// geodeticToRender projects geodetic latitude/longitude (radians) and
// height above the ellipsoid (kilometres) onto Earth-fixed Cartesian
// metres.
func geodeticToRender(lat, lon, altKm float64) model.RenderCoordinate {
	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	e2 := 1 - (wgs84SemiMinorKm*wgs84SemiMinorKm)/(wgs84SemiMajorKm*wgs84SemiMajorKm)
	n := wgs84SemiMajorKm / math.Sqrt(1-e2*sinLat*sinLat)

	return model.RenderCoordinate{
		X: (n + altKm) * cosLat * math.Cos(lon) * kmToM,
		Y: (n + altKm) * cosLat * math.Sin(lon) * kmToM,
		Z: (n*(1-e2) + altKm) * sinLat * kmToM,
	}
}
