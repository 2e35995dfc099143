package physics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	EarthRadiusM = 6371000.0 // Mean Earth radius (m), spherical model
	KnotsToMs    = 0.514444  // Conversion factor from Knots to m/s
	MsToKnots    = 1.94384   // Conversion factor from m/s to Knots (3600/1852)
	MetersPerNM  = 1852.0    // Meters per nautical mile
)

// ErrInvalidCoordinate is returned for out-of-range latitudes or longitudes.
// Coordinates are rejected, never silently clamped.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ValidateCoordinate checks that a latitude/longitude pair is in range
func ValidateCoordinate(lat, lon float64) error {
	if lat < -90 || lat > 90 || math.IsNaN(lat) {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidCoordinate, lat)
	}
	if lon < -180 || lon > 180 || math.IsNaN(lon) {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidCoordinate, lon)
	}
	return nil
}

// NormalizeLongitude wraps a longitude into [-180, 180), keeping date-line
// crossings continuous
func NormalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Haversine returns the great-circle distance in meters between two points
func Haversine(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if err := ValidateCoordinate(lat1, lon1); err != nil {
		return 0, err
	}
	if err := ValidateCoordinate(lat2, lon2); err != nil {
		return 0, err
	}

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c, nil
}

// Bearing returns the initial great-circle bearing in degrees (0-360)
// from the first point toward the second
func Bearing(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if err := ValidateCoordinate(lat1, lon1); err != nil {
		return 0, err
	}
	if err := ValidateCoordinate(lat2, lon2); err != nil {
		return 0, err
	}

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(deltaLon) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	if bearing < 0 {
		bearing += 360
	}
	return bearing, nil
}

// DestinationPoint returns the point reached by traveling distanceM meters
// from the given point along the given initial bearing. Used for projecting
// onto great-circle route segments; planar interpolation would break near
// the date line.
func DestinationPoint(lat, lon, bearingDeg, distanceM float64) (float64, float64, error) {
	if err := ValidateCoordinate(lat, lon); err != nil {
		return 0, 0, err
	}

	latRad := lat * math.Pi / 180
	lonRad := lon * math.Pi / 180
	bearingRad := bearingDeg * math.Pi / 180
	angular := distanceM / EarthRadiusM

	destLat := math.Asin(math.Sin(latRad)*math.Cos(angular) +
		math.Cos(latRad)*math.Sin(angular)*math.Cos(bearingRad))
	destLon := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angular)*math.Cos(latRad),
		math.Cos(angular)-math.Sin(latRad)*math.Sin(destLat))

	return destLat * 180 / math.Pi, NormalizeLongitude(destLon * 180 / math.Pi), nil
}

// CrossTrackDistance returns the distance in meters from a point to the
// great circle through segment start/end, plus the along-track distance
// from the segment start to the point's projection
func CrossTrackDistance(lat, lon, startLat, startLon, endLat, endLon float64) (cross, along float64, err error) {
	d13, err := Haversine(startLat, startLon, lat, lon)
	if err != nil {
		return 0, 0, err
	}
	b13, err := Bearing(startLat, startLon, lat, lon)
	if err != nil {
		return 0, 0, err
	}
	b12, err := Bearing(startLat, startLon, endLat, endLon)
	if err != nil {
		return 0, 0, err
	}

	angular13 := d13 / EarthRadiusM
	deltaB := (b13 - b12) * math.Pi / 180

	crossAngular := math.Asin(math.Sin(angular13) * math.Sin(deltaB))
	cross = math.Abs(crossAngular * EarthRadiusM)

	alongAngular := math.Acos(clampUnit(math.Cos(angular13) / math.Cos(crossAngular)))
	along = alongAngular * EarthRadiusM
	if math.Cos(deltaB) < 0 {
		along = -along
	}
	return cross, along, nil
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// MagneticVariation calculates the magnetic declination for a given position
// and time. Returns declination in degrees (+East, -West), 0 on model failure.
func MagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * 0.3048

	loc := egm96.NewLocationGeodetic(lat, lon, altM)
	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0.0
	}
	return mag.D()
}
