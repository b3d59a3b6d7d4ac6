// Package geo holds coordinate math shared by the selector and the map views.
package geo

import (
	"math"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

// EarthRadiusKM is the mean Earth radius used by Distance.
const EarthRadiusKM = 6371

// DefaultCellPrecision is the geohash length used to tag stores (roughly 150m cells).
const DefaultCellPrecision = 7

// Point is a WGS 84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Seoul City Hall, used whenever no user location can be obtained.
var Default = Point{Lat: 37.5665, Lng: 126.9780}

// Distance returns the great-circle distance between a and b in kilometers.
func Distance(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*sinLng*sinLng
	return EarthRadiusKM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Cell returns the geohash of p truncated to precision characters.
// Out-of-range coordinates produce an empty cell.
func Cell(p Point, precision int) string {
	if !p.Valid() {
		return ""
	}
	gh := geohash.Encode(p.Lat, p.Lng)
	if precision > 0 && precision < len(gh) {
		gh = gh[:precision]
	}
	return gh
}

// Valid reports whether p lies within latitude/longitude bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
