package geo

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// BoundingRect returns the lat/lng rectangle spanned by the plain minimum and maximum of the
// coordinates. The longitude interval never wraps across the antimeridian, so an extract on both
// sides of ±180° spans almost the whole globe. An empty input gives the empty rectangle.
func BoundingRect(coords []Coordinate) s2.Rect {
	if len(coords) == 0 {
		return s2.EmptyRect()
	}

	minLat, minLon := math.Inf(1), math.Inf(1)
	maxLat, maxLon := math.Inf(-1), math.Inf(-1)
	for _, c := range coords {
		minLat, maxLat = math.Min(minLat, c.Lat), math.Max(maxLat, c.Lat)
		minLon, maxLon = math.Min(minLon, c.Lon), math.Max(maxLon, c.Lon)
	}

	// struct literals keep -180 as is; s1.IntervalFromEndpoints would turn it into +180.
	return s2.Rect{
		Lat: r1.Interval{Lo: radians(minLat), Hi: radians(maxLat)},
		Lng: s1.Interval{Lo: radians(minLon), Hi: radians(maxLon)},
	}
}

func radians(deg float64) float64 {
	return (s1.Angle(deg) * s1.Degree).Radians()
}

// RectCorners returns min lat, min lon, max lat, max lon in degrees. The empty rectangle maps to
// all zeros.
func RectCorners(rect s2.Rect) (float64, float64, float64, float64) {
	if rect.IsEmpty() {
		return 0, 0, 0, 0
	}
	lo, hi := rect.Lo(), rect.Hi()
	return lo.Lat.Degrees(), lo.Lng.Degrees(), hi.Lat.Degrees(), hi.Lng.Degrees()
}
