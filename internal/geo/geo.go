// Package geo implements great-circle distance in miles and the helpers the
// search backends use to filter and sort by it.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMiles is the mean Earth radius.
const EarthRadiusMiles = 3958.8

type Point struct {
	Lat float64
	Lon float64
}

func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Distance returns the haversine distance between a and b in miles.
func Distance(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h slightly past 1 for antipodal points.
	h = math.Min(1, h)
	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

// Within reports whether p lies within radius miles of center.
func Within(center, p Point, radius float64) bool {
	return Distance(center, p) <= radius
}

// Box is a lat/lon rectangle that contains every point within some radius
// of a center. It is a cheap prefilter, not an exact test.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBox returns the box around center for radius miles. Near the poles
// or across the antimeridian the longitude span widens to the full range.
func BoundingBox(center Point, radius float64) Box {
	dLat := radius / EarthRadiusMiles * 180 / math.Pi
	b := Box{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
		MinLon: -180,
		MaxLon: 180,
	}
	if b.MinLat == -90 || b.MaxLat == 90 {
		return b
	}

	// The widest longitude on the circle is where a meridian is tangent to
	// it: sin(dLon) = sin(r) / cos(lat).
	s := math.Sin(radius/EarthRadiusMiles) / math.Cos(radians(center.Lat))
	if s >= 1 {
		return b
	}
	dLon := math.Asin(s) * 180 / math.Pi
	minLon, maxLon := center.Lon-dLon, center.Lon+dLon
	if minLon < -180 || maxLon > 180 {
		return b
	}
	b.MinLon, b.MaxLon = minLon, maxLon
	return b
}

func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// HaversineSQL renders the haversine distance in miles between the columns
// latCol/lonCol and the bound parameters latParam/lonParam as a Postgres
// expression. The asin argument is clamped like Distance.
func HaversineSQL(latCol, lonCol, latParam, lonParam string) string {
	return fmt.Sprintf(
		"(2 * %v * asin(least(1, sqrt("+
			"power(sin(radians(%s - %s) / 2), 2) + "+
			"cos(radians(%s)) * cos(radians(%s)) * power(sin(radians(%s - %s) / 2), 2)))))",
		EarthRadiusMiles,
		latCol, latParam,
		latParam, latCol,
		lonCol, lonParam,
	)
}
