package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	austin  = Point{Lat: 30.2672, Lon: -97.7431}
	dallas  = Point{Lat: 32.7767, Lon: -96.7970}
	houston = Point{Lat: 29.7604, Lon: -95.3698}
)

func TestDistance(t *testing.T) {
	assert.Zero(t, Distance(austin, austin))
	assert.InDelta(t, 182, Distance(austin, dallas), 3)
	assert.InDelta(t, Distance(austin, dallas), Distance(dallas, austin), 1e-9)

	// Antipodal points are half the circumference apart.
	assert.InDelta(t, math.Pi*EarthRadiusMiles, Distance(Point{0, 0}, Point{0, 180}), 1e-6)
}

func TestWithin(t *testing.T) {
	assert.True(t, Within(austin, houston, 200))
	assert.False(t, Within(austin, houston, 100))
}

func TestBoundingBox_ContainsEveryPointInRadius(t *testing.T) {
	const radius = 200.0
	box := BoundingBox(austin, radius)
	for _, p := range []Point{dallas, houston} {
		if Within(austin, p, radius) {
			assert.True(t, box.Contains(p))
		}
	}
	assert.False(t, box.Contains(Point{Lat: 40.7128, Lon: -74.0060}))
}

// destination returns the point dist miles from p along bearing degrees.
func destination(p Point, bearing, dist float64) Point {
	d := dist / EarthRadiusMiles
	lat1, lon1, brg := radians(p.Lat), radians(p.Lon), radians(bearing)
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(math.Sin(brg)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))
	return Point{Lat: lat2 * 180 / math.Pi, Lon: lon2 * 180 / math.Pi}
}

func TestBoundingBox_ContainsCircleAtHighLatitude(t *testing.T) {
	tests := []struct {
		name   string
		center Point
		radius float64
	}{
		{"texas", austin, 200},
		{"sixty north", Point{Lat: 60, Lon: 0}, 1000},
		{"seventy north", Point{Lat: 70, Lon: 20}, 500},
		{"fifty south", Point{Lat: -50, Lon: -60}, 1500},
		{"mid latitude wide", Point{Lat: 45, Lon: -100}, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := BoundingBox(tt.center, tt.radius)
			for bearing := 0.0; bearing < 360; bearing += 2.5 {
				p := destination(tt.center, bearing, tt.radius*0.999)
				if !assert.True(t, box.Contains(p), "bearing %.1f point %+v box %+v", bearing, p, box) {
					return
				}
			}
		})
	}

	// A listing under 1000 miles from (60, 0) lies east of the old half-width.
	p := Point{Lat: 63.5, Lon: 29.5}
	center := Point{Lat: 60, Lon: 0}
	assert.Less(t, Distance(center, p), 1000.0)
	assert.True(t, BoundingBox(center, 1000).Contains(p))
}

func TestBoundingBox_Edges(t *testing.T) {
	polar := BoundingBox(Point{Lat: 89.9, Lon: 10}, 50)
	assert.Equal(t, 90.0, polar.MaxLat)
	assert.Equal(t, -180.0, polar.MinLon)
	assert.Equal(t, 180.0, polar.MaxLon)

	dateline := BoundingBox(Point{Lat: 0, Lon: 179.9}, 50)
	assert.Equal(t, -180.0, dateline.MinLon)
	assert.True(t, dateline.Contains(Point{Lat: 0, Lon: -179.9}))
}

func TestPoint_Valid(t *testing.T) {
	assert.True(t, austin.Valid())
	assert.False(t, Point{Lat: 91}.Valid())
	assert.False(t, Point{Lon: -181}.Valid())
}

func TestHaversineSQL(t *testing.T) {
	sql := HaversineSQL("l.latitude", "l.longitude", "$2", "$3")
	assert.Contains(t, sql, "3958.8")
	assert.Contains(t, sql, "radians(l.latitude - $2)")
	assert.Contains(t, sql, "radians(l.longitude - $3)")
	assert.Contains(t, sql, "least(1,")
}
