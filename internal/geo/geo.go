// Package geo holds the small amount of coordinate math the engines need.
package geo

import (
	"math"

	"drtnav/internal/model"
)

// Euclid returns the straight-line distance between two points in
// coordinate-degree space. The cost model scores candidates with this cheap
// planar distance, not a geodesic one.
func Euclid(a, b model.GeoPoint) float64 {
	dx := a.Lng - b.Lng
	dy := a.Lat - b.Lat
	return math.Sqrt(dx*dx + dy*dy)
}

// HaversineKm returns the great-circle distance in kilometers, used for
// display estimates when no road geometry is available.
func HaversineKm(a, b model.GeoPoint) float64 {
	const r = 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return r * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PathKm sums HaversineKm over consecutive waypoints.
func PathKm(points []model.GeoPoint) float64 {
	total := 0.0
	for i := 0; i+1 < len(points); i++ {
		total += HaversineKm(points[i], points[i+1])
	}
	return total
}

// BBox is an axis-aligned bounding box over coordinates.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	ok             bool
}

// Extend grows the box to include p.
func (b *BBox) Extend(p model.GeoPoint) {
	if !b.ok {
		b.MinLat, b.MaxLat = p.Lat, p.Lat
		b.MinLng, b.MaxLng = p.Lng, p.Lng
		b.ok = true
		return
	}
	b.MinLat = math.Min(b.MinLat, p.Lat)
	b.MaxLat = math.Max(b.MaxLat, p.Lat)
	b.MinLng = math.Min(b.MinLng, p.Lng)
	b.MaxLng = math.Max(b.MaxLng, p.Lng)
}

// Empty reports whether no point was ever added.
func (b *BBox) Empty() bool { return !b.ok }

// Contains reports whether p falls inside the box (inclusive).
func (b *BBox) Contains(p model.GeoPoint) bool {
	if !b.ok {
		return false
	}
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}
