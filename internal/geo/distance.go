package geo

import (
	"math"
)

const (
	// Meters per degree used by the local equirectangular approximation.
	metersPerDegreeLng = 111320.0
	metersPerDegreeLat = 110540.0
)

// ToPlanarMeters projects a coordinate onto a local plane centered on refLat.
// Good enough at city scale; distances are only comparable when computed around the same refLat.
func ToPlanarMeters(lat, lng, refLat float64) (x, y float64) {
	x = lng * metersPerDegreeLng * math.Cos(refLat*math.Pi/180.0)
	y = lat * metersPerDegreeLat
	return x, y
}

// PointToSegmentDistance returns the distance in meters from p to the closest point of segment [a, b].
// The projection is always centered on the latitude of p.
func PointToSegmentDistance(p LatLng, a, b Position) float64 {
	refLat := p.Lat
	px, py := ToPlanarMeters(p.Lat, p.Lng, refLat)
	ax, ay := ToPlanarMeters(a.Lat(), a.Lng(), refLat)
	bx, by := ToPlanarMeters(b.Lat(), b.Lng(), refLat)

	abx, aby := bx-ax, by-ay
	apx, apy := px-ax, py-ay
	abLen2 := abx*abx + aby*aby

	t := 0.0
	if abLen2 != 0 {
		t = math.Max(0, math.Min(1, (apx*abx+apy*aby)/abLen2))
	}
	closestX := ax + abx*t
	closestY := ay + aby*t
	return math.Hypot(px-closestX, py-closestY)
}

// DistanceToLine returns the minimum distance from p to any segment of coords,
// or +Inf when coords has fewer than two positions.
func DistanceToLine(p LatLng, coords []Position) float64 {
	if len(coords) < 2 {
		return math.Inf(1)
	}
	min := math.Inf(1)
	for i := 0; i < len(coords)-1; i++ {
		if d := PointToSegmentDistance(p, coords[i], coords[i+1]); d < min {
			min = d
		}
	}
	return min
}

// DistanceToGeometry returns the minimum distance in meters from p to the lines of g.
// Polygons are measured to their rings (outer and holes), not their interior.
// Kinds without a line representation yield +Inf.
func DistanceToGeometry(p LatLng, g Geometry) float64 {
	switch g := g.(type) {
	case LineString:
		return DistanceToLine(p, g)
	case MultiLineString:
		min := math.Inf(1)
		for _, line := range g {
			min = math.Min(min, DistanceToLine(p, line))
		}
		return min
	case Polygon:
		min := math.Inf(1)
		for _, ring := range g {
			min = math.Min(min, DistanceToLine(p, ring))
		}
		return min
	case MultiPolygon:
		min := math.Inf(1)
		for _, poly := range g {
			min = math.Min(min, DistanceToGeometry(p, poly))
		}
		return min
	case GeometryCollection:
		min := math.Inf(1)
		for _, child := range g {
			min = math.Min(min, DistanceToGeometry(p, child))
		}
		return min
	case nil, Point, MultiPoint, Unsupported:
		return math.Inf(1)
	}
	return math.Inf(1)
}

// MinDistance reduces DistanceToGeometry over several geometries.
func MinDistance(p LatLng, geometries []Geometry) float64 {
	min := math.Inf(1)
	for _, g := range geometries {
		min = math.Min(min, DistanceToGeometry(p, g))
	}
	return min
}
