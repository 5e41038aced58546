package geo

import "math"

// IsPointInRing runs an even-odd ray cast along the latitude of p.
// Vertices exactly on the scan line count only for the edge whose other end lies above it.
func IsPointInRing(p LatLng, ring Ring) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i].Lng(), ring[i].Lat()
		xj, yj := ring[j].Lng(), ring[j].Lat()
		if (yi > p.Lat) != (yj > p.Lat) &&
			p.Lng < (xj-xi)*(p.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// IsPointInPolygon reports whether p is inside the outer ring and outside every hole.
func IsPointInPolygon(p LatLng, poly Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	if !IsPointInRing(p, poly[0]) {
		return false
	}
	for _, hole := range poly[1:] {
		if IsPointInRing(p, hole) {
			return false
		}
	}
	return true
}

// BoundingBox is an axis-aligned lat/lng box. The zero value is not usable; start from NewBoundingBox.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// NewBoundingBox returns an empty box that admits nothing until extended.
func NewBoundingBox() BoundingBox {
	return BoundingBox{
		MinLat: math.Inf(1),
		MinLng: math.Inf(1),
		MaxLat: math.Inf(-1),
		MaxLng: math.Inf(-1),
	}
}

func (b *BoundingBox) Extend(p Position) {
	b.MinLat = math.Min(b.MinLat, p.Lat())
	b.MinLng = math.Min(b.MinLng, p.Lng())
	b.MaxLat = math.Max(b.MaxLat, p.Lat())
	b.MaxLng = math.Max(b.MaxLng, p.Lng())
}

// Valid is false until at least one position has been seen.
func (b BoundingBox) Valid() bool {
	return !math.IsInf(b.MinLat, 0) && !math.IsNaN(b.MinLat)
}

func (b BoundingBox) Contains(p LatLng) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// IsPointInPlayableArea admits p when it lies inside a valid bbox and outside every exclusion polygon.
func IsPointInPlayableArea(p LatLng, bbox *BoundingBox, exclusions []Polygon) bool {
	if bbox == nil || !bbox.Valid() {
		return false
	}
	if !bbox.Contains(p) {
		return false
	}
	for _, poly := range exclusions {
		if IsPointInPolygon(p, poly) {
			return false
		}
	}
	return true
}
