package dataset

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/susu3304/ruesquiz/internal/geo"
)

// StreetRecord groups every geometry published under one normalized street name.
type StreetRecord struct {
	Name       string
	Geometries []geo.Geometry
}

// Streets is the in-memory street index the daily target is chosen from.
type Streets struct {
	IndexByName map[string]*StreetRecord
	// Names is sorted; the daily selection depends on index positions.
	Names []string
	BBox  geo.BoundingBox
}

// NormalizeName is the key used for street lookups.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// BuildStreets indexes named features. Features without a usable name are dropped.
func BuildStreets(fc *geo.FeatureCollection) *Streets {
	streets := &Streets{
		IndexByName: make(map[string]*StreetRecord),
		BBox:        geo.NewBoundingBox(),
	}
	if fc == nil {
		return streets
	}

	for _, feature := range fc.Features {
		rawName := feature.StringProperty("name")
		if strings.TrimSpace(rawName) == "" {
			continue
		}
		key := NormalizeName(rawName)
		record, ok := streets.IndexByName[key]
		if !ok {
			record = &StreetRecord{Name: strings.TrimSpace(rawName)}
			streets.IndexByName[key] = record
		}
		if feature.Geometry == nil {
			continue
		}
		record.Geometries = append(record.Geometries, feature.Geometry)
		geo.EachPosition(feature.Geometry, streets.BBox.Extend)
	}

	streets.Names = lo.Keys(streets.IndexByName)
	sort.Strings(streets.Names)
	return streets
}

// Lookup returns the record for a name in any casing or padding.
func (s *Streets) Lookup(name string) (*StreetRecord, bool) {
	record, ok := s.IndexByName[NormalizeName(name)]
	return record, ok
}

// BuildExclusions flattens every polygon of every feature, in feature order.
func BuildExclusions(fc *geo.FeatureCollection) []geo.Polygon {
	if fc == nil {
		return nil
	}
	return lo.FlatMap(fc.Features, func(f geo.Feature, _ int) []geo.Polygon {
		return geo.ExtractPolygons(f.Geometry)
	})
}
