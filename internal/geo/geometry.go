package geo

import (
	"encoding/json"
	"fmt"
)

// LatLng is a clicked location in WGS84 degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Position is a GeoJSON position: [lng, lat]. A third (altitude) member is dropped on decode,
// and list members without two leading numbers are skipped.
type Position [2]float64

func (p Position) Lng() float64 { return p[0] }
func (p Position) Lat() float64 { return p[1] }

// Ring is a closed sequence of positions (outer boundary or hole).
type Ring []Position

// Geometry is the closed set of GeoJSON geometry kinds the quiz understands.
// Only types declared in this file implement it.
type Geometry interface {
	Type() string
	isGeometry()
}

type (
	Point              Position
	MultiPoint         []Position
	LineString         []Position
	MultiLineString    []LineString
	Polygon            []Ring
	MultiPolygon       []Polygon
	GeometryCollection []Geometry
)

// Unsupported keeps the type tag of a geometry kind we don't score against.
type Unsupported struct {
	Kind string
}

func (Point) Type() string              { return "Point" }
func (MultiPoint) Type() string         { return "MultiPoint" }
func (LineString) Type() string         { return "LineString" }
func (MultiLineString) Type() string    { return "MultiLineString" }
func (Polygon) Type() string            { return "Polygon" }
func (MultiPolygon) Type() string       { return "MultiPolygon" }
func (GeometryCollection) Type() string { return "GeometryCollection" }
func (u Unsupported) Type() string      { return u.Kind }

func (Point) isGeometry()              {}
func (MultiPoint) isGeometry()         {}
func (LineString) isGeometry()         {}
func (MultiLineString) isGeometry()    {}
func (Polygon) isGeometry()            {}
func (MultiPolygon) isGeometry()       {}
func (GeometryCollection) isGeometry() {}
func (Unsupported) isGeometry()        {}

type rawGeometry struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Geometries  []json.RawMessage `json:"geometries"`
}

// DecodeGeometry parses a GeoJSON geometry object. A JSON null yields a nil Geometry.
func DecodeGeometry(data []byte) (Geometry, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raw rawGeometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}

	switch raw.Type {
	case "Point":
		if len(raw.Coordinates) == 0 || string(raw.Coordinates) == "null" {
			return nil, nil
		}
		pos, ok := parsePosition(raw.Coordinates)
		if !ok {
			return nil, nil
		}
		return Point(pos), nil
	case "MultiPoint":
		var g MultiPoint
		if err := decodeCoordinates(raw, &g); err != nil {
			return nil, err
		}
		return g, nil
	case "LineString":
		var g LineString
		if err := decodeCoordinates(raw, &g); err != nil {
			return nil, err
		}
		return g, nil
	case "MultiLineString":
		var g MultiLineString
		if err := decodeCoordinates(raw, &g); err != nil {
			return nil, err
		}
		return g, nil
	case "Polygon":
		var g Polygon
		if err := decodeCoordinates(raw, &g); err != nil {
			return nil, err
		}
		return g, nil
	case "MultiPolygon":
		var g MultiPolygon
		if err := decodeCoordinates(raw, &g); err != nil {
			return nil, err
		}
		return g, nil
	case "GeometryCollection":
		g := make(GeometryCollection, 0, len(raw.Geometries))
		for _, item := range raw.Geometries {
			child, err := DecodeGeometry(item)
			if err != nil {
				return nil, err
			}
			if child != nil {
				g = append(g, child)
			}
		}
		return g, nil
	default:
		return Unsupported{Kind: raw.Type}, nil
	}
}

func decodeCoordinates(raw rawGeometry, dst any) error {
	if len(raw.Coordinates) == 0 || string(raw.Coordinates) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw.Coordinates, dst); err != nil {
		return fmt.Errorf("decode %s coordinates: %w", raw.Type, err)
	}
	return nil
}

// parsePosition accepts an array whose first two members are numbers. Extra members are dropped.
func parsePosition(data []byte) (Position, bool) {
	var members []any
	if err := json.Unmarshal(data, &members); err != nil || len(members) < 2 {
		return Position{}, false
	}
	lng, okLng := members[0].(float64)
	lat, okLat := members[1].(float64)
	if !okLng || !okLat {
		return Position{}, false
	}
	return Position{lng, lat}, true
}

// decodePositions decodes a position list, skipping members that are not valid positions.
func decodePositions(data []byte) ([]Position, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, nil
	}
	out := make([]Position, 0, len(items))
	for _, item := range items {
		if pos, ok := parsePosition(item); ok {
			out = append(out, pos)
		}
	}
	return out, nil
}

func (g *MultiPoint) UnmarshalJSON(data []byte) error {
	positions, err := decodePositions(data)
	*g = positions
	return err
}

func (g *LineString) UnmarshalJSON(data []byte) error {
	positions, err := decodePositions(data)
	*g = positions
	return err
}

func (r *Ring) UnmarshalJSON(data []byte) error {
	positions, err := decodePositions(data)
	*r = positions
	return err
}

// Feature is a GeoJSON feature with its geometry decoded into the sum type.
type Feature struct {
	Properties map[string]any
	Geometry   Geometry
}

func (f *Feature) UnmarshalJSON(data []byte) error {
	var raw struct {
		Properties map[string]any  `json:"properties"`
		Geometry   json.RawMessage `json:"geometry"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g, err := DecodeGeometry(raw.Geometry)
	if err != nil {
		return err
	}
	f.Properties = raw.Properties
	f.Geometry = g
	return nil
}

// StringProperty returns a string property, or "" when missing or not a string.
func (f Feature) StringProperty(key string) string {
	v, ok := f.Properties[key].(string)
	if !ok {
		return ""
	}
	return v
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// EachPosition calls fn for every position of g, descending into collections.
func EachPosition(g Geometry, fn func(Position)) {
	switch g := g.(type) {
	case nil:
	case Point:
		fn(Position(g))
	case MultiPoint:
		for _, p := range g {
			fn(p)
		}
	case LineString:
		for _, p := range g {
			fn(p)
		}
	case MultiLineString:
		for _, line := range g {
			EachPosition(line, fn)
		}
	case Polygon:
		for _, ring := range g {
			for _, p := range ring {
				fn(p)
			}
		}
	case MultiPolygon:
		for _, poly := range g {
			EachPosition(poly, fn)
		}
	case GeometryCollection:
		for _, child := range g {
			EachPosition(child, fn)
		}
	case Unsupported:
	}
}

// ExtractPolygons returns every polygon contained in g.
func ExtractPolygons(g Geometry) []Polygon {
	switch g := g.(type) {
	case Polygon:
		return []Polygon{g}
	case MultiPolygon:
		return []Polygon(g)
	case GeometryCollection:
		var out []Polygon
		for _, child := range g {
			out = append(out, ExtractPolygons(child)...)
		}
		return out
	case nil, Point, MultiPoint, LineString, MultiLineString, Unsupported:
		return nil
	}
	return nil
}
