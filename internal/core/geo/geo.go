// Package geo holds the wire-level GeoJSON shapes and the bounding-box
// arithmetic the derived views are built on.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection is the exact shape the map renderer consumes: the
// features array holds bare geometry objects, not Feature wrappers. The
// renderer reads coordinates straight off each entry, so the shape is
// load-bearing.
type FeatureCollection struct {
	Type     string              `json:"type"`
	Features []*geojson.Geometry `json:"features"`
}

// NewFeatureCollection returns an empty collection that marshals with a
// present, empty features array.
func NewFeatureCollection(capacity int) *FeatureCollection {
	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]*geojson.Geometry, 0, capacity),
	}
}

// OuterRing extracts the outer ring of a polygon geometry. MultiPolygons
// contribute their first polygon. Anything else yields nil.
func OuterRing(g *geojson.Geometry) orb.Ring {
	if g == nil {
		return nil
	}
	switch geom := g.Geometry().(type) {
	case orb.Polygon:
		if len(geom) == 0 {
			return nil
		}
		return geom[0]
	case orb.MultiPolygon:
		if len(geom) == 0 || len(geom[0]) == 0 {
			return nil
		}
		return geom[0][0]
	default:
		return nil
	}
}

// Extent is an axis-aligned bounding box accumulated over ring vertices.
type Extent struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// RingExtent scans the ring once. Seeds are +/-Inf, so an empty ring comes
// back with inverted infinite bounds and Center yields NaN for it.
func RingExtent(ring orb.Ring) Extent {
	ext := Extent{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, p := range ring {
		if p[0] < ext.MinX {
			ext.MinX = p[0]
		}
		if p[0] > ext.MaxX {
			ext.MaxX = p[0]
		}
		if p[1] < ext.MinY {
			ext.MinY = p[1]
		}
		if p[1] > ext.MaxY {
			ext.MaxY = p[1]
		}
	}
	return ext
}

// Center returns the bounding-box midpoint.
func (e Extent) Center() (x, y float64) {
	return (e.MinX + e.MaxX) / 2, (e.MinY + e.MaxY) / 2
}
