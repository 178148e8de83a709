// Package views derives the renderer-facing projections from session and
// bounds state. Every function here is a pure projection of its arguments:
// no I/O, no retained state, recomputed per call.
package views

import (
	"github.com/paulmach/orb/geojson"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/geo"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
)

// EditingConditions projects the region conditions of the filter under edit
// into the renderer's collection, skipping the selected condition (the edit
// layer draws that one). A nil condition list means the view is absent; an
// empty list is an empty, present collection.
func EditingConditions(conds []model.Condition, selected *model.Condition) *geo.FeatureCollection {
	if conds == nil {
		return nil
	}
	out := geo.NewFeatureCollection(len(conds))
	for _, c := range conds {
		g, ok := c.RegionGeometry()
		if !ok {
			continue
		}
		if selected != nil && selected.ID == c.ID {
			continue
		}
		out.Features = append(out.Features, g)
	}
	return out
}

// SelectedGeometry is the geometry of the selected condition when it is a
// region condition carrying one; otherwise absent.
func SelectedGeometry(selected *model.Condition) *geojson.Geometry {
	if selected == nil {
		return nil
	}
	g, ok := selected.RegionGeometry()
	if !ok {
		return nil
	}
	return g
}

// Heatmap maps every dataset footprint to its bounding-box center point.
// Datasets whose footprint has no usable outer ring still contribute a
// point; its coordinates come out NaN and the caller decides what a
// non-encodable payload means.
func Heatmap(data []model.DatasetBound) []model.HeatmapPoint {
	out := make([]model.HeatmapPoint, 0, len(data))
	for _, d := range data {
		ring := geo.OuterRing(d.Bounds)
		x, y := geo.RingExtent(ring).Center()
		out = append(out, model.HeatmapPoint{X: x, Y: y, Name: d.Name})
	}
	return out
}
