// Package model defines core domain types shared across the service.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

// ConditionType discriminates the two filter condition flavors.
type ConditionType string

const (
	ConditionRegion    ConditionType = "region"
	ConditionDateRange ConditionType = "daterange"
)

// Condition is one entry of a filter under edit. Region conditions carry a
// GeoJSON geometry, date-range conditions carry start/end. The ID is assigned
// at construction and never changes; selection and exclusion compare IDs.
type Condition struct {
	ID       string            `json:"id"`
	Type     ConditionType     `json:"type"`
	Geometry *geojson.Geometry `json:"geometry,omitempty"`
	Start    *time.Time        `json:"start,omitempty"`
	End      *time.Time        `json:"end,omitempty"`
}

func NewRegionCondition(geom *geojson.Geometry) Condition {
	return Condition{ID: uuid.NewString(), Type: ConditionRegion, Geometry: geom}
}

func NewDateRangeCondition(start, end *time.Time) Condition {
	return Condition{ID: uuid.NewString(), Type: ConditionDateRange, Start: start, End: end}
}

// RegionGeometry returns the geometry when the condition is a region
// condition that actually carries one.
func (c Condition) RegionGeometry() (*geojson.Geometry, bool) {
	if c.Type != ConditionRegion || c.Geometry == nil {
		return nil, false
	}
	return c.Geometry, true
}

// Filter is the handle of the filter being edited. Its conditions live in
// the session, not here.
type Filter struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name"`
}

// WorkingSet mirrors the platform's workingSet resource.
type WorkingSet struct {
	ID                 string   `json:"_id,omitempty"`
	Name               string   `json:"name"`
	DatasetIDs         []string `json:"datasetIds"`
	FilterID           string   `json:"filterId,omitempty"`
	ParentWorkingSetID string   `json:"parentWorkingSetId,omitempty"`
}

// DatasetBound is one dataset's footprint polygon as the platform reports it.
type DatasetBound struct {
	ID     string            `json:"_id,omitempty"`
	Name   string            `json:"name"`
	Bounds *geojson.Geometry `json:"bounds,omitempty"`
}

// HeatmapPoint is the wire shape the density renderer consumes.
type HeatmapPoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name string  `json:"name"`
}
