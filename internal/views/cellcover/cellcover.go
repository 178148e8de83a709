// Package cellcover maps region conditions to the H3 cells they cover, for
// renderers that shade coverage instead of drawing outlines.
package cellcover

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
)

type Cover struct {
	log        *slog.Logger
	defaultRes int
	minRes     int
	maxRes     int
	memo       *lru.Cache[string, []string]
}

func New(log *slog.Logger, defaultRes, minRes, maxRes, cacheSize int) (*Cover, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	memo, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("cell memo: %w", err)
	}
	return &Cover{
		log:        log,
		defaultRes: defaultRes,
		minRes:     minRes,
		maxRes:     maxRes,
		memo:       memo,
	}, nil
}

// Resolve folds a requested resolution into the configured window; a
// negative request means "use the default".
func (c *Cover) Resolve(requested int) int {
	res := requested
	if res < 0 {
		res = c.defaultRes
	}
	if res < c.minRes {
		res = c.minRes
	}
	if res > c.maxRes {
		res = c.maxRes
	}
	return res
}

// CellsForConditions unions the covering cells of every region condition,
// deduplicated and sorted. Conditions without a usable geometry are skipped,
// so a sketch mid-edit never breaks the whole view.
func (c *Cover) CellsForConditions(conds []model.Condition, res int) ([]string, error) {
	seen := make(map[string]struct{})
	out := []string{}
	for _, cond := range conds {
		cells, err := c.cellsForCondition(cond, res)
		if err != nil {
			return nil, fmt.Errorf("condition %s: %w", cond.ID, err)
		}
		for _, cell := range cells {
			if _, ok := seen[cell]; ok {
				continue
			}
			seen[cell] = struct{}{}
			out = append(out, cell)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Condition geometry never changes under an ID, which is what makes the
// (id, res) memo key sound. Conditions without an ID bypass the memo.
func (c *Cover) cellsForCondition(cond model.Condition, res int) ([]string, error) {
	g, ok := cond.RegionGeometry()
	if !ok {
		return nil, nil
	}

	key := fmt.Sprintf("%s:%d", cond.ID, res)
	if cond.ID != "" {
		if cells, ok := c.memo.Get(key); ok {
			return cells, nil
		}
	}

	cells, err := polyfill(g.Geometry(), res)
	if err != nil {
		return nil, err
	}
	if cond.ID != "" {
		c.memo.Add(key, cells)
	}
	c.log.Debug("region cells computed", "condition_id", cond.ID, "res", res, "cells", len(cells))
	return cells, nil
}

func polyfill(g orb.Geometry, res int) ([]string, error) {
	switch geom := g.(type) {
	case orb.Polygon:
		return polyfillOne(geom, res)
	case orb.MultiPolygon:
		seen := make(map[string]struct{})
		var out []string
		for _, p := range geom {
			cells, err := polyfillOne(p, res)
			if err != nil {
				return nil, err
			}
			for _, cell := range cells {
				if _, ok := seen[cell]; !ok {
					seen[cell] = struct{}{}
					out = append(out, cell)
				}
			}
		}
		sort.Strings(out)
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}

// polyfillOne computes unique cells and returns them sorted for determinism.
// Degenerate rings cover nothing.
func polyfillOne(p orb.Polygon, res int) ([]string, error) {
	if len(p) == 0 {
		return nil, nil
	}
	outer := toLoop(p[0])
	if len(outer) < 3 {
		return nil, nil
	}
	var holes []h3.GeoLoop
	for i := 1; i < len(p); i++ {
		if h := toLoop(p[i]); len(h) >= 3 {
			holes = append(holes, h)
		}
	}

	indexes, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer, Holes: holes}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Convert an orb ring to an h3.GeoLoop (degrees). A ring closed with a
// duplicate trailing vertex loses that duplicate.
func toLoop(ring orb.Ring) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, pt := range ring {
		loop = append(loop, h3.LatLng{Lat: pt[1], Lng: pt[0]})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}
