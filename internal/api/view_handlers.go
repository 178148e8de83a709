package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shiroinekotfs/DanesfieldApp/internal/views"
)

func (h *Handler) viewEditingConditions(w http.ResponseWriter, r *http.Request) {
	snap := h.sess.Snapshot()
	fc := views.EditingConditions(snap.Conditions, snap.Selected)
	if fc == nil {
		absent(w, "editing_conditions")
		return
	}
	h.writeView(w, r, "editing_conditions", fc)
}

func (h *Handler) viewSelectedCondition(w http.ResponseWriter, r *http.Request) {
	snap := h.sess.Snapshot()
	g := views.SelectedGeometry(snap.Selected)
	if g == nil {
		absent(w, "selected_condition")
		return
	}
	h.writeView(w, r, "selected_condition", g)
}

func (h *Handler) viewHeatmap(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, "heatmap", views.Heatmap(h.repo.Bounds()))
}

type regionCellsResponse struct {
	Res   int      `json:"res"`
	Cells []string `json:"cells"`
}

func (h *Handler) viewRegionCells(w http.ResponseWriter, r *http.Request) {
	requested := -1
	if raw := strings.TrimSpace(r.URL.Query().Get("res")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid res: integer expected", http.StatusBadRequest)
			return
		}
		requested = n
	}
	res := h.cover.Resolve(requested)

	snap := h.sess.Snapshot()
	cells, err := h.cover.CellsForConditions(snap.Conditions, res)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeView(w, r, "region_cells", regionCellsResponse{Res: res, Cells: cells})
}
