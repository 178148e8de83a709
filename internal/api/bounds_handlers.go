package api

import (
	"net/http"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
)

type loadResponse struct {
	Applied  bool `json:"applied"`
	Datasets int  `json:"datasets"`
}

// loadBounds runs a synchronous load. applied=false with a 200 means a
// fresher load finished first and this response was discarded.
func (h *Handler) loadBounds(w http.ResponseWriter, r *http.Request) {
	applied, err := h.repo.Load(r.Context())
	if err != nil {
		h.log.Error("bounds load", "err", err)
		http.Error(w, "dataset bounds load failed", http.StatusBadGateway)
		return
	}
	_, n := h.repo.Readiness()
	h.writeJSON(w, http.StatusOK, loadResponse{Applied: applied, Datasets: n})
}

func (h *Handler) getBounds(w http.ResponseWriter, r *http.Request) {
	data := h.repo.Bounds()
	if data == nil {
		data = []model.DatasetBound{}
	}
	h.writeJSON(w, http.StatusOK, data)
}
