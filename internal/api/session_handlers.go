package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
	"github.com/shiroinekotfs/DanesfieldApp/internal/session"
)

type sessionResponse struct {
	session.Snapshot
	WorkingSet *model.WorkingSet `json:"workingSet"`
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, sessionResponse{
		Snapshot:   h.sess.Snapshot(),
		WorkingSet: h.ws.Editing(),
	})
}

// resetSession returns the whole workspace to idle, the working set slot
// included.
func (h *Handler) resetSession(w http.ResponseWriter, r *http.Request) {
	h.sess.Reset()
	h.ws.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putFilter(w http.ResponseWriter, r *http.Request) {
	var f *model.Filter
	if err := decode(r, &f); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.sess.SetEditingFilter(f)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putSelectedCondition(w http.ResponseWriter, r *http.Request) {
	var c *model.Condition
	if err := decode(r, &c); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.sess.SetSelectedCondition(c)
	w.WriteHeader(http.StatusNoContent)
}

// putConditions stores the list. Entries arriving without an ID get one
// here, so every stored condition is addressable by selection; clients
// re-read GET /session to learn the assigned IDs.
func (h *Handler) putConditions(w http.ResponseWriter, r *http.Request) {
	var list []model.Condition
	if err := decode(r, &list); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for i := range list {
		if list[i].ID == "" {
			list[i].ID = uuid.NewString()
		}
	}
	h.sess.SetConditions(list)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putAnnotations(w http.ResponseWriter, r *http.Request) {
	var a []json.RawMessage
	if err := decode(r, &a); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.sess.SetAnnotations(a)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putPickDateRange(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.sess.SetPickDateRange(body.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putWorkingSet(w http.ResponseWriter, r *http.Request) {
	var ws *model.WorkingSet
	if err := decode(r, &ws); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.ws.SetEditing(ws)
	w.WriteHeader(http.StatusNoContent)
}
