package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
)

func (h *Handler) listWorkingSets(w http.ResponseWriter, r *http.Request) {
	out, err := h.backend.ListWorkingSets(r.Context())
	if err != nil {
		h.log.Error("list working sets", "err", err)
		http.Error(w, "platform unavailable", backendStatus(err))
		return
	}
	if out == nil {
		out = []model.WorkingSet{}
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createWorkingSet(w http.ResponseWriter, r *http.Request) {
	var ws model.WorkingSet
	if err := decode(r, &ws); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, err := h.backend.CreateWorkingSet(r.Context(), ws)
	if err != nil {
		h.log.Error("create working set", "err", err)
		http.Error(w, "platform unavailable", backendStatus(err))
		return
	}
	h.writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) getWorkingSet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	out, err := h.backend.GetWorkingSet(r.Context(), id)
	if err != nil {
		h.log.Error("get working set", "id", id, "err", err)
		http.Error(w, "working set unavailable", backendStatus(err))
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) updateWorkingSet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var ws model.WorkingSet
	if err := decode(r, &ws); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ws.ID = id
	out, err := h.backend.UpdateWorkingSet(r.Context(), ws)
	if err != nil {
		h.log.Error("update working set", "id", id, "err", err)
		http.Error(w, "working set unavailable", backendStatus(err))
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) deleteWorkingSet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.backend.DeleteWorkingSet(r.Context(), id); err != nil {
		h.log.Error("delete working set", "id", id, "err", err)
		http.Error(w, "working set unavailable", backendStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
