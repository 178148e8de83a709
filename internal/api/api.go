// Package api mounts the service's HTTP surface: session mutations, the
// working set passthrough, bounds loading, and the derived map views.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"

	"github.com/shiroinekotfs/DanesfieldApp/internal/backend"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/observability"
	"github.com/shiroinekotfs/DanesfieldApp/internal/session"
	"github.com/shiroinekotfs/DanesfieldApp/internal/views/cellcover"
)

// BoundsRepo is the slice of the bounds repository the handlers need.
type BoundsRepo interface {
	Load(ctx context.Context) (bool, error)
	Bounds() []model.DatasetBound
	Readiness() (ready bool, datasets int)
}

type Handler struct {
	log     *slog.Logger
	sess    *session.Session
	ws      *session.WorkingSetState
	repo    BoundsRepo
	backend backend.Interface
	cover   *cellcover.Cover
}

func New(log *slog.Logger, sess *session.Session, ws *session.WorkingSetState,
	repo BoundsRepo, be backend.Interface, cover *cellcover.Cover) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, sess: sess, ws: ws, repo: repo, backend: be, cover: cover}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.getSession)
		r.Post("/reset", h.resetSession)
		r.Put("/filter", h.putFilter)
		r.Put("/condition", h.putSelectedCondition)
		r.Put("/conditions", h.putConditions)
		r.Put("/annotations", h.putAnnotations)
		r.Put("/pick-date-range", h.putPickDateRange)
		r.Put("/working-set", h.putWorkingSet)
	})

	r.Route("/working-sets", func(r chi.Router) {
		r.Get("/", h.listWorkingSets)
		r.Post("/", h.createWorkingSet)
		r.Get("/{id}", h.getWorkingSet)
		r.Put("/{id}", h.updateWorkingSet)
		r.Delete("/{id}", h.deleteWorkingSet)
	})

	r.Route("/bounds", func(r chi.Router) {
		r.Get("/", h.getBounds)
		r.Post("/load", h.loadBounds)
	})

	r.Route("/views", func(r chi.Router) {
		r.Get("/editing-conditions", h.viewEditingConditions)
		r.Get("/selected-condition", h.viewSelectedCondition)
		r.Get("/heatmap", h.viewHeatmap)
		r.Get("/region-cells", h.viewRegionCells)
	})

	return r
}

// decode reads a JSON body into v. The literal null is valid input: it
// decodes to a nil pointer or nil slice, which the session treats as clear.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	buf, err := json.Marshal(v)
	if err != nil {
		h.log.Error("encode response", "err", err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// writeView serves a derived view payload with an ETag over the encoded
// bytes so unchanged views cost a 304 instead of a re-render.
func (h *Handler) writeView(w http.ResponseWriter, r *http.Request, view string, v any) {
	buf, err := json.Marshal(v)
	if err != nil {
		// NaN heatmap coordinates land here; the derivation never guards.
		observability.ObserveViewRequest(view, "error")
		h.log.Error("encode view", "view", view, "err", err)
		http.Error(w, "encode view", http.StatusInternalServerError)
		return
	}
	etag := fmt.Sprintf(`"%x"`, xxhash.Sum64(buf))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		observability.ObserveViewRequest(view, "not_modified")
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(buf)
	observability.ObserveViewRequest(view, "served")
}

// absent is the 204 arm for projections that have nothing to show.
func absent(w http.ResponseWriter, view string) {
	observability.ObserveViewRequest(view, "absent")
	w.WriteHeader(http.StatusNoContent)
}

// backendStatus translates a platform error: not-found passes through,
// everything else reads as a bad gateway.
func backendStatus(err error) int {
	var se *backend.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
