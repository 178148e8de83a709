package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"github.com/shiroinekotfs/DanesfieldApp/internal/backend"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
	"github.com/shiroinekotfs/DanesfieldApp/internal/session"
	"github.com/shiroinekotfs/DanesfieldApp/internal/views/cellcover"
)

type fakeRepo struct {
	data    []model.DatasetBound
	applied bool
	err     error
	loads   int
}

func (f *fakeRepo) Load(context.Context) (bool, error) {
	f.loads++
	if f.err != nil {
		return false, f.err
	}
	return f.applied, nil
}
func (f *fakeRepo) Bounds() []model.DatasetBound { return f.data }
func (f *fakeRepo) Readiness() (bool, int)       { return f.data != nil, len(f.data) }

type fakeBackend struct {
	sets []model.WorkingSet
	err  error
}

func (f *fakeBackend) DatasetBounds(context.Context) ([]model.DatasetBound, error) {
	return nil, errors.New("not used")
}
func (f *fakeBackend) ListWorkingSets(context.Context) ([]model.WorkingSet, error) {
	return f.sets, f.err
}
func (f *fakeBackend) GetWorkingSet(_ context.Context, id string) (model.WorkingSet, error) {
	if f.err != nil {
		return model.WorkingSet{}, f.err
	}
	for _, ws := range f.sets {
		if ws.ID == id {
			return ws, nil
		}
	}
	return model.WorkingSet{}, &backend.StatusError{Code: http.StatusNotFound, Excerpt: "no such working set"}
}
func (f *fakeBackend) CreateWorkingSet(_ context.Context, ws model.WorkingSet) (model.WorkingSet, error) {
	if f.err != nil {
		return model.WorkingSet{}, f.err
	}
	ws.ID = "ws-new"
	return ws, nil
}
func (f *fakeBackend) UpdateWorkingSet(_ context.Context, ws model.WorkingSet) (model.WorkingSet, error) {
	if f.err != nil {
		return model.WorkingSet{}, f.err
	}
	return ws, nil
}
func (f *fakeBackend) DeleteWorkingSet(context.Context, string) error { return f.err }

type testAPI struct {
	h    *Handler
	mux  http.Handler
	repo *fakeRepo
	be   *fakeBackend
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cover, err := cellcover.New(logger, 7, 5, 9, 16)
	require.NoError(t, err)

	repo := &fakeRepo{applied: true}
	be := &fakeBackend{}
	h := New(logger, session.New(logger), session.NewWorkingSetState(logger), repo, be, cover)

	r := chi.NewRouter()
	r.Mount("/api", h.Routes())
	return &testAPI{h: h, mux: r, repo: repo, be: be}
}

func (a *testAPI) do(t *testing.T, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	a.mux.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) session(t *testing.T) sessionResponse {
	t.Helper()
	rr := a.do(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var out sessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func mustGeom(t *testing.T, raw string) *geojson.Geometry {
	t.Helper()
	g, err := geojson.UnmarshalGeometry([]byte(raw))
	require.NoError(t, err)
	return g
}

const squareRegion = `{"id":"c1","type":"region","geometry":{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,4],[0,4],[0,0]]]}}`

func TestSessionLifecycle(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, http.MethodPut, "/api/session/filter", `{"_id":"f1","name":"flood-review"}`)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = a.do(t, http.MethodPut, "/api/session/conditions", `[`+squareRegion+`,{"type":"daterange"}]`)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = a.do(t, http.MethodPut, "/api/session/annotations", `[{"note":"check roof"},{"note":"shadow"}]`)
	require.Equal(t, http.StatusNoContent, rr.Code)

	snap := a.session(t)
	require.NotNil(t, snap.Filter)
	require.Equal(t, "flood-review", snap.Filter.Name)
	require.True(t, snap.Editing)
	require.Len(t, snap.Conditions, 2)
	require.Equal(t, "c1", snap.Conditions[0].ID)
	require.NotEmpty(t, snap.Conditions[1].ID, "missing IDs are assigned on ingest")
	require.Len(t, snap.Annotations, 2)

	// Clearing the filter tears down selection and conditions but leaves
	// the annotation overlay alone.
	rr = a.do(t, http.MethodPut, "/api/session/condition", `{"id":"c1","type":"region"}`)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = a.do(t, http.MethodPut, "/api/session/filter", `null`)
	require.Equal(t, http.StatusNoContent, rr.Code)

	snap = a.session(t)
	require.Nil(t, snap.Filter)
	require.False(t, snap.Editing)
	require.Nil(t, snap.Selected)
	require.Nil(t, snap.Conditions)
	require.Len(t, snap.Annotations, 2)
}

func TestPickDateRangeToggle(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, http.MethodPut, "/api/session/pick-date-range", `{"enabled":true}`)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.True(t, a.session(t).PickDateRange)

	rr = a.do(t, http.MethodPut, "/api/session/pick-date-range", `{"enabled":false}`)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.False(t, a.session(t).PickDateRange)
}

func TestSessionReset_ClearsEverything(t *testing.T) {
	a := newTestAPI(t)

	a.do(t, http.MethodPut, "/api/session/filter", `{"name":"f"}`)
	a.do(t, http.MethodPut, "/api/session/conditions", `[`+squareRegion+`]`)
	a.do(t, http.MethodPut, "/api/session/annotations", `[{"a":1}]`)
	a.do(t, http.MethodPut, "/api/session/working-set", `{"_id":"ws1","name":"w","datasetIds":["d1"]}`)

	rr := a.do(t, http.MethodPost, "/api/session/reset", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	snap := a.session(t)
	require.Nil(t, snap.Filter)
	require.Nil(t, snap.Conditions)
	require.Nil(t, snap.Annotations)
	require.False(t, snap.PickDateRange)
	require.Nil(t, snap.WorkingSet)
}

func TestMalformedBodyIsRejected(t *testing.T) {
	a := newTestAPI(t)
	for _, path := range []string{
		"/api/session/filter",
		"/api/session/condition",
		"/api/session/conditions",
		"/api/session/annotations",
		"/api/session/pick-date-range",
		"/api/session/working-set",
	} {
		rr := a.do(t, http.MethodPut, path, `{not json`)
		require.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestEditingConditionsView(t *testing.T) {
	a := newTestAPI(t)

	// Absent until a condition list exists.
	rr := a.do(t, http.MethodGet, "/api/views/editing-conditions", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	a.do(t, http.MethodPut, "/api/session/conditions", `[`+squareRegion+`,{"id":"c2","type":"daterange"}]`)

	rr = a.do(t, http.MethodGet, "/api/views/editing-conditions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t,
		`{"type":"FeatureCollection","features":[{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,4],[0,4],[0,0]]]}]}`,
		rr.Body.String())

	// Selecting the region condition removes it from the collection.
	a.do(t, http.MethodPut, "/api/session/condition", `{"id":"c1","type":"region"}`)
	rr = a.do(t, http.MethodGet, "/api/views/editing-conditions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, rr.Body.String())
}

func TestSelectedConditionView(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, http.MethodGet, "/api/views/selected-condition", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	a.do(t, http.MethodPut, "/api/session/condition", squareRegion)
	rr = a.do(t, http.MethodGet, "/api/views/selected-condition", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t,
		`{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,4],[0,4],[0,0]]]}`,
		rr.Body.String())

	// A date-range selection projects nothing.
	a.do(t, http.MethodPut, "/api/session/condition", `{"id":"c9","type":"daterange"}`)
	rr = a.do(t, http.MethodGet, "/api/views/selected-condition", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHeatmapView(t *testing.T) {
	a := newTestAPI(t)
	a.repo.data = []model.DatasetBound{
		{ID: "d1", Name: "jacksonville", Bounds: mustGeom(t, `{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,4],[0,4],[0,0]]]}`)},
		{ID: "d2", Name: "ucsd", Bounds: mustGeom(t, `{"type":"Polygon","coordinates":[[[10,20],[14,20],[14,26],[10,26],[10,20]]]}`)},
	}

	rr := a.do(t, http.MethodGet, "/api/views/heatmap", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t,
		`[{"x":2,"y":2,"name":"jacksonville"},{"x":12,"y":23,"name":"ucsd"}]`,
		rr.Body.String())
}

func TestHeatmapView_EmptyCollection(t *testing.T) {
	a := newTestAPI(t)
	rr := a.do(t, http.MethodGet, "/api/views/heatmap", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())
}

func TestHeatmapView_NaNFootprintFailsEncoding(t *testing.T) {
	a := newTestAPI(t)
	a.repo.data = []model.DatasetBound{
		{ID: "d1", Name: "degenerate", Bounds: mustGeom(t, `{"type":"Polygon","coordinates":[]}`)},
	}

	rr := a.do(t, http.MethodGet, "/api/views/heatmap", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestViewETag(t *testing.T) {
	a := newTestAPI(t)
	a.repo.data = []model.DatasetBound{
		{ID: "d1", Name: "a", Bounds: mustGeom(t, `{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}`)},
	}

	rr := a.do(t, http.MethodGet, "/api/views/heatmap", "")
	require.Equal(t, http.StatusOK, rr.Code)
	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rr = a.do(t, http.MethodGet, "/api/views/heatmap", "", "If-None-Match", etag)
	require.Equal(t, http.StatusNotModified, rr.Code)
	require.Empty(t, rr.Body.String())

	// Different data, different tag: the stale tag no longer matches.
	a.repo.data = append(a.repo.data, model.DatasetBound{
		ID: "d2", Name: "b", Bounds: mustGeom(t, `{"type":"Polygon","coordinates":[[[4,4],[6,4],[6,6],[4,6],[4,4]]]}`),
	})
	rr = a.do(t, http.MethodGet, "/api/views/heatmap", "", "If-None-Match", etag)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEqual(t, etag, rr.Header().Get("ETag"))
}

func TestRegionCellsView(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, http.MethodGet, "/api/views/region-cells?res=bogus", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// No conditions: empty cover at the default resolution.
	rr = a.do(t, http.MethodGet, "/api/views/region-cells", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"res":7,"cells":[]}`, rr.Body.String())

	a.do(t, http.MethodPut, "/api/session/conditions",
		`[{"id":"c1","type":"region","geometry":{"type":"Polygon","coordinates":[[[17.5,59.0],[18.5,59.0],[18.5,60.0],[17.5,60.0],[17.5,59.0]]]}}]`)

	// res below the window clamps up to the minimum.
	rr = a.do(t, http.MethodGet, "/api/views/region-cells?res=3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var out regionCellsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, 5, out.Res)
	require.NotEmpty(t, out.Cells)
	require.True(t, sort.StringsAreSorted(out.Cells))
}

func TestBoundsEndpoints(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, http.MethodGet, "/api/bounds", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())

	a.repo.data = []model.DatasetBound{{ID: "d1", Name: "a"}}
	rr = a.do(t, http.MethodPost, "/api/bounds/load", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"applied":true,"datasets":1}`, rr.Body.String())
	require.Equal(t, 1, a.repo.loads)

	a.repo.err = errors.New("backend down")
	rr = a.do(t, http.MethodPost, "/api/bounds/load", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestWorkingSetsPassthrough(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, http.MethodGet, "/api/working-sets", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())

	rr = a.do(t, http.MethodPost, "/api/working-sets", `{"name":"new","datasetIds":["d1"]}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created model.WorkingSet
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, "ws-new", created.ID)

	a.be.sets = []model.WorkingSet{{ID: "ws1", Name: "w", DatasetIDs: []string{"d1"}}}
	rr = a.do(t, http.MethodGet, "/api/working-sets/ws1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), `"ws1"`))

	rr = a.do(t, http.MethodGet, "/api/working-sets/missing", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	// The path ID wins over whatever the body carries.
	rr = a.do(t, http.MethodPut, "/api/working-sets/ws1", `{"_id":"other","name":"renamed","datasetIds":["d1"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var updated model.WorkingSet
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	require.Equal(t, "ws1", updated.ID)

	rr = a.do(t, http.MethodDelete, "/api/working-sets/ws1", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	a.be.err = errors.New("connection refused")
	rr = a.do(t, http.MethodGet, "/api/working-sets", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
}
