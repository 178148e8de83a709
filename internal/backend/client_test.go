package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
)

type platformRecorder struct {
	mu         sync.Mutex
	lastMethod string
	lastPath   string
	lastHeader http.Header
	lastBody   []byte

	status int
	body   string
}

func (p *platformRecorder) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	p.mu.Lock()
	p.lastMethod = r.Method
	p.lastPath = r.URL.Path
	p.lastHeader = r.Header.Clone()
	p.lastBody = body
	status, resp := p.status, p.body
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp))
}

func (p *platformRecorder) respond(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	p.body = body
}

func (p *platformRecorder) snapshot() (string, string, http.Header, []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastMethod, p.lastPath, p.lastHeader, p.lastBody
}

func newClient(t *testing.T, rec *platformRecorder) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(logger, srv.Client(), srv.URL+"/api/v1")
	require.NoError(t, err)
	return c
}

func TestDatasetBounds(t *testing.T) {
	rec := &platformRecorder{body: `[
		{"_id":"d1","name":"jacksonville","bounds":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,0]]]}},
		{"_id":"d2","name":"ucsd","bounds":{"type":"Polygon","coordinates":[[[5,5],[7,5],[7,7],[5,5]]]}}
	]`}
	c := newClient(t, rec)

	got, err := c.DatasetBounds(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "d1", got[0].ID)
	require.Equal(t, "jacksonville", got[0].Name)
	require.NotNil(t, got[0].Bounds)

	method, path, hdr, _ := rec.snapshot()
	require.Equal(t, http.MethodGet, method)
	require.Equal(t, "/api/v1/dataset/bounds", path)
	require.Equal(t, "application/json", hdr.Get("Accept"))
}

func TestDatasetBounds_UpstreamError(t *testing.T) {
	rec := &platformRecorder{status: http.StatusInternalServerError, body: `boom`}
	c := newClient(t, rec)

	_, err := c.DatasetBounds(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "platform status 500")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusInternalServerError, se.Code)
	require.Equal(t, "boom", se.Excerpt)
}

func TestUpdateWorkingSet_KeepsIDOutOfBody(t *testing.T) {
	rec := &platformRecorder{body: `{"_id":"ws1","name":"renamed","datasetIds":["d1"]}`}
	c := newClient(t, rec)

	got, err := c.UpdateWorkingSet(context.Background(), model.WorkingSet{
		ID:         "ws1",
		Name:       "renamed",
		DatasetIDs: []string{"d1"},
	})
	require.NoError(t, err)
	require.Equal(t, "ws1", got.ID)

	method, path, _, body := rec.snapshot()
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/api/v1/workingSet/ws1", path)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(body, &sent))
	require.NotContains(t, sent, "_id")
	require.Equal(t, "renamed", sent["name"])
}

func TestUpdateWorkingSet_RequiresID(t *testing.T) {
	c := newClient(t, &platformRecorder{body: `{}`})

	_, err := c.UpdateWorkingSet(context.Background(), model.WorkingSet{Name: "no-id"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing id")
}

func TestCreateAndDeleteWorkingSet(t *testing.T) {
	rec := &platformRecorder{body: `{"_id":"ws9","name":"fresh","datasetIds":[]}`}
	c := newClient(t, rec)

	created, err := c.CreateWorkingSet(context.Background(), model.WorkingSet{Name: "fresh", DatasetIDs: []string{}})
	require.NoError(t, err)
	require.Equal(t, "ws9", created.ID)

	method, path, _, _ := rec.snapshot()
	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "/api/v1/workingSet", path)

	rec.respond(http.StatusOK, `{}`)
	require.NoError(t, c.DeleteWorkingSet(context.Background(), "ws9"))

	method, path, _, _ = rec.snapshot()
	require.Equal(t, http.MethodDelete, method)
	require.Equal(t, "/api/v1/workingSet/ws9", path)
}
