// Package backend is the typed client for the reconstruction platform API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/observability"
)

type Interface interface {
	DatasetBounds(ctx context.Context) ([]model.DatasetBound, error)
	ListWorkingSets(ctx context.Context) ([]model.WorkingSet, error)
	GetWorkingSet(ctx context.Context, id string) (model.WorkingSet, error)
	CreateWorkingSet(ctx context.Context, ws model.WorkingSet) (model.WorkingSet, error)
	UpdateWorkingSet(ctx context.Context, ws model.WorkingSet) (model.WorkingSet, error)
	DeleteWorkingSet(ctx context.Context, id string) error
}

// StatusError carries the platform's HTTP status so callers can translate
// it instead of flattening everything to a gateway error.
type StatusError struct {
	Code    int
	Excerpt string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("platform status %d: %s", e.Code, e.Excerpt)
}

type Client struct {
	logger   *slog.Logger
	client   *http.Client
	baseURL  *url.URL
	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client, base string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse platform url: %w", err)
	}
	return &Client{
		logger:   logger,
		client:   client,
		baseURL:  u,
		startNow: time.Now,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path, upstream string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.startNow()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	observability.ObserveUpstreamLatency(upstream, time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &StatusError{Code: resp.StatusCode, Excerpt: string(b)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DatasetBounds fetches every dataset's footprint polygon.
func (c *Client) DatasetBounds(ctx context.Context) ([]model.DatasetBound, error) {
	var out []model.DatasetBound
	if err := c.do(ctx, http.MethodGet, "/dataset/bounds", "dataset_bounds", nil, &out); err != nil {
		return nil, fmt.Errorf("dataset bounds: %w", err)
	}
	c.logger.Debug("dataset bounds fetched", "datasets", len(out))
	return out, nil
}

func (c *Client) ListWorkingSets(ctx context.Context) ([]model.WorkingSet, error) {
	var out []model.WorkingSet
	if err := c.do(ctx, http.MethodGet, "/workingSet", "working_set", nil, &out); err != nil {
		return nil, fmt.Errorf("list working sets: %w", err)
	}
	return out, nil
}

func (c *Client) GetWorkingSet(ctx context.Context, id string) (model.WorkingSet, error) {
	var out model.WorkingSet
	if err := c.do(ctx, http.MethodGet, "/workingSet/"+url.PathEscape(id), "working_set", nil, &out); err != nil {
		return model.WorkingSet{}, fmt.Errorf("get working set %s: %w", id, err)
	}
	return out, nil
}

func (c *Client) CreateWorkingSet(ctx context.Context, ws model.WorkingSet) (model.WorkingSet, error) {
	var out model.WorkingSet
	if err := c.do(ctx, http.MethodPost, "/workingSet", "working_set", ws, &out); err != nil {
		return model.WorkingSet{}, fmt.Errorf("create working set: %w", err)
	}
	return out, nil
}

// UpdateWorkingSet saves ws under its ID. The platform rejects _id inside the
// payload, so the ID travels in the path only.
func (c *Client) UpdateWorkingSet(ctx context.Context, ws model.WorkingSet) (model.WorkingSet, error) {
	if ws.ID == "" {
		return model.WorkingSet{}, fmt.Errorf("update working set: missing id")
	}
	id := ws.ID
	ws.ID = ""
	var out model.WorkingSet
	if err := c.do(ctx, http.MethodPut, "/workingSet/"+url.PathEscape(id), "working_set", ws, &out); err != nil {
		return model.WorkingSet{}, fmt.Errorf("update working set %s: %w", id, err)
	}
	return out, nil
}

func (c *Client) DeleteWorkingSet(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/workingSet/"+url.PathEscape(id), "working_set", nil, nil); err != nil {
		return fmt.Errorf("delete working set %s: %w", id, err)
	}
	return nil
}
