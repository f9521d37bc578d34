// Package backend is the typed HTTP client for the supervised backend
// process. It covers the passive endpoints; progressive render streaming
// lives in renderstream.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"animatic/pkg/types"
)

// Client talks to one backend instance over loopback HTTP.
type Client struct {
	baseURL string
	// Intentionally no client-level timeout: every call takes a context and
	// deadlines belong to the caller.
	httpClient *http.Client
}

// New builds a client for the backend at baseURL, e.g. http://127.0.0.1:52114.
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: 0}}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// VideoURL returns the playback URL for a render artifact.
func (c *Client) VideoURL(id string) string {
	return c.baseURL + "/api/renders/" + id + "/video"
}

// Status reports renderer capabilities and template count.
func (c *Client) Status(ctx context.Context) (types.StatusResponse, error) {
	var out types.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// RefreshStatus re-probes renderer capabilities (e.g. a LaTeX install that
// appeared after boot).
func (c *Client) RefreshStatus(ctx context.Context) (types.StatusResponse, error) {
	var out types.StatusResponse
	err := c.do(ctx, http.MethodPost, "/api/status/refresh", nil, &out)
	return out, err
}

// UpdateKey replaces the backend's in-process API credential.
func (c *Client) UpdateKey(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPost, "/api/config/key", types.KeyUpdateRequest{Key: key}, nil)
}

// Generate asks the backend to turn sketches into scene code.
func (c *Client) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	var out types.GenerateResponse
	err := c.do(ctx, http.MethodPost, "/api/generate", req, &out)
	return out, err
}

// Chat refines previously generated scene code.
func (c *Client) Chat(ctx context.Context, req types.ChatRequest) (types.GenerateResponse, error) {
	var out types.GenerateResponse
	err := c.do(ctx, http.MethodPost, "/api/chat", req, &out)
	return out, err
}

// SaveProject persists storyboard and scene code server-side.
func (c *Client) SaveProject(ctx context.Context, req types.SaveRequest) error {
	return c.do(ctx, http.MethodPost, "/api/save", req, nil)
}

// LoadProject fetches the persisted project state.
func (c *Client) LoadProject(ctx context.Context) (types.LoadResponse, error) {
	var out types.LoadResponse
	err := c.do(ctx, http.MethodGet, "/api/load", nil, &out)
	return out, err
}

// Templates lists the backend's component catalog.
func (c *Client) Templates(ctx context.Context) (types.TemplatesResponse, error) {
	var out types.TemplatesResponse
	err := c.do(ctx, http.MethodGet, "/api/templates", nil, &out)
	return out, err
}

// TemplateSource fetches one catalog entry's source.
func (c *Client) TemplateSource(ctx context.Context, name string) (types.TemplateSourceResponse, error) {
	var out types.TemplateSourceResponse
	err := c.do(ctx, http.MethodGet, "/api/templates/"+name+"/source", nil, &out)
	return out, err
}

// ListRenders returns all persisted render artifacts.
func (c *Client) ListRenders(ctx context.Context) ([]types.Render, error) {
	var out []types.Render
	err := c.do(ctx, http.MethodGet, "/api/renders", nil, &out)
	return out, err
}

// RenameRender updates an artifact's user-facing name.
func (c *Client) RenameRender(ctx context.Context, id, name string) error {
	return c.do(ctx, http.MethodPatch, "/api/renders/"+id, types.RenameRequest{Name: name}, nil)
}

// DeleteRender removes an artifact and its video file.
func (c *Client) DeleteRender(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/renders/"+id, nil, nil)
}

// Stitch concatenates the given artifacts, in order, into a new one.
func (c *Client) Stitch(ctx context.Context, ids []string, name string) (types.RenderResult, error) {
	var out types.RenderResult
	err := c.do(ctx, http.MethodPost, "/api/renders/stitch", types.StitchRequest{RenderIDs: ids, Name: name}, &out)
	return out, err
}

// do performs one JSON round trip. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("backend: build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload types.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = resp.Status
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}

// APIError is a backend-reported error with its HTTP status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
}
