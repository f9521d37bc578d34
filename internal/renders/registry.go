// Package renders tracks the backend's persisted render artifacts on behalf
// of the UI: the cached list, the active (playing) artifact, and the
// multi-select used for stitching.
package renders

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"animatic/internal/backend"
	"animatic/pkg/types"
)

// Registry mirrors the backend's render list. After every mutation the cache
// is replaced wholesale by a fresh list from the backend, so the registry
// never drifts from what is on disk.
type Registry struct {
	client *backend.Client
	log    zerolog.Logger

	renders  []types.Render
	activeID string
	selected map[string]struct{}
}

// NewRegistry builds an empty registry. Call Refresh before reading.
// Registry is not safe for concurrent use; callers serialize access.
func NewRegistry(client *backend.Client, log zerolog.Logger) *Registry {
	return &Registry{
		client:   client,
		log:      log.With().Str("component", "renders").Logger(),
		selected: make(map[string]struct{}),
	}
}

// Refresh replaces the cached list with the backend's current one and prunes
// the active pointer and selection down to artifacts that still exist.
func (r *Registry) Refresh(ctx context.Context) error {
	list, err := r.client.ListRenders(ctx)
	if err != nil {
		return err
	}
	r.renders = list

	alive := make(map[string]struct{}, len(list))
	for _, rd := range list {
		alive[rd.ID] = struct{}{}
	}
	if _, ok := alive[r.activeID]; !ok {
		r.activeID = ""
	}
	for id := range r.selected {
		if _, ok := alive[id]; !ok {
			delete(r.selected, id)
		}
	}
	return nil
}

// Renders returns the cached list in display order.
func (r *Registry) Renders() []types.Render {
	out := make([]types.Render, len(r.renders))
	copy(out, r.renders)
	return out
}

// Active returns the active artifact, if any.
func (r *Registry) Active() (types.Render, bool) {
	for _, rd := range r.renders {
		if rd.ID == r.activeID {
			return rd, true
		}
	}
	return types.Render{}, false
}

// SetActive points playback at the given artifact.
func (r *Registry) SetActive(id string) error {
	if !r.has(id) {
		return unknownRenderError{id: id}
	}
	r.activeID = id
	return nil
}

// NoteRendered records a freshly completed render: the registry refreshes its
// list and makes the new artifact active.
func (r *Registry) NoteRendered(ctx context.Context, id string) error {
	if err := r.Refresh(ctx); err != nil {
		return err
	}
	if r.has(id) {
		r.activeID = id
	}
	return nil
}

// ToggleSelected flips an artifact's membership in the stitch selection.
// Selection is independent of the active pointer.
func (r *Registry) ToggleSelected(id string) error {
	if !r.has(id) {
		return unknownRenderError{id: id}
	}
	if _, ok := r.selected[id]; ok {
		delete(r.selected, id)
	} else {
		r.selected[id] = struct{}{}
	}
	return nil
}

// Selected returns the selected IDs in display order, not selection order.
func (r *Registry) Selected() []string {
	var out []string
	for _, rd := range r.renders {
		if _, ok := r.selected[rd.ID]; ok {
			out = append(out, rd.ID)
		}
	}
	return out
}

// ClearSelection empties the stitch selection.
func (r *Registry) ClearSelection() {
	r.selected = make(map[string]struct{})
}

// Rename updates an artifact's name on the backend and refreshes.
func (r *Registry) Rename(ctx context.Context, id, name string) error {
	if err := r.client.RenameRender(ctx, id, name); err != nil {
		return err
	}
	return r.Refresh(ctx)
}

// Delete removes an artifact on the backend and refreshes.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.client.DeleteRender(ctx, id); err != nil {
		return err
	}
	return r.Refresh(ctx)
}

// Stitch concatenates the current selection, in display order, into a new
// artifact. At least two artifacts must be selected. On success the selection
// is cleared and the new artifact becomes active.
func (r *Registry) Stitch(ctx context.Context, name string) (types.RenderResult, error) {
	ids := r.Selected()
	if len(ids) < 2 {
		return types.RenderResult{}, selectionTooSmallError{count: len(ids)}
	}
	res, err := r.client.Stitch(ctx, ids, name)
	if err != nil {
		return types.RenderResult{}, err
	}
	if !res.OK {
		r.log.Warn().Str("log", res.Log).Msg("stitch rejected by backend")
		return res, nil
	}
	r.ClearSelection()
	if err := r.Refresh(ctx); err != nil {
		return res, err
	}
	if r.has(res.RenderID) {
		r.activeID = res.RenderID
	}
	return res, nil
}

// VideoURL returns the playback URL for an artifact.
func (r *Registry) VideoURL(id string) string {
	return r.client.VideoURL(id)
}

func (r *Registry) has(id string) bool {
	if id == "" {
		return false
	}
	for _, rd := range r.renders {
		if rd.ID == id {
			return true
		}
	}
	return false
}

type unknownRenderError struct{ id string }

func (e unknownRenderError) Error() string {
	return fmt.Sprintf("renders: unknown render %q", e.id)
}

// IsUnknownRender reports whether err refers to an artifact the registry does
// not know about.
func IsUnknownRender(err error) bool {
	_, ok := err.(unknownRenderError)
	return ok
}

type selectionTooSmallError struct{ count int }

func (e selectionTooSmallError) Error() string {
	return fmt.Sprintf("renders: stitch needs at least 2 selected renders, have %d", e.count)
}

// IsSelectionTooSmall reports whether err means too few artifacts were
// selected for a stitch.
func IsSelectionTooSmall(err error) bool {
	_, ok := err.(selectionTooSmallError)
	return ok
}
