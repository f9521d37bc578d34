// Package storyboard maintains the ordered sequence of drawable frames and
// their thumbnail previews.
//
// Ordering is carried entirely by fractional sort keys: moving a frame
// rewrites that frame's key and nothing else, so concurrent consumers of the
// list never observe a renumbering.
package storyboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"animatic/internal/fracindex"
)

// Frame is one ordered unit of the storyboard.
type Frame struct {
	// ID is stable for the lifetime of the frame and never reused.
	ID      string
	Name    string
	SortKey string
}

// Manager owns the in-memory frame list, backed by a Store. All methods are
// safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	store    *Store
	frames   []Frame // ascending by SortKey
	selected string
	seq      int // feeds default frame names

	thumbs *thumbPipeline
	log    zerolog.Logger
}

// NewManager loads persisted frames and guarantees the at-least-one-frame
// invariant by creating an initial frame in an empty project.
func NewManager(store *Store, log zerolog.Logger) (*Manager, error) {
	m := &Manager{
		store: store,
		log:   log.With().Str("component", "storyboard").Logger(),
	}
	m.thumbs = newThumbPipeline(store, m.log)

	frames, err := store.LoadFrames(context.Background())
	if err != nil {
		return nil, err
	}
	m.frames = frames
	m.seq = len(frames)
	if len(m.frames) == 0 {
		if _, err := m.AddFrame(context.Background()); err != nil {
			return nil, err
		}
		return m, nil
	}
	m.selected = m.frames[0].ID
	return m, nil
}

// Close releases pending thumbnail work.
func (m *Manager) Close() {
	m.thumbs.close()
}

// Frames returns a copy of the frames in display order.
func (m *Manager) Frames() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Frame, len(m.frames))
	copy(out, m.frames)
	return out
}

// SelectedID returns the id of the active frame.
func (m *Manager) SelectedID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Select makes the given frame active and reports whether it exists.
func (m *Manager) Select(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(id) < 0 {
		return false
	}
	m.selected = id
	return true
}

// AddFrame appends a frame after the current maximum sort key, persists it
// and selects it.
func (m *Manager) AddFrame(ctx context.Context) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	top := ""
	if n := len(m.frames); n > 0 {
		top = m.frames[n-1].SortKey
	}
	key, err := fracindex.KeyAbove(top)
	if err != nil {
		return Frame{}, fmt.Errorf("storyboard: add frame: %w", err)
	}
	m.seq++
	f := Frame{
		ID:      uuid.NewString(),
		Name:    fmt.Sprintf("Frame %d", m.seq),
		SortKey: key,
	}
	if err := m.store.InsertFrame(ctx, f); err != nil {
		m.seq--
		return Frame{}, err
	}
	m.frames = append(m.frames, f)
	m.selected = f.ID
	return f, nil
}

// DeleteFrame removes a frame and its thumbnail. Deleting the last remaining
// frame is refused silently: the storyboard always holds at least one frame.
func (m *Manager) DeleteFrame(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.frames) <= 1 {
		return nil
	}
	i := m.indexOf(id)
	if i < 0 {
		return nil
	}
	if err := m.store.DeleteFrame(ctx, id); err != nil {
		return err
	}
	m.frames = append(m.frames[:i], m.frames[i+1:]...)
	m.thumbs.drop(id)
	if m.selected == id {
		if i >= len(m.frames) {
			i = len(m.frames) - 1
		}
		m.selected = m.frames[i].ID
	}
	return nil
}

// RenameFrame updates a frame's user-facing name.
func (m *Manager) RenameFrame(ctx context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("storyboard: unknown frame %s", id)
	}
	if err := m.store.RenameFrame(ctx, id, name); err != nil {
		return err
	}
	m.frames[i].Name = name
	return nil
}

// Reorder moves the frame at display index from to display index to,
// synthesizing a sort key strictly between its new neighbors. Only the moved
// frame's key changes. When no key can be synthesized the move is refused
// and the order stays untouched.
func (m *Manager) Reorder(ctx context.Context, from, to int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.frames)
	if from < 0 || from >= n {
		return fmt.Errorf("storyboard: reorder index %d out of range", from)
	}
	if to < 0 {
		to = 0
	}
	if to >= n {
		to = n - 1
	}
	if from == to {
		return nil
	}

	moved := m.frames[from]
	rest := make([]Frame, 0, n-1)
	rest = append(rest, m.frames[:from]...)
	rest = append(rest, m.frames[from+1:]...)

	var key string
	var err error
	switch {
	case to == 0:
		key, err = fracindex.KeyBelow(rest[0].SortKey)
	case to >= len(rest):
		key, err = fracindex.KeyAbove(rest[len(rest)-1].SortKey)
	default:
		key, err = fracindex.KeyBetween(rest[to-1].SortKey, rest[to].SortKey)
	}
	if err != nil {
		// Fail closed: no partial reorder is ever applied.
		return fmt.Errorf("storyboard: reorder refused: %w", err)
	}

	if err := m.store.UpdateSortKey(ctx, moved.ID, key); err != nil {
		return err
	}
	moved.SortKey = key
	rest = append(rest, Frame{})
	copy(rest[to+1:], rest[to:])
	rest[to] = moved
	m.frames = rest
	return nil
}

// indexOf returns the display index of a frame id, or -1. Callers hold mu.
func (m *Manager) indexOf(id string) int {
	for i := range m.frames {
		if m.frames[i].ID == id {
			return i
		}
	}
	return -1
}
