package storyboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// defaultDebounce is the quiescence window after a canvas change before the
// active frame's thumbnail is regenerated.
const defaultDebounce = 1500 * time.Millisecond

// Generator renders a small PNG preview for a frame. A nil generator
// disables regeneration entirely.
type Generator func(ctx context.Context, frame Frame) ([]byte, error)

// thumbPipeline regenerates thumbnails with per-frame debouncing. A second
// trigger for a frame already in flight supersedes the running generation
// rather than queueing behind it. Generation failures are logged and
// swallowed: a missing thumbnail is a valid state.
type thumbPipeline struct {
	mu       sync.Mutex
	store    *Store
	gen      Generator
	debounce time.Duration
	timers   map[string]*time.Timer
	inflight map[string]genEntry
	seq      uint64
	wg       sync.WaitGroup
	closed   bool
	log      zerolog.Logger
}

// genEntry identifies one in-flight generation so a finished goroutine only
// clears its own bookkeeping, never a superseding run's.
type genEntry struct {
	cancel context.CancelFunc
	seq    uint64
}

func newThumbPipeline(store *Store, log zerolog.Logger) *thumbPipeline {
	return &thumbPipeline{
		store:    store,
		debounce: defaultDebounce,
		timers:   make(map[string]*time.Timer),
		inflight: make(map[string]genEntry),
		log:      log,
	}
}

// SetThumbnailGenerator installs the preview renderer.
func (m *Manager) SetThumbnailGenerator(gen Generator) {
	m.thumbs.mu.Lock()
	m.thumbs.gen = gen
	m.thumbs.mu.Unlock()
}

// NoteCanvasChange restarts the debounce timer for the active frame. The
// thumbnail regenerates only after the canvas has been quiet for the full
// debounce window.
func (m *Manager) NoteCanvasChange() {
	m.mu.Lock()
	id := m.selected
	var frame Frame
	if i := m.indexOf(id); i >= 0 {
		frame = m.frames[i]
	}
	m.mu.Unlock()
	if frame.ID == "" {
		return
	}
	m.thumbs.schedule(frame)
}

// RefreshAllThumbnails eagerly regenerates previews for every frame, used on
// mount and when switching frames. Frames regenerate concurrently; one
// frame's failure never aborts the others.
func (m *Manager) RefreshAllThumbnails(ctx context.Context) {
	for _, f := range m.Frames() {
		m.thumbs.start(ctx, f)
	}
}

// Thumbnail returns the cached preview for a frame, with ok=false when none
// exists yet.
func (m *Manager) Thumbnail(ctx context.Context, frameID string) ([]byte, bool) {
	png, err := m.store.GetThumbnail(ctx, frameID)
	if err != nil {
		m.log.Debug().Err(err).Str("frame", frameID).Msg("thumbnail read failed")
		return nil, false
	}
	return png, png != nil
}

func (p *thumbPipeline) schedule(frame Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.gen == nil {
		return
	}
	if t, ok := p.timers[frame.ID]; ok {
		t.Stop()
	}
	p.timers[frame.ID] = time.AfterFunc(p.debounce, func() {
		p.start(context.Background(), frame)
	})
}

// start regenerates one frame's thumbnail now, superseding any generation
// already running for the same frame.
func (p *thumbPipeline) start(ctx context.Context, frame Frame) {
	p.mu.Lock()
	if p.closed || p.gen == nil {
		p.mu.Unlock()
		return
	}
	if e, ok := p.inflight[frame.ID]; ok {
		e.cancel()
	}
	genCtx, cancel := context.WithCancel(ctx)
	p.seq++
	mySeq := p.seq
	p.inflight[frame.ID] = genEntry{cancel: cancel, seq: mySeq}
	gen := p.gen
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer cancel()
		defer func() {
			p.mu.Lock()
			if e, ok := p.inflight[frame.ID]; ok && e.seq == mySeq {
				delete(p.inflight, frame.ID)
			}
			p.mu.Unlock()
		}()
		png, err := gen(genCtx, frame)
		if genCtx.Err() != nil {
			thumbnailJobsTotal.WithLabelValues("superseded").Inc()
			return
		}
		if err != nil {
			thumbnailJobsTotal.WithLabelValues("failed").Inc()
			p.log.Debug().Err(err).Str("frame", frame.ID).Msg("thumbnail generation failed")
			return
		}
		if err := p.store.PutThumbnail(genCtx, frame.ID, png); err != nil {
			thumbnailJobsTotal.WithLabelValues("failed").Inc()
			p.log.Debug().Err(err).Str("frame", frame.ID).Msg("thumbnail store failed")
			return
		}
		thumbnailJobsTotal.WithLabelValues("ok").Inc()
	}()
}

// drop cancels pending work for a deleted frame.
func (p *thumbPipeline) drop(frameID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.timers[frameID]; ok {
		t.Stop()
		delete(p.timers, frameID)
	}
	if e, ok := p.inflight[frameID]; ok {
		e.cancel()
		delete(p.inflight, frameID)
	}
}

// close stops timers and waits for running generations to finish.
func (p *thumbPipeline) close() {
	p.mu.Lock()
	p.closed = true
	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}
	for id, e := range p.inflight {
		e.cancel()
		delete(p.inflight, id)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
