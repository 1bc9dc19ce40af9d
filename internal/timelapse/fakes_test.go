package timelapse

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// manualTicker fires scheduled callbacks only when the test says so.
type manualTicker struct {
	mu      sync.Mutex
	handles []*manualHandle
}

type manualHandle struct {
	ticker   *manualTicker
	interval time.Duration
	fn       func()
	stopped  bool
}

func (t *manualTicker) Every(interval time.Duration, fn func()) (TickerHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := &manualHandle{ticker: t, interval: interval, fn: fn}
	t.handles = append(t.handles, h)
	return h, nil
}

func (h *manualHandle) Stop() {
	h.ticker.mu.Lock()
	defer h.ticker.mu.Unlock()
	h.stopped = true
}

// fire runs every live callback n times.
func (t *manualTicker) fire(n int) {
	for i := 0; i < n; i++ {
		for _, fn := range t.live() {
			fn()
		}
	}
}

// fireAll runs every callback ever scheduled, stopped or not, the way a
// late timer would.
func (t *manualTicker) fireAll() {
	t.mu.Lock()
	fns := make([]func(), 0, len(t.handles))
	for _, h := range t.handles {
		fns = append(fns, h.fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (t *manualTicker) live() []func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	var fns []func()
	for _, h := range t.handles {
		if !h.stopped {
			fns = append(fns, h.fn)
		}
	}
	return fns
}

func (t *manualTicker) liveCount() int {
	return len(t.live())
}

func (t *manualTicker) lastInterval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.handles) == 0 {
		return 0
	}
	return t.handles[len(t.handles)-1].interval
}

// fakeSurface implements both map ports in memory and records every call.
type fakeSurface struct {
	mu        sync.Mutex
	layers    []Layer
	label     *string
	labelLog  []string
	calls     []string
	ensures   int
	listErr   error
	failAddID string
}

func (f *fakeSurface) AddLayer(_ context.Context, l Layer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "add:"+l.ID)
	if l.ID == f.failAddID {
		return fmt.Errorf("add %s: boom", l.ID)
	}
	for _, existing := range f.layers {
		if existing.ID == l.ID {
			return fmt.Errorf("%w: %s", ErrLayerExists, l.ID)
		}
	}
	f.layers = append(f.layers, l)
	return nil
}

func (f *fakeSurface) RemoveLayer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "remove:"+id)
	for i, existing := range f.layers {
		if existing.ID == id {
			f.layers = append(f.layers[:i], f.layers[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeSurface) ListLayerIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := make([]string, 0, len(f.layers))
	for _, l := range f.layers {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

func (f *fakeSurface) Ensure(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensures++
	if f.label == nil {
		empty := ""
		f.label = &empty
	}
	return nil
}

func (f *fakeSurface) Update(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.label == nil {
		return nil
	}
	*f.label = text
	f.labelLog = append(f.labelLog, text)
	return nil
}

func (f *fakeSurface) Remove(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.label = nil
	return nil
}

func (f *fakeSurface) layerIDs() []string {
	ids, _ := f.ListLayerIDs(context.Background())
	return ids
}

func (f *fakeSurface) labelText() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.label == nil {
		return "", false
	}
	return *f.label, true
}

func (f *fakeSurface) seed(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.layers = append(f.layers, Layer{ID: id, TileURL: "https://example.test/" + id, TileSize: DefaultTileSize})
	}
}
