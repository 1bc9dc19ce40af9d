package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/precip-timelapse/internal/timelapse"
)

var (
	// ErrNotFound is returned when a layer is not present on the surface.
	ErrNotFound = errors.New("layer not found on map surface")
)

// LabelAnchor is the fixed corner the overlay label is pinned to.
const LabelAnchor = "bottom-left"

// LabelState describes the overlay label as a map client should render it.
type LabelState struct {
	Text   string `json:"text"`
	Anchor string `json:"anchor"`
}

// SurfaceState is an ordered snapshot of the surface for map clients.
// Version increases on every mutation so clients can skip redundant redraws.
type SurfaceState struct {
	Version   uint64            `json:"version"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Layers    []timelapse.Layer `json:"layers"`
	Label     *LabelState       `json:"label,omitempty"`
}

// MemorySurface is a concurrency-safe in-memory map surface. It implements
// both timelapse.MapLayerPort and timelapse.OverlayLabelPort; browser map
// clients poll its state and mirror it onto their own map.
type MemorySurface struct {
	mu sync.RWMutex

	// layers in registration order; index maps id -> position in layers
	layers []timelapse.Layer
	index  map[string]int

	label *LabelState

	version   uint64
	updatedAt time.Time
}

// NewMemorySurface creates an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		index: make(map[string]int),
	}
}

// AddLayer implements timelapse.MapLayerPort.
func (s *MemorySurface) AddLayer(_ context.Context, layer timelapse.Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[layer.ID]; ok {
		return fmt.Errorf("%w: %s", timelapse.ErrLayerExists, layer.ID)
	}
	s.index[layer.ID] = len(s.layers)
	s.layers = append(s.layers, layer)
	s.touchLocked()
	return nil
}

// RemoveLayer implements timelapse.MapLayerPort. Absent ids are a no-op.
func (s *MemorySurface) RemoveLayer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return nil
	}
	s.layers = append(s.layers[:pos], s.layers[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.layers); i++ {
		s.index[s.layers[i].ID] = i
	}
	s.touchLocked()
	return nil
}

// ListLayerIDs implements timelapse.MapLayerPort.
func (s *MemorySurface) ListLayerIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.layers))
	for _, l := range s.layers {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

// GetLayer returns a single layer by id.
func (s *MemorySurface) GetLayer(id string) (timelapse.Layer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return timelapse.Layer{}, ErrNotFound
	}
	return s.layers[pos], nil
}

// Ensure implements timelapse.OverlayLabelPort.
func (s *MemorySurface) Ensure(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.label == nil {
		s.label = &LabelState{Anchor: LabelAnchor}
		s.touchLocked()
	}
	return nil
}

// Update implements timelapse.OverlayLabelPort. It is a no-op while no label exists.
func (s *MemorySurface) Update(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.label == nil || s.label.Text == text {
		return nil
	}
	s.label.Text = text
	s.touchLocked()
	return nil
}

// Remove implements timelapse.OverlayLabelPort.
func (s *MemorySurface) Remove(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.label != nil {
		s.label = nil
		s.touchLocked()
	}
	return nil
}

// State returns a copy of the surface for map clients.
func (s *MemorySurface) State() SurfaceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := SurfaceState{
		Version:   s.version,
		UpdatedAt: s.updatedAt,
		Layers:    make([]timelapse.Layer, len(s.layers)),
	}
	copy(st.Layers, s.layers)
	if s.label != nil {
		l := *s.label
		st.Label = &l
	}
	return st
}

func (s *MemorySurface) touchLocked() {
	s.version++
	s.updatedAt = time.Now().UTC()
}
