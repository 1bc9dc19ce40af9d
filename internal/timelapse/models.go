package timelapse

import (
	"strconv"
	"time"
)

// LayerIDPrefix marks every layer the engine registers on a map surface.
// Reset sweeps the surface by this prefix.
const LayerIDPrefix = "raster-"

// DefaultTileSize is the tile size registered for every raster layer.
const DefaultTileSize = 256

// TimeRange is a user-selected date range. Both bounds are inclusive when
// Start <= End; an inverted range resolves to no frames.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Frame is one hour of precipitation imagery: the hour it covers, the tile
// reference the map surface dereferences, and the layer identity it is
// registered under.
type Frame struct {
	Index         int       `json:"index"`
	Timestamp     time.Time `json:"timestamp"` // hour-truncated
	TileReference string    `json:"tileReference"`
	LayerID       string    `json:"layerId"`
}

// Layer converts the frame into the raster layer registration sent to a map surface.
func (f Frame) Layer() Layer {
	return Layer{
		ID:       f.LayerID,
		TileURL:  f.TileReference,
		TileSize: DefaultTileSize,
	}
}

// LayerIDFor derives the layer id for a frame index.
func LayerIDFor(index int) string {
	return LayerIDPrefix + strconv.Itoa(index)
}

// Layer is a raster source/layer pair as registered on a map surface.
type Layer struct {
	ID       string `json:"id"`
	TileURL  string `json:"tileUrl"`
	TileSize int    `json:"tileSize"`
}

// Status is the lifecycle state of an animation session.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusExhausted
	StatusCancelled
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusExhausted:
		return "exhausted"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
