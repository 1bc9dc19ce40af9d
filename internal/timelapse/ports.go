package timelapse

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLayerExists is returned by a map surface asked to add a layer id it
	// already holds. The engine never reuses an id, so this signals a broken
	// invariant rather than a normal failure.
	ErrLayerExists = errors.New("layer already exists")

	// ErrDeferred is returned when an action arrives before a map surface is
	// attached. The action is queued and runs once the surface becomes ready.
	ErrDeferred = errors.New("map surface not ready; action deferred")
)

// MapLayerPort is what the engine needs from the external map surface.
type MapLayerPort interface {
	// AddLayer registers a raster source and layer under layer.ID.
	// Implementations must return ErrLayerExists for a duplicate id.
	AddLayer(ctx context.Context, layer Layer) error

	// RemoveLayer removes the layer and its backing source. Absent ids are a no-op.
	RemoveLayer(ctx context.Context, id string) error

	// ListLayerIDs enumerates the ids of every layer currently on the surface.
	ListLayerIDs(ctx context.Context) ([]string, error)
}

// OverlayLabelPort displays a single line of text anchored to the map surface.
type OverlayLabelPort interface {
	// Ensure creates the label if it does not exist yet.
	Ensure(ctx context.Context) error

	// Update replaces the displayed text. It is a no-op while the label is removed.
	Update(ctx context.Context, text string) error

	// Remove detaches the label.
	Remove(ctx context.Context) error
}

// Ticker schedules a recurring callback. The first call happens one interval
// after Every returns, and calls for the same handle never overlap.
type Ticker interface {
	Every(interval time.Duration, fn func()) (TickerHandle, error)
}

// TickerHandle stops a recurring callback. Stop is idempotent.
type TickerHandle interface {
	Stop()
}
