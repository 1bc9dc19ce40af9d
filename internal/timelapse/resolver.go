package timelapse

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultTileEndpoint is the COG tiler fronting the raster bucket.
	DefaultTileEndpoint = "https://umzdj934ak.execute-api.us-east-2.amazonaws.com/cog/tiles"

	// DefaultBucket holds the hourly MRMS QPE GeoTIFFs.
	DefaultBucket = "noaa-raster-bucket-us-east-2"

	tilePathTemplate = "/{z}/{x}/{y}?url="
)

// ResolverConfig configures where frames point. Zero values fall back to the defaults.
type ResolverConfig struct {
	TileEndpoint string
	Bucket       string
}

// Resolver turns a TimeRange into an ordered sequence of hourly frames. It is
// stateless and deterministic: the same range always yields the same frames.
type Resolver struct {
	tileBase string
	bucket   string
	params   string
}

// NewResolver creates a Resolver. It fails only if the colormap cannot be encoded.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	endpoint := cfg.TileEndpoint
	if endpoint == "" {
		endpoint = DefaultTileEndpoint
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}

	params, err := renderParams(PrecipColormap)
	if err != nil {
		return nil, fmt.Errorf("encode colormap: %w", err)
	}

	return &Resolver{
		tileBase: strings.TrimRight(endpoint, "/") + tilePathTemplate,
		bucket:   bucket,
		params:   params,
	}, nil
}

// Resolve returns one frame per whole hour from the hour containing tr.Start up
// to the last whole hour not after tr.End. An inverted range yields nil.
func (r *Resolver) Resolve(tr TimeRange) []Frame {
	if tr.Start.After(tr.End) {
		return nil
	}

	var frames []Frame
	for current := HourTruncate(tr.Start); !current.After(tr.End); current = current.Add(time.Hour) {
		index := len(frames)
		frames = append(frames, Frame{
			Index:         index,
			Timestamp:     current,
			TileReference: r.TileReference(current),
			LayerID:       LayerIDFor(index),
		})
	}
	return frames
}

// StoragePath is the bucket object holding the one-hour QPE pass-2 raster for
// the hour containing t, using t's own calendar.
func (r *Resolver) StoragePath(t time.Time) string {
	y, m, d := t.Date()
	h := t.Hour()
	return fmt.Sprintf("s3://%s/MRMS/%04d/%02d/%02d/MultiSensor_QPE_01H_Pass2_00.00_%04d%02d%02d-%02d0000.tif",
		r.bucket, y, int(m), d, y, int(m), d, h)
}

// TileReference builds the tile URL template for the hour containing t.
func (r *Resolver) TileReference(t time.Time) string {
	return r.tileBase + encodeURIComponent(r.StoragePath(t)) + r.params
}

// HourTruncate drops minutes and below in t's own location, so zones with
// fractional-hour offsets keep their local hour boundary. The offset of t is
// kept, which matters inside a repeated fall-back hour.
func HourTruncate(t time.Time) time.Time {
	sub := time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return t.Add(-sub).Round(0)
}

// FormatLabel is the overlay text for a frame timestamp.
func FormatLabel(ts time.Time) string {
	return "Date & Time: " + ts.Format("2006-01-02 15:00:00")
}
