package timelapse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/i474232898/precip-timelapse/internal/common"
	"github.com/i474232898/precip-timelapse/internal/platform/metrics"
)

const (
	// DefaultInterval is the pause between two revealed frames.
	DefaultInterval = time.Second

	// DefaultOpTimeout bounds a single map surface call made from a tick.
	DefaultOpTimeout = 5 * time.Second
)

// Options tunes an Animator. Zero values fall back to the defaults.
type Options struct {
	Interval  time.Duration
	OpTimeout time.Duration
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

type pendingAction struct {
	name string
	run  func(ctx context.Context) error
	// play marks select and download; a newer play replaces a queued one.
	play bool
}

// Animator binds the user actions (select dates, download, reset) to animation
// sessions. It holds at most one session; starting a new one first tears the
// previous one down completely. Actions that arrive before a map surface is
// attached are queued and replayed in arrival order by Attach.
type Animator struct {
	resolver  *Resolver
	ticker    Ticker
	interval  time.Duration
	opTimeout time.Duration
	log       zerolog.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	layers  MapLayerPort
	label   OverlayLabelPort
	pending []pendingAction
	current *Session
}

// NewAnimator creates an Animator with no surface attached.
func NewAnimator(resolver *Resolver, ticker Ticker, opts Options) *Animator {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	opTimeout := opts.OpTimeout
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Animator{
		resolver:  resolver,
		ticker:    ticker,
		interval:  interval,
		opTimeout: opTimeout,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Interval returns the configured tick interval.
func (a *Animator) Interval() time.Duration {
	return a.interval
}

// Resolve exposes the resolver for read-only frame previews.
func (a *Animator) Resolve(tr TimeRange) []Frame {
	return a.resolver.Resolve(tr)
}

// Ready reports whether a map surface is attached.
func (a *Animator) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readyLocked()
}

func (a *Animator) readyLocked() bool {
	return a.layers != nil && a.label != nil
}

// Attach makes the map surface available and replays deferred actions in the
// order they arrived. Attaching an already attached animator only drains the
// queue.
func (a *Animator) Attach(ctx context.Context, layers MapLayerPort, label OverlayLabelPort) error {
	if layers == nil || label == nil {
		return errors.New("attach: layer and label ports are required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.readyLocked() {
		a.layers = layers
		a.label = label
		a.log.Info().Int("pending", len(a.pending)).Msg("map surface attached")
	}

	pending := a.pending
	a.pending = nil

	var errs []error
	for _, p := range pending {
		a.log.Debug().Str("action", p.name).Msg("running deferred action")
		if err := p.run(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}

// Play is the select-dates action: it resolves tr and starts a session,
// superseding any previous one. It returns ErrDeferred if no surface is attached yet.
func (a *Animator) Play(ctx context.Context, tr TimeRange) (SessionSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.readyLocked() {
		a.deferLocked(pendingAction{name: "select", play: true, run: func(ctx context.Context) error {
			_, err := a.playLocked(ctx, tr)
			return err
		}})
		return SessionSnapshot{Status: StatusIdle, Range: tr, IntervalMS: a.interval.Milliseconds()}, ErrDeferred
	}
	return a.playLocked(ctx, tr)
}

// Download is the download action. No animated artifact is produced; the
// frames are revealed exactly as Play does.
func (a *Animator) Download(ctx context.Context, tr TimeRange) (SessionSnapshot, error) {
	a.log.Info().Msg("download requested; revealing frames without exporting an artifact")
	return a.Play(ctx, tr)
}

// Reset cancels the current session and sweeps every engine layer and the
// label off the surface, including layers left behind by earlier sessions.
func (a *Animator) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.readyLocked() {
		a.deferLocked(pendingAction{name: "reset", run: a.clearLocked})
		return ErrDeferred
	}
	return a.clearLocked(ctx)
}

// Current returns a snapshot of the most recent session, if any.
func (a *Animator) Current() (SessionSnapshot, bool) {
	a.mu.Lock()
	s := a.current
	a.mu.Unlock()

	if s == nil {
		return SessionSnapshot{}, false
	}
	return s.Snapshot(), true
}

// Close stops the current session's ticker and clears its visuals. Deferred
// actions are dropped.
func (a *Animator) Close(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = nil
	if a.current != nil {
		a.current.Cancel(ctx)
	}
}

// deferLocked queues p. Consecutive plays collapse into the latest one, the
// same way a later date selection overwrites an earlier one.
func (a *Animator) deferLocked(p pendingAction) {
	if n := len(a.pending); p.play && n > 0 && a.pending[n-1].play {
		a.pending[n-1] = p
	} else {
		a.pending = append(a.pending, p)
	}
	a.metrics.IncActionsDeferred()
	a.log.Info().Str("action", p.name).Int("pending", len(a.pending)).Msg("map surface not ready; action deferred")
}

// playLocked must complete the teardown of the previous session before the new
// ticker is armed. Caller must hold a.mu.
func (a *Animator) playLocked(ctx context.Context, tr TimeRange) (SessionSnapshot, error) {
	frames := a.resolver.Resolve(tr)

	if err := a.clearLocked(ctx); err != nil {
		return SessionSnapshot{}, err
	}

	s := newSession(sessionConfig{
		id:        uuid.NewString(),
		tr:        tr,
		frames:    frames,
		interval:  a.interval,
		opTimeout: a.opTimeout,
		layers:    a.layers,
		label:     a.label,
		log:       a.log,
		metrics:   a.metrics,
	})
	if err := s.start(a.ticker); err != nil {
		return SessionSnapshot{}, err
	}
	a.current = s
	a.metrics.IncSessionsStarted()
	return s.Snapshot(), nil
}

// clearLocked cancels the current session, then removes every layer carrying
// the engine prefix and the label. Caller must hold a.mu.
func (a *Animator) clearLocked(ctx context.Context) error {
	if a.current != nil {
		a.current.Cancel(ctx)
	}

	ids, err := a.layers.ListLayerIDs(ctx)
	if err != nil {
		return fmt.Errorf("list layers: %w", err)
	}

	swept := 0
	var errs []error
	for _, id := range common.FilterPrefix(ids, LayerIDPrefix) {
		if err := a.layers.RemoveLayer(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("remove layer %s: %w", id, err))
			continue
		}
		swept++
	}
	a.metrics.AddLayersRemoved(swept)

	if err := a.label.Remove(ctx); err != nil {
		errs = append(errs, fmt.Errorf("remove label: %w", err))
	}

	if swept > 0 {
		a.log.Info().Int("layers_removed", swept).Msg("swept leftover layers")
	}
	return errors.Join(errs...)
}
