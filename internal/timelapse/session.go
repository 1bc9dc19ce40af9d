package timelapse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/precip-timelapse/internal/platform/metrics"
)

// SessionSnapshot is a point-in-time view of a session, safe to serialize.
type SessionSnapshot struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Range      TimeRange `json:"range"`
	Cursor     int       `json:"cursor"`
	Total      int       `json:"total"`
	IntervalMS int64     `json:"intervalMs"`
	Current    *Frame    `json:"current,omitempty"`
	Label      string    `json:"label,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
}

// Session is one run of the animation: it owns its frames, its cursor and its
// ticker handle. The ticker is the only thing that advances the cursor; Cancel
// is the only thing that ends a running session early.
type Session struct {
	id        string
	tr        TimeRange
	frames    []Frame
	interval  time.Duration
	opTimeout time.Duration
	layers    MapLayerPort
	label     OverlayLabelPort
	log       zerolog.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	status     Status
	cursor     int
	handle     TickerHandle
	revealed   []string
	labelShown bool
	current    *Frame
	startedAt  time.Time
}

type sessionConfig struct {
	id        string
	tr        TimeRange
	frames    []Frame
	interval  time.Duration
	opTimeout time.Duration
	layers    MapLayerPort
	label     OverlayLabelPort
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

func newSession(cfg sessionConfig) *Session {
	return &Session{
		id:        cfg.id,
		tr:        cfg.tr,
		frames:    cfg.frames,
		interval:  cfg.interval,
		opTimeout: cfg.opTimeout,
		layers:    cfg.layers,
		label:     cfg.label,
		log:       cfg.log.With().Str("session_id", cfg.id).Logger(),
		metrics:   cfg.metrics,
		status:    StatusIdle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a copy of the session's observable state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		ID:         s.id,
		Status:     s.status,
		Range:      s.tr,
		Cursor:     s.cursor,
		Total:      len(s.frames),
		IntervalMS: s.interval.Milliseconds(),
		StartedAt:  s.startedAt,
	}
	if s.current != nil {
		f := *s.current
		snap.Current = &f
		if s.status != StatusCancelled {
			snap.Label = FormatLabel(f.Timestamp)
		}
	}
	return snap
}

// start arms the ticker. An empty frame sequence finishes immediately without
// touching the map surface.
func (s *Session) start(ticker Ticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusIdle {
		return fmt.Errorf("session %s cannot start from %s", s.id, s.status)
	}

	s.startedAt = time.Now().UTC()
	s.status = StatusRunning

	if len(s.frames) == 0 {
		s.status = StatusExhausted
		s.log.Info().Msg("session has no frames; exhausted immediately")
		return nil
	}

	// The first tick blocks on s.mu until the handle is stored.
	handle, err := ticker.Every(s.interval, s.tick)
	if err != nil {
		s.status = StatusCancelled
		return fmt.Errorf("schedule ticks: %w", err)
	}
	s.handle = handle
	s.metrics.SetActiveSessions(1)

	s.log.Info().
		Int("frames", len(s.frames)).
		Dur("interval", s.interval).
		Time("range_start", s.tr.Start).
		Time("range_end", s.tr.End).
		Msg("session started")
	return nil
}

// tick reveals the frame under the cursor and advances it.
func (s *Session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return
	}

	if s.cursor < len(s.frames) {
		s.revealLocked(s.frames[s.cursor])
		s.cursor++
	}

	if s.cursor >= len(s.frames) {
		s.stopTickerLocked()
		s.status = StatusExhausted
		s.metrics.SetActiveSessions(0)
		s.log.Info().Int("revealed", len(s.revealed)).Msg("session exhausted")
	}
}

// revealLocked adds the frame's layer and points the label at its hour.
// Caller must hold s.mu.
func (s *Session) revealLocked(f Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	layer := f.Layer()
	if err := s.layers.AddLayer(ctx, layer); err != nil {
		if errors.Is(err, ErrLayerExists) {
			s.log.Error().Str("layer_id", layer.ID).Msg("layer id already on map surface")
		} else {
			s.log.Error().Err(err).Str("layer_id", layer.ID).Msg("add layer failed")
		}
	} else {
		s.revealed = append(s.revealed, layer.ID)
	}

	if !s.labelShown {
		if err := s.label.Ensure(ctx); err != nil {
			s.log.Error().Err(err).Msg("create overlay label failed")
		} else {
			s.labelShown = true
		}
	}
	if s.labelShown {
		if err := s.label.Update(ctx, FormatLabel(f.Timestamp)); err != nil {
			s.log.Error().Err(err).Msg("update overlay label failed")
		}
	}

	s.current = &f
	s.metrics.IncFramesRevealed()
	s.log.Debug().Int("index", f.Index).Time("timestamp", f.Timestamp).Msg("frame revealed")
}

// Cancel stops the ticker, removes every layer this session revealed and the
// label, and marks the session cancelled. It returns the number of layers
// removed. Cancelling an idle or already cancelled session does nothing.
//
// Once Cancel returns no tick of this session will touch the map surface.
func (s *Session) Cancel(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusIdle || s.status == StatusCancelled {
		return 0
	}

	if s.status == StatusRunning {
		s.metrics.SetActiveSessions(0)
	}
	s.stopTickerLocked()

	removed := 0
	for _, id := range s.revealed {
		if err := s.layers.RemoveLayer(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("layer_id", id).Msg("remove layer failed")
			continue
		}
		removed++
	}
	s.revealed = nil

	if s.labelShown {
		if err := s.label.Remove(ctx); err != nil {
			s.log.Warn().Err(err).Msg("remove overlay label failed")
		}
		s.labelShown = false
	}

	s.status = StatusCancelled
	s.metrics.IncSessionsCancelled()
	s.metrics.AddLayersRemoved(removed)
	s.log.Info().Int("cursor", s.cursor).Int("layers_removed", removed).Msg("session cancelled")
	return removed
}

func (s *Session) stopTickerLocked() {
	if s.handle != nil {
		s.handle.Stop()
		s.handle = nil
	}
}
