// Package scanner is the device-and-biometrics engine: it owns the scanner
// session state machine, drives capture through a pluggable backend, and
// turns raw frames into quality-scored templates.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/veritouch/fpscan/internal/config"
	"github.com/veritouch/fpscan/pkg/fmr"
	"github.com/veritouch/fpscan/pkg/fpimage"
	"github.com/veritouch/fpscan/pkg/matcher"
)

// State is the session lifecycle state. Callers observe it through Status
// snapshots only.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Capturing
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Capturing:
		return "capturing"
	default:
		return "disconnected"
	}
}

// Session owns exactly one backend and serializes all access to it. Engine
// operations are safe to call from any goroutine; transfers never interleave
// on the underlying handle.
type Session struct {
	cfg     *config.Config
	backend Backend
	events  *subscribers

	// mu guards the state fields; opMu is held for the duration of any
	// backend operation so a disconnect waits out an active capture instead
	// of closing the handle under it.
	mu   sync.Mutex
	opMu sync.Mutex

	state State
	info  DeviceInfo
}

// NewSession wires a session to a backend chosen by the caller (usually via
// Probe).
func NewSession(cfg *config.Config, backend Backend) *Session {
	return &Session{
		cfg:     cfg,
		backend: backend,
		events:  newSubscribers(),
	}
}

// Subscribe registers a lifecycle event listener. The returned cancel
// function must be called to release it.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

// ConnectResult reports the outcome of a Connect call.
type ConnectResult struct {
	AlreadyConnected bool       `json:"alreadyConnected"`
	Device           DeviceInfo `json:"device"`
}

// Connect opens the device. Calling it while connected is idempotent: it
// reports the existing device instead of reopening the handle.
func (s *Session) Connect(ctx context.Context) (ConnectResult, error) {
	s.mu.Lock()
	switch s.state {
	case Connected, Capturing:
		info := s.info
		s.mu.Unlock()
		return ConnectResult{AlreadyConnected: true, Device: info}, nil
	case Connecting:
		s.mu.Unlock()
		return ConnectResult{}, newError(KindConnection, "connect already in progress", nil)
	}
	s.state = Connecting
	s.mu.Unlock()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	info, err := s.backend.Open(ctx)
	if err != nil {
		s.setState(Disconnected)
		return ConnectResult{}, err
	}

	s.mu.Lock()
	s.state = Connected
	s.info = info
	s.mu.Unlock()

	slog.Info("scanner connected",
		slog.String("backend", info.Backend),
		slog.String("transfer_mode", info.TransferMode))
	s.events.emit(Event{Type: EventConnected, Device: &info})
	return ConnectResult{Device: info}, nil
}

// Disconnect closes the device. It always succeeds from the caller's point
// of view; teardown errors are logged and swallowed. A capture in flight
// finishes (or times out) first.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.backend.Close(); err != nil {
		slog.Warn("backend close failed", slog.Any("error", err))
	}

	s.mu.Lock()
	s.state = Disconnected
	s.info = DeviceInfo{}
	s.mu.Unlock()

	slog.Info("scanner disconnected")
	s.events.emit(Event{Type: EventDisconnected})
}

// Status is a point-in-time snapshot; it never blocks behind transfers.
type Status struct {
	Connected bool        `json:"connected"`
	Capturing bool        `json:"capturing"`
	Device    *DeviceInfo `json:"device,omitempty"`
}

// Status reports the session state without touching the device.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Connected: s.state == Connected || s.state == Capturing,
		Capturing: s.state == Capturing,
	}
	if st.Connected {
		info := s.info
		st.Device = &info
	}
	return st
}

// CaptureOptions override the configured capture parameters. Zero values
// fall back to the configuration.
type CaptureOptions struct {
	Timeout    time.Duration `json:"-"`
	TimeoutMs  int           `json:"timeoutMs,omitempty"`
	MinQuality int           `json:"minQuality,omitempty"`
}

func (o CaptureOptions) timeout(cfg *config.Config) time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	if o.TimeoutMs > 0 {
		return time.Duration(o.TimeoutMs) * time.Millisecond
	}
	return cfg.Capture.Timeout()
}

func (o CaptureOptions) minQuality(cfg *config.Config) int {
	if o.MinQuality > 0 {
		return o.MinQuality
	}
	return cfg.Capture.MinQuality
}

// CaptureResult is the engine's capture payload. Byte fields serialize as
// base64 at textual boundaries.
type CaptureResult struct {
	Image     []byte    `json:"image"`
	Template  []byte    `json:"template"`
	Quality   int       `json:"quality"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Timestamp time.Time `json:"timestamp"`
}

// Capture runs one acquisition: LED on, finger polling until the timeout,
// bounded image-read attempts with plausibility validation, synthetic
// fallback when hardware paths fail, quality gate, template encoding. A
// second Capture while one is in flight fails immediately with
// ErrAlreadyCapturing.
func (s *Session) Capture(ctx context.Context, opts CaptureOptions) (*CaptureResult, error) {
	s.mu.Lock()
	switch s.state {
	case Capturing:
		s.mu.Unlock()
		return nil, ErrAlreadyCapturing
	case Connected:
	default:
		st := s.state
		s.mu.Unlock()
		return nil, newError(KindConnection, fmt.Sprintf("cannot capture while %s", st), nil)
	}
	s.state = Capturing
	s.mu.Unlock()

	s.events.emit(Event{Type: EventCaptureStart})

	s.opMu.Lock()
	defer s.opMu.Unlock()
	defer func() {
		// A Disconnect may have won the operation lock between our state
		// transition and here; restore Connected only if the capture still
		// owns the state.
		s.mu.Lock()
		if s.state == Capturing {
			s.state = Connected
		}
		s.mu.Unlock()
	}()

	result, err := s.capture(ctx, opts)
	if err != nil {
		s.events.emit(Event{Type: EventCaptureError, ErrorKind: KindOf(err), Error: err.Error()})
		return nil, err
	}
	s.events.emit(Event{Type: EventCaptureComplete, Result: result})
	return result, nil
}

func (s *Session) capture(ctx context.Context, opts CaptureOptions) (*CaptureResult, error) {
	if err := s.backend.SetLED(true); err != nil {
		slog.Warn("LED on failed", slog.Any("error", err))
	}
	defer func() {
		if err := s.backend.SetLED(false); err != nil {
			slog.Warn("LED off failed", slog.Any("error", err))
		}
	}()

	if err := s.waitForFinger(ctx, opts.timeout(s.cfg)); err != nil {
		return nil, err
	}
	s.events.emit(Event{Type: EventFingerDetected})

	img, err := s.acquireFrame(ctx)
	if err != nil {
		return nil, err
	}

	quality := fpimage.Quality(img)
	if minQ := opts.minQuality(s.cfg); quality < minQ {
		return nil, newError(KindLowQuality,
			fmt.Sprintf("image quality %d below required %d", quality, minQ), nil)
	}

	minutiae := fpimage.ExtractMinutiae(img)
	template, err := fmr.Encode(uint16(img.Width), uint16(img.Height), uint16(s.cfg.Capture.DPI), minutiae)
	if err != nil {
		return nil, newError(KindCorruptTemplate, "encode template", err)
	}

	slog.Info("capture complete",
		slog.Int("quality", quality),
		slog.Int("minutiae", len(minutiae)))
	return &CaptureResult{
		Image:     img.Pixels,
		Template:  template,
		Quality:   quality,
		Width:     img.Width,
		Height:    img.Height,
		Timestamp: time.Now(),
	}, nil
}

// waitForFinger polls the detection command at the configured interval until
// the budget elapses. A transport that cannot answer the command does not
// block capture: detection degrades to optimistic and the quality gate
// rejects bad reads instead.
func (s *Session) waitForFinger(ctx context.Context, budget time.Duration) error {
	deadline := time.Now().Add(budget)
	interval := s.cfg.Capture.PollInterval()
	for {
		present, err := s.backend.FingerPresent(pollTimeout)
		if err != nil {
			if isConnectionError(err) {
				return err
			}
			slog.Warn("finger detection unsupported, proceeding optimistically", slog.Any("error", err))
			return nil
		}
		if present {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNoFinger
		}
		select {
		case <-ctx.Done():
			return newError(KindTransferTimeout, "capture cancelled", ctx.Err())
		case <-time.After(interval):
		}
	}
}

// acquireFrame tries the hardware read a bounded number of times, validating
// each frame for plausibility, then falls back to a synthetic frame. A
// backend that is no longer open fails the capture instead of synthesizing.
func (s *Session) acquireFrame(ctx context.Context) (*fpimage.Image, error) {
	width, height := s.cfg.Capture.Width, s.cfg.Capture.Height
	size := s.cfg.Capture.ImageSize()

	for attempt := 1; attempt <= s.cfg.Capture.MaxReadAttempts; attempt++ {
		raw, err := s.backend.ReadImage(ctx, size)
		if err != nil {
			if isConnectionError(err) {
				return nil, err
			}
			slog.Warn("image read failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				break
			}
			continue
		}
		img, err := fpimage.New(width, height, raw)
		if err != nil {
			slog.Warn("image geometry mismatch", slog.Any("error", err))
			continue
		}
		if !img.Plausible() {
			slog.Warn("implausible frame, treating as no finger", slog.Int("attempt", attempt))
			continue
		}
		return img, nil
	}

	slog.Warn("hardware capture failed, falling back to synthetic frame")
	return fpimage.Synthesize(width, height, time.Now().UnixNano()), nil
}

// isConnectionError reports whether err tags a dead or closed backend, as
// opposed to a transient transfer failure.
func isConnectionError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindConnection
}

// Match compares two encoded templates with the configured tolerances. It is
// total: undecodable templates produce a zero-score non-match.
func (s *Session) Match(templateA, templateB []byte) matcher.Result {
	return matcher.Match(templateA, templateB, matcher.Options{
		DistanceThreshold: s.cfg.Match.DistanceThreshold,
		AngleThreshold:    s.cfg.Match.AngleThreshold,
		ScoreThreshold:    s.cfg.Match.ScoreThreshold,
		StrictPairing:     s.cfg.Match.StrictPairing,
	})
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
