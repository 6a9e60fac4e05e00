// Package session runs the live capture loop: it reads camera frames, feeds
// them through the pose estimator and gesture trigger, draws the overlay,
// and takes the photo when the gesture has been held long enough.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/stylecam/internal/capture"
	"github.com/ayusman/stylecam/internal/detector"
	"github.com/ayusman/stylecam/internal/gesture"
	"github.com/ayusman/stylecam/internal/overlay"
	"github.com/ayusman/stylecam/internal/store"
)

// Loop timing defaults.
const (
	// DefaultLivenessInterval is how often the camera is checked for a
	// dropped or frozen feed.
	DefaultLivenessInterval = time.Second
	// DefaultStallChecks is how many unchanged liveness checks in a row
	// count as a frozen feed.
	DefaultStallChecks = 3
	// CaptureQuality is the JPEG quality of captured photos.
	CaptureQuality = 90
	// PreviewQuality is the JPEG quality of the live preview.
	PreviewQuality = 75
)

var (
	// ErrFrameDetection wraps an estimator failure on a single frame.
	// The frame is skipped and the loop continues.
	ErrFrameDetection = errors.New("frame detection failed")
	// ErrNothingCaptured is returned when a photo is requested but none is held.
	ErrNothingCaptured = errors.New("nothing captured")
	// ErrNotStreaming is returned when a capture is requested while the
	// camera is not delivering frames.
	ErrNotStreaming = errors.New("camera is not streaming")
	// ErrNotRunning is returned by commands sent after Run has exited.
	ErrNotRunning = errors.New("session is not running")
)

// Config holds the session's collaborators and settings.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	// Store persists captures when set.
	Store *store.Store

	Shape     gesture.Shape
	Threshold time.Duration
	Mirrored  bool
	// Padding inflates the drawn box. The zero value draws the tight
	// keypoint box.
	Padding overlay.Padding

	// FPS is the frame tick rate. Zero uses the camera's rate.
	FPS              int
	StallChecks      int
	LivenessInterval time.Duration

	// OnCapture is called from the loop goroutine after each capture.
	OnCapture func(Capture)

	// Now is the clock used for hold timing. Nil uses time.Now.
	Now func() time.Time
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdCapture
	cmdRetake
	cmdStop
)

func (k commandKind) String() string {
	switch k {
	case cmdStart:
		return "start"
	case cmdCapture:
		return "capture"
	case cmdRetake:
		return "retake"
	}
	return "stop"
}

type command struct {
	kind  commandKind
	reply chan error
}

// Session owns the camera, estimator and trigger. All of its mutable state
// belongs to the goroutine running Run; other goroutines send commands and
// read snapshots.
type Session struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector
	trigger  *gesture.Trigger
	renderer *overlay.Renderer
	stall    *capture.StallDetector
	now      func() time.Time

	cmds    chan command
	loaded  chan error
	done    chan struct{}
	running atomic.Bool

	// Loop-owned state.
	state          State
	loadStarted    bool
	estimatorReady bool
	estimatorErr   error
	lastErr        error
	lastResult     gesture.Result
	lastBox        *overlay.Box
	lastFrame      gocv.Mat
	surface        gocv.Mat
	captureID      string
	frames         uint64
	failures       uint64
	restarts       int

	mu       sync.RWMutex
	snapshot Snapshot
	preview  []byte
	image    []byte
}

// New creates a Session. Camera and Detector are required.
func New(config Config) (*Session, error) {
	if config.Camera == nil {
		return nil, errors.New("camera is required")
	}
	if config.Detector == nil {
		return nil, fmt.Errorf("detector is required: %w", detector.ErrEstimatorUnavailable)
	}
	if config.Shape == "" {
		config.Shape = gesture.ShapeHandAtEyeLevel
	}
	if config.LivenessInterval <= 0 {
		config.LivenessInterval = DefaultLivenessInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	trigger := gesture.NewTrigger(config.Shape, config.Threshold)
	renderer := overlay.NewRenderer(config.Shape.Prompt(), config.Mirrored)
	renderer.Padding = config.Padding

	s := &Session{
		config:    config,
		camera:    config.Camera,
		detector:  config.Detector,
		trigger:   trigger,
		renderer:  renderer,
		stall:     capture.NewStallDetector(config.StallChecks),
		now:       config.Now,
		cmds:      make(chan command),
		loaded:    make(chan error, 1),
		done:      make(chan struct{}),
		lastFrame: gocv.NewMat(),
		surface:   gocv.NewMat(),
	}
	s.publish()
	return s, nil
}

// Run drives the session until ctx is cancelled. It may only be called once.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("session already running")
	}
	defer close(s.done)
	defer s.shutdown()

	fps := s.config.FPS
	if fps <= 0 {
		fps = s.camera.FPS()
	}
	if fps <= 0 {
		fps = capture.DefaultFPS
	}

	frames := time.NewTicker(time.Second / time.Duration(fps))
	defer frames.Stop()
	liveness := time.NewTicker(s.config.LivenessInterval)
	defer liveness.Stop()

	log.Printf("Capture session running at %d FPS, waiting for %s", fps, s.config.Shape)

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.cmds:
			cmd.reply <- s.handle(ctx, cmd.kind)
		case err := <-s.loaded:
			s.estimatorLoaded(err)
		case <-frames.C:
			s.tick(ctx)
		case <-liveness.C:
			s.checkLiveness()
		}
	}
}

// Start opens the camera and begins loading the estimator.
func (s *Session) Start(ctx context.Context) error {
	return s.send(ctx, cmdStart)
}

// Capture takes a photo of the current frame immediately.
func (s *Session) Capture(ctx context.Context) error {
	return s.send(ctx, cmdCapture)
}

// Retake discards the held photo and restarts the camera.
func (s *Session) Retake(ctx context.Context) error {
	return s.send(ctx, cmdRetake)
}

// Stop closes the camera and returns the session to Idle.
func (s *Session) Stop(ctx context.Context) error {
	return s.send(ctx, cmdStop)
}

func (s *Session) send(ctx context.Context, kind commandKind) error {
	reply := make(chan error, 1)
	select {
	case s.cmds <- command{kind: kind, reply: reply}:
	case <-s.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snapshot
	if snap.Box != nil {
		box := *snap.Box
		snap.Box = &box
	}
	return snap
}

// Preview returns the latest composited preview frame as JPEG, or nil
// before the first frame.
func (s *Session) Preview() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preview
}

// Image returns the held photo as JPEG.
func (s *Session) Image() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.image == nil {
		return nil, ErrNothingCaptured
	}
	return s.image, nil
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close releases the estimator. Call it after Run has returned.
func (s *Session) Close() error {
	s.stall.Close()
	return s.detector.Close()
}

// shutdown releases loop-owned resources when Run exits.
func (s *Session) shutdown() {
	if err := s.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	s.lastFrame.Close()
	s.surface.Close()
	s.state = Idle
	s.publish()
	log.Println("Capture session stopped")
}

// publish copies loop-owned state into the shared snapshot.
func (s *Session) publish() {
	snap := Snapshot{
		State:             s.state,
		Shape:             s.config.Shape,
		Prompt:            s.config.Shape.Prompt(),
		Result:            s.lastResult,
		CaptureID:         s.captureID,
		Frames:            s.frames,
		DetectionFailures: s.failures,
		Restarts:          s.restarts,
		UpdatedAt:         s.now(),
	}
	if s.lastBox != nil {
		box := *s.lastBox
		snap.Box = &box
	}
	if s.estimatorErr != nil {
		snap.EstimatorError = s.estimatorErr.Error()
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}
