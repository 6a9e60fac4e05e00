package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/stylecam/internal/detector"
	"github.com/ayusman/stylecam/internal/gesture"
	"github.com/ayusman/stylecam/internal/overlay"
	"github.com/ayusman/stylecam/internal/store"
)

// handle applies one command on the loop goroutine.
func (s *Session) handle(ctx context.Context, kind commandKind) error {
	var err error
	switch kind {
	case cmdStart:
		err = s.start(ctx)
	case cmdCapture:
		err = s.captureNow()
	case cmdRetake:
		err = s.retake(ctx)
	case cmdStop:
		s.stop()
	}
	if err != nil {
		log.Printf("Session %s failed: %v", kind, err)
	}
	s.publish()
	return err
}

func (s *Session) start(ctx context.Context) error {
	if s.state != Idle {
		return nil
	}
	if err := s.openCamera(); err != nil {
		return err
	}
	s.state = Streaming
	log.Println("Camera streaming")
	s.resumeDetection(ctx)
	return nil
}

// resumeDetection moves a streaming session to Detecting once the
// estimator is ready, loading it in the background the first time.
func (s *Session) resumeDetection(ctx context.Context) {
	if s.estimatorReady {
		s.state = Detecting
		return
	}
	if s.loadStarted {
		return
	}
	s.loadStarted = true

	go func() {
		s.loaded <- detector.Load(ctx, s.detector)
	}()
}

// reloadEstimator drops back to Streaming and loads the estimator again in
// the background after it stopped running.
func (s *Session) reloadEstimator(ctx context.Context, cause error) {
	log.Printf("Pose estimator stopped, reloading: %v", cause)
	s.lastErr = cause
	s.estimatorReady = false
	s.loadStarted = false
	s.trigger.Reset()
	s.state = Streaming
	s.resumeDetection(ctx)
	s.publish()
}

// estimatorLoaded records the outcome of the background load. A failed
// load halts detection for the rest of the session.
func (s *Session) estimatorLoaded(err error) {
	if err != nil {
		s.estimatorErr = err
		log.Printf("Pose estimator unavailable, manual capture only: %v", err)
	} else {
		s.estimatorReady = true
		log.Println("Pose estimator ready")
		if s.state == Streaming {
			s.state = Detecting
		}
	}
	s.publish()
}

// tick processes one frame.
func (s *Session) tick(ctx context.Context) {
	if !s.state.Live() {
		return
	}

	frame, err := s.camera.ReadFrame()
	if err != nil {
		s.lastErr = fmt.Errorf("read frame: %w", err)
		log.Printf("Error reading frame: %v", err)
		s.publish()
		return
	}
	defer frame.Close()

	s.frames++
	frame.CopyTo(&s.lastFrame)

	var pose *detector.Pose
	res := gesture.Result{Status: gesture.NotDetected}

	if s.state == Detecting {
		poses, err := s.detector.Detect(frame)
		if errors.Is(err, detector.ErrNotLoaded) {
			s.reloadEstimator(ctx, err)
			return
		}
		if err != nil {
			s.failures++
			s.lastErr = fmt.Errorf("%w: %v", ErrFrameDetection, err)
			log.Printf("Error detecting pose: %v", err)
			s.publish()
			return
		}
		pose = detector.First(poses)
		// Shapes are defined in the selfie view; the estimator reports the
		// raw camera frame.
		res = s.trigger.Evaluate(pose.Mirror(frame.Cols()), s.now())
	}

	s.lastResult = res
	s.lastBox = s.displayBox(pose, frame.Cols(), frame.Rows())
	s.renderPreview(frame, pose, res)

	if res.Status == gesture.Captured {
		log.Printf("Gesture %s held for %v, capturing", s.config.Shape, s.trigger.Threshold())
		if err := s.takePhoto(frame, string(s.config.Shape)); err != nil {
			s.lastErr = err
			log.Printf("Error capturing photo: %v", err)
		}
	}
	s.publish()
}

// displayBox returns the padded box drawn for pose in preview coordinates,
// or nil if there is none.
func (s *Session) displayBox(pose *detector.Pose, width, height int) *overlay.Box {
	box, ok := overlay.BoundingBox(pose)
	if !ok {
		return nil
	}
	box = s.renderer.Padding.Apply(box).Clamp(float64(width), float64(height))
	if s.config.Mirrored {
		box = box.Mirror(width)
	}
	return &box
}

// renderPreview draws the overlay over a copy of frame and stores it as the
// latest preview JPEG.
func (s *Session) renderPreview(frame *gocv.Mat, pose *detector.Pose, res gesture.Result) {
	if s.surface.Cols() != frame.Cols() || s.surface.Rows() != frame.Rows() {
		s.surface.Close()
		s.surface = overlay.NewSurface(frame.Cols(), frame.Rows())
	}
	s.renderer.Render(&s.surface, pose, res)

	preview := frame.Clone()
	defer preview.Close()
	if s.config.Mirrored {
		gocv.Flip(preview, &preview, 1)
	}
	overlay.Composite(&preview, s.surface)

	data, err := encodeJPEG(preview, PreviewQuality)
	if err != nil {
		log.Printf("Error encoding preview: %v", err)
		return
	}

	s.mu.Lock()
	s.preview = data
	s.mu.Unlock()
}

// captureNow takes a photo on request from the most recent frame.
func (s *Session) captureNow() error {
	if !s.state.Live() {
		return ErrNotStreaming
	}

	if s.lastFrame.Empty() {
		frame, err := s.camera.ReadFrame()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		defer frame.Close()
		frame.CopyTo(&s.lastFrame)
	}

	log.Println("Manual capture requested")
	return s.takePhoto(&s.lastFrame, ManualTrigger)
}

// takePhoto encodes frame, stops the camera and holds the photo for review.
func (s *Session) takePhoto(frame *gocv.Mat, trigger string) error {
	data, err := encodeJPEG(*frame, CaptureQuality)
	if err != nil {
		return fmt.Errorf("encode photo: %w", err)
	}

	c := Capture{
		ID:      uuid.NewString(),
		Trigger: trigger,
		Image:   data,
		Width:   frame.Cols(),
		Height:  frame.Rows(),
		At:      s.now(),
	}

	s.trigger.Reset()
	s.stopCamera()

	s.state = Captured
	s.captureID = c.ID
	s.publish()

	s.mu.Lock()
	s.image = data
	s.mu.Unlock()
	s.state = Reviewing

	if s.config.Store != nil {
		err := s.config.Store.Captures().Create(&store.Capture{
			ID:      c.ID,
			Trigger: c.Trigger,
			Image:   c.Image,
			Width:   c.Width,
			Height:  c.Height,
		})
		if err != nil {
			s.lastErr = fmt.Errorf("save capture: %w", err)
			log.Printf("Error saving capture %s: %v", c.ID, err)
		}
	}

	log.Printf("Captured photo %s (%dx%d, %d bytes)", c.ID, c.Width, c.Height, len(data))
	if s.config.OnCapture != nil {
		s.config.OnCapture(c)
	}
	return nil
}

func (s *Session) retake(ctx context.Context) error {
	if s.state != Reviewing {
		return ErrNothingCaptured
	}
	if err := s.openCamera(); err != nil {
		return err
	}

	s.mu.Lock()
	s.image = nil
	s.mu.Unlock()
	s.captureID = ""
	s.lastErr = nil
	s.lastResult = gesture.Result{}
	s.lastBox = nil

	s.state = Streaming
	s.resumeDetection(ctx)
	log.Println("Retake: camera streaming again")
	return nil
}

func (s *Session) stop() {
	s.stopCamera()
	s.mu.Lock()
	s.image = nil
	s.preview = nil
	s.mu.Unlock()
	s.captureID = ""
	s.lastResult = gesture.Result{}
	s.lastBox = nil
	s.state = Idle
	log.Println("Camera stopped")
}

// checkLiveness restarts the camera when it has closed underneath a live
// session or when its frames have stopped changing.
func (s *Session) checkLiveness() {
	if !s.state.Live() {
		return
	}

	if !s.camera.IsOpen() {
		s.restart("camera closed")
		return
	}
	if stalled, _ := s.stall.Check(&s.lastFrame); stalled {
		s.restart("feed stalled")
	}
}

func (s *Session) restart(reason string) {
	log.Printf("Restarting camera: %s", reason)
	s.restarts++
	s.stopCamera()
	if err := s.openCamera(); err != nil {
		s.lastErr = err
		log.Printf("Error reopening camera: %v", err)
	}
	s.publish()
}

// openCamera opens the camera and clears per-stream state.
func (s *Session) openCamera() error {
	if err := s.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	if s.config.FPS > 0 {
		s.camera.SetFPS(s.config.FPS)
	}
	s.trigger.Reset()
	s.stall.Reset()
	return nil
}

// stopCamera closes the camera and drops the last frame.
func (s *Session) stopCamera() {
	if err := s.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	s.stall.Reset()
	s.lastFrame.Close()
	s.lastFrame = gocv.NewMat()
}

// encodeJPEG encodes img at the given quality.
func encodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, errors.New("empty frame")
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}
