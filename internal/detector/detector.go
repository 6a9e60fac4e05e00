package detector

import (
	"context"
	"errors"

	"gocv.io/x/gocv"
)

// ErrEstimatorUnavailable is returned when the pose estimator cannot be loaded.
// Detection is halted for the rest of the session when it occurs.
var ErrEstimatorUnavailable = errors.New("pose estimator unavailable")

// ErrNotLoaded is returned by Detect when the estimator is not running.
// Callers reload it through Load instead of waiting inside Detect.
var ErrNotLoaded = errors.New("pose estimator not loaded")

// Detector defines the interface for pose estimation implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the detected poses.
	// Returns an empty slice if nobody is in frame.
	Detect(frame *gocv.Mat) ([]Pose, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Loader is implemented by detectors that need an explicit warm-up before
// the first Detect call, such as loading model weights.
type Loader interface {
	Load(ctx context.Context) error
}

// Load warms up d if it implements Loader. Failures are reported as
// ErrEstimatorUnavailable.
func Load(ctx context.Context, d Detector) error {
	if d == nil {
		return ErrEstimatorUnavailable
	}
	l, ok := d.(Loader)
	if !ok {
		return nil
	}
	if err := l.Load(ctx); err != nil {
		return errors.Join(ErrEstimatorUnavailable, err)
	}
	return nil
}

// Config holds configuration options for pose detection.
type Config struct {
	// ModelType selects the MoveNet variant ("lightning" or "thunder").
	ModelType string

	// EnableSmoothing turns on temporal keypoint smoothing in the estimator.
	EnableSmoothing bool

	// MinPoseScore is the minimum overall pose score reported by the estimator.
	MinPoseScore float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelType:       "lightning",
		EnableSmoothing: true,
		MinPoseScore:    0.2,
	}
}
