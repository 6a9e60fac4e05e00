package session

import (
	"time"

	"github.com/ayusman/stylecam/internal/gesture"
	"github.com/ayusman/stylecam/internal/overlay"
)

// State is the phase of the capture session.
type State int

const (
	// Idle means the camera is closed and nothing is happening.
	Idle State = iota
	// Streaming means frames are being shown but the estimator is not ready.
	Streaming
	// Detecting means every frame is run through the estimator and trigger.
	Detecting
	// Captured means a photo was just taken and is being handed off.
	Captured
	// Reviewing means a photo is held and the camera is stopped.
	Reviewing
)

func (s State) String() string {
	switch s {
	case Streaming:
		return "streaming"
	case Detecting:
		return "detecting"
	case Captured:
		return "captured"
	case Reviewing:
		return "reviewing"
	}
	return "idle"
}

// MarshalText encodes the state as its string name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Live reports whether the camera should be delivering frames.
func (s State) Live() bool {
	return s == Streaming || s == Detecting
}

// Snapshot is a copy of the session's observable state.
type Snapshot struct {
	State     State          `json:"state"`
	Shape     gesture.Shape  `json:"shape"`
	Prompt    string         `json:"prompt"`
	Result    gesture.Result `json:"result"`
	Box       *overlay.Box   `json:"box,omitempty"`
	CaptureID string         `json:"capture_id,omitempty"`

	EstimatorError string `json:"estimator_error,omitempty"`
	LastError      string `json:"last_error,omitempty"`

	Frames            uint64 `json:"frames"`
	DetectionFailures uint64 `json:"detection_failures"`
	Restarts          int    `json:"restarts"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Capture is a photo taken by the session.
type Capture struct {
	ID      string
	Trigger string
	Image   []byte
	Width   int
	Height  int
	At      time.Time
}

// ManualTrigger is recorded as the trigger of captures taken on request.
const ManualTrigger = "manual"
