// Package gesture decides when a held pose should trigger a photo capture.
package gesture

import (
	"time"

	"github.com/ayusman/stylecam/internal/detector"
)

// DefaultThreshold is how long a gesture must be held before capture fires.
const DefaultThreshold = 3 * time.Second

// Status is the outcome of evaluating one frame.
type Status int

const (
	// NotDetected means the gesture is not being held this frame.
	NotDetected Status = iota
	// Holding means the gesture is held but the threshold is not yet reached.
	Holding
	// Captured means the hold threshold was reached on this frame.
	Captured
)

func (s Status) String() string {
	switch s {
	case Holding:
		return "holding"
	case Captured:
		return "captured"
	}
	return "not_detected"
}

// MarshalText encodes the status as its string name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the trigger's verdict for a single frame.
type Result struct {
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"` // 0..1, meaningful while Holding
	// Remaining is the hold time still needed, set while Holding.
	Remaining time.Duration `json:"-"`
}

// State is the hold-tracking state carried between frames.
type State struct {
	Holding   bool
	HoldStart time.Time
}

// Elapsed returns how long the current hold has lasted at now.
func (s State) Elapsed(now time.Time) time.Duration {
	if !s.Holding {
		return 0
	}
	d := now.Sub(s.HoldStart)
	if d < 0 {
		return 0
	}
	return d
}

// Reset clears every hold field together.
func (s *State) Reset() {
	*s = State{}
}

// Trigger tracks how long a gesture has been held and fires once the
// threshold is reached. It is not safe for concurrent use; the capture
// session drives it from a single goroutine.
type Trigger struct {
	shape     Shape
	threshold time.Duration
	state     State
}

// NewTrigger creates a Trigger for the given shape. A non-positive
// threshold selects DefaultThreshold.
func NewTrigger(shape Shape, threshold time.Duration) *Trigger {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Trigger{
		shape:     shape,
		threshold: threshold,
	}
}

// Evaluate checks one pose at time now.
//
// A failing frame always clears the hold, so the timer restarts from zero
// when the gesture resumes. Reaching the threshold clears the hold and
// returns Captured exactly once.
func (t *Trigger) Evaluate(pose *detector.Pose, now time.Time) Result {
	if !t.shape.Matches(pose) {
		t.state.Reset()
		return Result{Status: NotDetected}
	}

	if !t.state.Holding {
		t.state = State{Holding: true, HoldStart: now}
	}

	progress := float64(t.state.Elapsed(now)) / float64(t.threshold)
	if progress >= 1 {
		t.state.Reset()
		return Result{Status: Captured, Progress: 1}
	}

	return Result{Status: Holding, Progress: progress, Remaining: t.Remaining(now)}
}

// Reset clears any hold in progress.
func (t *Trigger) Reset() {
	t.state.Reset()
}

// State returns a copy of the current hold state.
func (t *Trigger) State() State {
	return t.state
}

// Shape returns the gesture shape this trigger watches for.
func (t *Trigger) Shape() Shape {
	return t.shape
}

// Threshold returns the hold duration required to fire.
func (t *Trigger) Threshold() time.Duration {
	return t.threshold
}

// Remaining returns how much longer the gesture must be held at now.
func (t *Trigger) Remaining(now time.Time) time.Duration {
	if !t.state.Holding {
		return t.threshold
	}
	r := t.threshold - t.state.Elapsed(now)
	if r < 0 {
		return 0
	}
	return r
}
