package gesture

import (
	"fmt"
	"math"

	"github.com/ayusman/stylecam/internal/detector"
)

// Shape identifies the pose a user holds to trigger a capture.
type Shape string

const (
	// ShapeHandAtEyeLevel is a hand raised so the wrist is level with the eyes.
	ShapeHandAtEyeLevel Shape = "hand-at-eye-level"
	// ShapeTPose is both arms stretched out horizontally.
	ShapeTPose Shape = "t-pose"
)

// Geometry thresholds in frame pixels. Shapes are tested in the selfie view,
// where the subject's left side is on the image left; callers mirror poses
// from a raw camera frame first.
const (
	// EyeBandAbove is how far above eye level a wrist may be.
	EyeBandAbove = 60.0
	// EyeBandBelow is how far below eye level a wrist may be.
	EyeBandBelow = 100.0
	// NoseEyeOffset estimates eye level from the nose when the eyes are not confident.
	NoseEyeOffset = 30.0
	// TPoseVerticalTolerance is the allowed distance of elbows and wrists from shoulder height.
	TPoseVerticalTolerance = 80.0
	// TPoseReach is how far each wrist must extend past its shoulder.
	TPoseReach = 50.0
)

// ParseShape converts a configuration string to a Shape.
func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case ShapeHandAtEyeLevel, ShapeTPose:
		return Shape(s), nil
	case "hand", "eye":
		return ShapeHandAtEyeLevel, nil
	case "tpose", "t":
		return ShapeTPose, nil
	}
	return "", fmt.Errorf("unknown gesture shape %q", s)
}

// Prompt is the instruction shown to the user while waiting for the gesture.
func (s Shape) Prompt() string {
	switch s {
	case ShapeTPose:
		return "Strike a T-pose to take the photo"
	case ShapeHandAtEyeLevel:
		return "Raise a hand to eye level to take the photo"
	}
	return "Stand inside the box"
}

// Matches applies the shape's geometric test to a pose. Missing or
// low-confidence keypoints fail the test.
func (s Shape) Matches(pose *detector.Pose) bool {
	if pose == nil {
		return false
	}
	switch s {
	case ShapeHandAtEyeLevel:
		return handAtEyeLevel(pose)
	case ShapeTPose:
		return tPose(pose)
	}
	return false
}

// eyeLevel returns the mean eye height, falling back to an estimate from the nose.
func eyeLevel(pose *detector.Pose) (float64, bool) {
	le, lok := pose.Confident(detector.LeftEye)
	re, rok := pose.Confident(detector.RightEye)
	if lok && rok {
		return (le.Y + re.Y) / 2, true
	}
	if nose, ok := pose.Confident(detector.Nose); ok {
		return nose.Y - NoseEyeOffset, true
	}
	return 0, false
}

func handAtEyeLevel(pose *detector.Pose) bool {
	level, ok := eyeLevel(pose)
	if !ok {
		return false
	}

	for _, name := range []string{detector.LeftWrist, detector.RightWrist} {
		wrist, ok := pose.Confident(name)
		if !ok {
			continue
		}
		if wrist.Y >= level-EyeBandAbove && wrist.Y <= level+EyeBandBelow {
			return true
		}
	}
	return false
}

func tPose(pose *detector.Pose) bool {
	var kps [6]detector.Keypoint
	names := [6]string{
		detector.LeftShoulder, detector.RightShoulder,
		detector.LeftElbow, detector.RightElbow,
		detector.LeftWrist, detector.RightWrist,
	}
	for i, name := range names {
		kp, ok := pose.Confident(name)
		if !ok {
			return false
		}
		kps[i] = kp
	}
	ls, rs, le, re, lw, rw := kps[0], kps[1], kps[2], kps[3], kps[4], kps[5]

	shoulderY := (ls.Y + rs.Y) / 2
	for _, kp := range []detector.Keypoint{le, re, lw, rw} {
		if math.Abs(kp.Y-shoulderY) > TPoseVerticalTolerance {
			return false
		}
	}

	return lw.X < ls.X-TPoseReach && rw.X > rs.X+TPoseReach
}
