package gesture

import (
	"math"
	"testing"
	"time"

	"github.com/ayusman/stylecam/internal/detector"
)

const epsilon = 1e-9

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// keypoints builds a pose from explicit keypoints.
func keypoints(kps ...detector.Keypoint) *detector.Pose {
	return &detector.Pose{Keypoints: kps, Score: 0.9}
}

func kp(name string, x, y, score float64) detector.Keypoint {
	return detector.Keypoint{Name: name, X: x, Y: y, Score: score}
}

func TestShape_HandAtEyeLevel(t *testing.T) {
	tests := []struct {
		name string
		pose *detector.Pose
		want bool
	}{
		{
			name: "left wrist at eye level, right wrist low confidence",
			pose: keypoints(
				kp(detector.LeftEye, 300, 100, 0.9),
				kp(detector.RightEye, 340, 100, 0.9),
				kp(detector.LeftWrist, 250, 100, 0.9),
				kp(detector.RightWrist, 400, 100, 0.1),
			),
			want: true,
		},
		{
			name: "wrist at upper band edge",
			pose: keypoints(
				kp(detector.LeftEye, 300, 100, 0.9),
				kp(detector.RightEye, 340, 100, 0.9),
				kp(detector.RightWrist, 400, 40, 0.9),
			),
			want: true,
		},
		{
			name: "wrist just above band",
			pose: keypoints(
				kp(detector.LeftEye, 300, 100, 0.9),
				kp(detector.RightEye, 340, 100, 0.9),
				kp(detector.RightWrist, 400, 39, 0.9),
			),
			want: false,
		},
		{
			name: "wrist at lower band edge",
			pose: keypoints(
				kp(detector.LeftEye, 300, 100, 0.9),
				kp(detector.RightEye, 340, 100, 0.9),
				kp(detector.LeftWrist, 250, 200, 0.9),
			),
			want: true,
		},
		{
			name: "wrist just below band",
			pose: keypoints(
				kp(detector.LeftEye, 300, 100, 0.9),
				kp(detector.RightEye, 340, 100, 0.9),
				kp(detector.LeftWrist, 250, 201, 0.9),
			),
			want: false,
		},
		{
			name: "eye level averaged from both eyes",
			pose: keypoints(
				kp(detector.LeftEye, 300, 80, 0.9),
				kp(detector.RightEye, 340, 120, 0.9),
				kp(detector.LeftWrist, 250, 199, 0.9),
			),
			want: true,
		},
		{
			name: "nose fallback when one eye is missing",
			pose: keypoints(
				kp(detector.LeftEye, 300, 100, 0.9),
				kp(detector.RightEye, 340, 100, 0.2),
				kp(detector.Nose, 320, 130, 0.9),
				kp(detector.LeftWrist, 250, 200, 0.9),
			),
			want: true,
		},
		{
			name: "nose fallback shifts the band",
			pose: keypoints(
				kp(detector.Nose, 320, 130, 0.9),
				kp(detector.LeftWrist, 250, 201, 0.9),
			),
			want: false,
		},
		{
			name: "no eyes and no nose",
			pose: keypoints(
				kp(detector.Nose, 320, 130, 0.2),
				kp(detector.LeftWrist, 250, 100, 0.9),
			),
			want: false,
		},
		{
			name: "no confident wrist",
			pose: keypoints(
				kp(detector.LeftEye, 300, 100, 0.9),
				kp(detector.RightEye, 340, 100, 0.9),
				kp(detector.LeftWrist, 250, 100, 0.29),
			),
			want: false,
		},
		{
			name: "nil pose",
			pose: nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShapeHandAtEyeLevel.Matches(tt.pose); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

// tpose builds a T-pose with shoulders at y=200 and configurable wrist reach.
func tpose(leftReach, rightReach, armY float64) *detector.Pose {
	return keypoints(
		kp(detector.LeftShoulder, 250, 200, 0.9),
		kp(detector.RightShoulder, 350, 200, 0.9),
		kp(detector.LeftElbow, 200, armY, 0.9),
		kp(detector.RightElbow, 400, armY, 0.9),
		kp(detector.LeftWrist, 250-leftReach, armY, 0.9),
		kp(detector.RightWrist, 350+rightReach, armY, 0.9),
	)
}

func TestShape_TPose(t *testing.T) {
	tests := []struct {
		name string
		pose *detector.Pose
		want bool
	}{
		{"arms out level", tpose(100, 100, 210), true},
		{"right wrist short of reach", tpose(60, 40, 210), false},
		{"left wrist short of reach", tpose(40, 60, 210), false},
		{"reach exactly at threshold fails", tpose(50, 60, 210), false},
		{"arms at vertical tolerance", tpose(100, 100, 280), true},
		{"arms below vertical tolerance", tpose(100, 100, 281), false},
		{"arms above vertical tolerance", tpose(100, 100, 119), false},
		{"fixture t-pose in selfie view", ptr(detector.TPose()).Mirror(640), true},
		{"fixture t-pose in raw camera view", ptr(detector.TPose()), false},
		{"fixture standing", ptr(detector.StandingPose()).Mirror(640), false},
		{"nil pose", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShapeTPose.Matches(tt.pose); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("low confidence elbow", func(t *testing.T) {
		pose := tpose(100, 100, 210)
		pose.Keypoints[2].Score = 0.1
		if ShapeTPose.Matches(pose) {
			t.Error("expected low-confidence elbow to fail")
		}
	})

	t.Run("missing wrist", func(t *testing.T) {
		pose := tpose(100, 100, 210)
		pose.Keypoints = pose.Keypoints[:5]
		if ShapeTPose.Matches(pose) {
			t.Error("expected missing wrist to fail")
		}
	})
}

func ptr(p detector.Pose) *detector.Pose { return &p }

func TestTrigger_Evaluate(t *testing.T) {
	t.Run("starts holding on first success", func(t *testing.T) {
		trig := NewTrigger(ShapeTPose, 2*time.Second)

		res := trig.Evaluate(tpose(100, 100, 210), t0)

		if res.Status != Holding {
			t.Fatalf("status = %v, want holding", res.Status)
		}
		if res.Progress != 0 {
			t.Errorf("progress = %f, want 0", res.Progress)
		}
		if st := trig.State(); !st.Holding || !st.HoldStart.Equal(t0) {
			t.Errorf("unexpected state %+v", st)
		}
	})

	t.Run("progress grows with hold time", func(t *testing.T) {
		trig := NewTrigger(ShapeTPose, 2*time.Second)
		pose := tpose(100, 100, 210)

		trig.Evaluate(pose, t0)
		res := trig.Evaluate(pose, t0.Add(500*time.Millisecond))

		if math.Abs(res.Progress-0.25) > epsilon {
			t.Errorf("progress = %f, want 0.25", res.Progress)
		}
	})

	t.Run("captures exactly once at threshold", func(t *testing.T) {
		trig := NewTrigger(ShapeTPose, 2*time.Second)
		pose := tpose(100, 100, 210)

		captured := 0
		for ms := 0; ms <= 2000; ms += 100 {
			res := trig.Evaluate(pose, t0.Add(time.Duration(ms)*time.Millisecond))
			if res.Status == Captured {
				captured++
				if ms != 2000 {
					t.Errorf("captured at %dms, want 2000ms", ms)
				}
			}
		}

		if captured != 1 {
			t.Errorf("captured %d times, want 1", captured)
		}
		if trig.State().Holding {
			t.Error("expected hold state to be cleared after capture")
		}
	})

	t.Run("never reports holding at full progress", func(t *testing.T) {
		trig := NewTrigger(ShapeTPose, time.Second)
		pose := tpose(100, 100, 210)

		trig.Evaluate(pose, t0)
		res := trig.Evaluate(pose, t0.Add(5*time.Second))

		if res.Status != Captured {
			t.Errorf("status = %v, want captured", res.Status)
		}
	})

	t.Run("one broken frame resets progress", func(t *testing.T) {
		trig := NewTrigger(ShapeTPose, 2*time.Second)
		pose := tpose(100, 100, 210)
		broken := tpose(100, 40, 210)

		trig.Evaluate(pose, t0)
		trig.Evaluate(pose, t0.Add(1500*time.Millisecond))

		if res := trig.Evaluate(broken, t0.Add(1600*time.Millisecond)); res.Status != NotDetected {
			t.Fatalf("status = %v, want not detected", res.Status)
		}
		if trig.State().Holding {
			t.Error("expected hold to be cleared by broken frame")
		}

		res := trig.Evaluate(pose, t0.Add(1700*time.Millisecond))
		if res.Status != Holding || res.Progress != 0 {
			t.Errorf("after resume got %v/%f, want holding/0", res.Status, res.Progress)
		}
	})

	t.Run("progress is monotonic and bounded", func(t *testing.T) {
		trig := NewTrigger(ShapeHandAtEyeLevel, 3*time.Second)
		pose := ptr(detector.HandAtEyeLevelPose())

		last := -1.0
		for ms := 0; ms < 3000; ms += 33 {
			res := trig.Evaluate(pose, t0.Add(time.Duration(ms)*time.Millisecond))
			if res.Status != Holding {
				t.Fatalf("status at %dms = %v, want holding", ms, res.Status)
			}
			if res.Progress < last {
				t.Fatalf("progress decreased from %f to %f", last, res.Progress)
			}
			if res.Progress < 0 || res.Progress > 1 {
				t.Fatalf("progress %f out of range", res.Progress)
			}
			last = res.Progress
		}
	})

	t.Run("missing keypoints clear hold", func(t *testing.T) {
		trig := NewTrigger(ShapeHandAtEyeLevel, time.Second)

		trig.Evaluate(ptr(detector.HandAtEyeLevelPose()), t0)
		res := trig.Evaluate(&detector.Pose{}, t0.Add(100*time.Millisecond))

		if res.Status != NotDetected {
			t.Errorf("status = %v, want not detected", res.Status)
		}
		if trig.State().Holding {
			t.Error("expected hold to be cleared")
		}
	})

	t.Run("clock going backwards clamps to zero", func(t *testing.T) {
		trig := NewTrigger(ShapeTPose, time.Second)
		pose := tpose(100, 100, 210)

		trig.Evaluate(pose, t0)
		res := trig.Evaluate(pose, t0.Add(-time.Second))

		if res.Status != Holding || res.Progress != 0 {
			t.Errorf("got %v/%f, want holding/0", res.Status, res.Progress)
		}
	})

	t.Run("reset clears hold", func(t *testing.T) {
		trig := NewTrigger(ShapeTPose, time.Second)
		trig.Evaluate(tpose(100, 100, 210), t0)

		trig.Reset()

		if st := trig.State(); st.Holding || !st.HoldStart.IsZero() {
			t.Errorf("expected zero state after reset, got %+v", st)
		}
	})
}

func TestTrigger_Defaults(t *testing.T) {
	trig := NewTrigger(ShapeTPose, 0)
	if trig.Threshold() != DefaultThreshold {
		t.Errorf("Threshold() = %v, want %v", trig.Threshold(), DefaultThreshold)
	}
	if trig.Shape() != ShapeTPose {
		t.Errorf("Shape() = %v, want %v", trig.Shape(), ShapeTPose)
	}
}

func TestTrigger_Remaining(t *testing.T) {
	trig := NewTrigger(ShapeTPose, 2*time.Second)

	if got := trig.Remaining(t0); got != 2*time.Second {
		t.Errorf("Remaining() before hold = %v, want 2s", got)
	}

	trig.Evaluate(tpose(100, 100, 210), t0)
	if got := trig.Remaining(t0.Add(500 * time.Millisecond)); got != 1500*time.Millisecond {
		t.Errorf("Remaining() = %v, want 1.5s", got)
	}

	res := trig.Evaluate(tpose(100, 100, 210), t0.Add(1500*time.Millisecond))
	if res.Status != Holding || res.Remaining != 500*time.Millisecond {
		t.Errorf("Evaluate() = %+v, want holding with 500ms remaining", res)
	}
}

func TestParseShape(t *testing.T) {
	tests := []struct {
		in      string
		want    Shape
		wantErr bool
	}{
		{"hand-at-eye-level", ShapeHandAtEyeLevel, false},
		{"t-pose", ShapeTPose, false},
		{"tpose", ShapeTPose, false},
		{"hand", ShapeHandAtEyeLevel, false},
		{"wave", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseShape(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseShape(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseShape(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatus_String(t *testing.T) {
	if NotDetected.String() != "not_detected" || Holding.String() != "holding" || Captured.String() != "captured" {
		t.Error("unexpected status names")
	}
}
