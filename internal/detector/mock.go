package detector

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu      sync.Mutex
	poses   []Pose
	err     error
	loadErr error
	calls   int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPoses sets the poses that will be returned by Detect.
func (m *MockDetector) SetPoses(poses ...Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poses = poses
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetLoadError sets the error that will be returned by Load.
func (m *MockDetector) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Load returns the configured load error.
func (m *MockDetector) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

// Detect returns the pre-configured poses or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.poses, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// poseFrom builds a pose from a map of keypoint positions, all at the given
// score. Keypoints not in the map are reported with zero score.
func poseFrom(points map[string][2]float64, score float64) Pose {
	p := Pose{Score: score}
	for _, name := range KeypointNames {
		xy, ok := points[name]
		if !ok {
			p.Keypoints = append(p.Keypoints, Keypoint{Name: name})
			continue
		}
		p.Keypoints = append(p.Keypoints, Keypoint{Name: name, X: xy[0], Y: xy[1], Score: score})
	}
	return p
}

// StandingPose returns a subject facing the camera with arms relaxed at the
// sides, as the estimator reports it on a raw 640x480 camera frame: the
// subject's left side is on the image right, so left keypoints have larger x.
func StandingPose() Pose {
	return poseFrom(map[string][2]float64{
		Nose:          {320, 100},
		LeftEye:       {330, 90},
		RightEye:      {310, 90},
		LeftEar:       {345, 95},
		RightEar:      {295, 95},
		LeftShoulder:  {370, 160},
		RightShoulder: {270, 160},
		LeftElbow:     {385, 230},
		RightElbow:    {255, 230},
		LeftWrist:     {390, 300},
		RightWrist:    {250, 300},
		LeftHip:       {350, 300},
		RightHip:      {290, 300},
		LeftKnee:      {350, 380},
		RightKnee:     {290, 380},
		LeftAnkle:     {350, 460},
		RightAnkle:    {290, 460},
	}, 0.9)
}

// HandAtEyeLevelPose returns a subject with the left hand raised beside the
// face, level with the eyes.
func HandAtEyeLevelPose() Pose {
	p := StandingPose()
	p.set(LeftElbow, 400, 150)
	p.set(LeftWrist, 410, 95)
	return p
}

// TPose returns a subject with both arms stretched out horizontally.
func TPose() Pose {
	p := StandingPose()
	p.set(LeftElbow, 440, 165)
	p.set(LeftWrist, 510, 165)
	p.set(RightElbow, 200, 165)
	p.set(RightWrist, 130, 165)
	return p
}

func (p *Pose) set(name string, x, y float64) {
	for i := range p.Keypoints {
		if p.Keypoints[i].Name == name {
			p.Keypoints[i].X = x
			p.Keypoints[i].Y = y
			return
		}
	}
}
