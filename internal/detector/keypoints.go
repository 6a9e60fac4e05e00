// Package detector provides pose detection interfaces and types for gesture capture.
package detector

// MinScore is the confidence a keypoint needs before it is used by the
// trigger or the overlay.
const MinScore = 0.3

// Keypoint names following the MoveNet / COCO convention.
// See: https://www.tensorflow.org/hub/tutorials/movenet
const (
	Nose          = "nose"
	LeftEye       = "left_eye"
	RightEye      = "right_eye"
	LeftEar       = "left_ear"
	RightEar      = "right_ear"
	LeftShoulder  = "left_shoulder"
	RightShoulder = "right_shoulder"
	LeftElbow     = "left_elbow"
	RightElbow    = "right_elbow"
	LeftWrist     = "left_wrist"
	RightWrist    = "right_wrist"
	LeftHip       = "left_hip"
	RightHip      = "right_hip"
	LeftKnee      = "left_knee"
	RightKnee     = "right_knee"
	LeftAnkle     = "left_ankle"
	RightAnkle    = "right_ankle"
)

// KeypointNames lists the keypoints in estimator output order.
var KeypointNames = []string{
	Nose, LeftEye, RightEye, LeftEar, RightEar,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow,
	LeftWrist, RightWrist, LeftHip, RightHip,
	LeftKnee, RightKnee, LeftAnkle, RightAnkle,
}

// Keypoint is a named body landmark in frame pixel coordinates.
// Y grows downward.
type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Confident reports whether the keypoint clears MinScore.
func (k Keypoint) Confident() bool {
	return k.Score >= MinScore
}

// Pose is the set of keypoints for one detected person in one frame.
type Pose struct {
	Keypoints []Keypoint `json:"keypoints"`
	Score     float64    `json:"score"`
}

// Keypoint returns the keypoint with the given name.
func (p *Pose) Keypoint(name string) (Keypoint, bool) {
	if p == nil {
		return Keypoint{}, false
	}
	for _, k := range p.Keypoints {
		if k.Name == name {
			return k, true
		}
	}
	return Keypoint{}, false
}

// Confident returns the named keypoint only if it is present and confident.
func (p *Pose) Confident(name string) (Keypoint, bool) {
	k, ok := p.Keypoint(name)
	if !ok || !k.Confident() {
		return Keypoint{}, false
	}
	return k, true
}

// ConfidentKeypoints returns every keypoint that clears MinScore.
func (p *Pose) ConfidentKeypoints() []Keypoint {
	if p == nil {
		return nil
	}
	var out []Keypoint
	for _, k := range p.Keypoints {
		if k.Confident() {
			out = append(out, k)
		}
	}
	return out
}

// Mirror returns a copy of the pose flipped horizontally within a frame of
// the given width, the way gocv.Flip with flipCode 1 maps pixels.
func (p *Pose) Mirror(width int) *Pose {
	if p == nil {
		return nil
	}
	out := &Pose{Score: p.Score, Keypoints: make([]Keypoint, len(p.Keypoints))}
	for i, k := range p.Keypoints {
		k.X = float64(width-1) - k.X
		out.Keypoints[i] = k
	}
	return out
}

// First returns the first pose, or nil. Additional subjects are ignored.
func First(poses []Pose) *Pose {
	if len(poses) == 0 {
		return nil
	}
	return &poses[0]
}
