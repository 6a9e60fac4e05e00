package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MinChangePercent is the share of pixels that must differ between checks
// for a feed to count as live. Real sensors never produce two identical
// frames, so anything below this indicates a frozen stream.
const MinChangePercent = 0.01

// StallDetector notices when a camera keeps delivering the same frame.
// It compares each checked frame against the previous one by raw grayscale
// difference, without the blur a motion detector would use, so sensor
// noise alone keeps a live feed from looking stalled.
type StallDetector struct {
	limit       int
	prevGray    gocv.Mat
	initialized bool
	unchanged   int
	mu          sync.Mutex
}

// NewStallDetector creates a StallDetector that reports a stall after limit
// consecutive unchanged checks. A limit of zero or less disables detection.
func NewStallDetector(limit int) *StallDetector {
	return &StallDetector{
		limit:    limit,
		prevGray: gocv.NewMat(),
	}
}

// Check compares frame with the previously checked frame.
// Returns whether the feed is stalled and the percentage of pixels that changed.
func (s *StallDetector) Check(frame *gocv.Mat) (bool, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit <= 0 || frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	if !s.initialized || gray.Rows() != s.prevGray.Rows() || gray.Cols() != s.prevGray.Cols() {
		gray.CopyTo(&s.prevGray)
		s.initialized = true
		s.unchanged = 0
		return false, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, s.prevGray, &diff)

	nonZero := gocv.CountNonZero(diff)
	totalPixels := diff.Rows() * diff.Cols()
	changePercent := float64(nonZero) / float64(totalPixels) * 100.0

	gray.CopyTo(&s.prevGray)

	if changePercent < MinChangePercent {
		s.unchanged++
	} else {
		s.unchanged = 0
	}

	return s.unchanged >= s.limit, changePercent
}

// Reset forgets the baseline frame, typically after the stream restarts.
func (s *StallDetector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.prevGray.Empty() {
		s.prevGray.Close()
		s.prevGray = gocv.NewMat()
	}
	s.initialized = false
	s.unchanged = 0
}

// Close releases resources used by the stall detector.
func (s *StallDetector) Close() {
	s.Reset()
}
