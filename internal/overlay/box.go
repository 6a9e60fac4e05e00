package overlay

import (
	"image"
	"math"

	"github.com/ayusman/stylecam/internal/detector"
)

// Box is an axis-aligned rectangle in frame pixel coordinates.
type Box struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent of the box.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Rect rounds the box to integer pixels.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.MinX)), int(math.Round(b.MinY)),
		int(math.Round(b.MaxX)), int(math.Round(b.MaxY)),
	)
}

// Mirror flips the box horizontally within a surface of the given width,
// matching gocv.Flip with flipCode 1.
func (b Box) Mirror(width int) Box {
	last := float64(width - 1)
	return Box{MinX: last - b.MaxX, MinY: b.MinY, MaxX: last - b.MinX, MaxY: b.MaxY}
}

// Clamp limits the box to a width x height surface.
func (b Box) Clamp(width, height float64) Box {
	return Box{
		MinX: clamp(b.MinX, 0, width-1),
		MinY: clamp(b.MinY, 0, height-1),
		MaxX: clamp(b.MaxX, 0, width-1),
		MaxY: clamp(b.MaxY, 0, height-1),
	}
}

// BoundingBox returns the box around every confident keypoint of the pose.
// It reports false when no keypoint clears detector.MinScore.
func BoundingBox(pose *detector.Pose) (Box, bool) {
	kps := pose.ConfidentKeypoints()
	if len(kps) == 0 {
		return Box{}, false
	}

	box := Box{MinX: kps[0].X, MinY: kps[0].Y, MaxX: kps[0].X, MaxY: kps[0].Y}
	for _, kp := range kps[1:] {
		box.MinX = math.Min(box.MinX, kp.X)
		box.MinY = math.Min(box.MinY, kp.Y)
		box.MaxX = math.Max(box.MaxX, kp.X)
		box.MaxY = math.Max(box.MaxY, kp.Y)
	}
	return box, true
}

// Padding inflates a keypoint box so it covers the whole body rather than
// the joints. Head and Bottom are fractions of the box height, Side is a
// fraction of the box width applied on both sides.
type Padding struct {
	Head   float64 `toml:"head"`
	Side   float64 `toml:"side"`
	Bottom float64 `toml:"bottom"`
}

// NoPadding draws the raw keypoint box.
var NoPadding = Padding{}

// DefaultPadding leaves room for the top of the head, which MoveNet does not
// mark, and for loose clothing at the sides.
var DefaultPadding = Padding{Head: 0.25, Side: 0.15, Bottom: 0.05}

// Apply returns the inflated box.
func (p Padding) Apply(b Box) Box {
	w, h := b.Width(), b.Height()
	return Box{
		MinX: b.MinX - w*p.Side,
		MinY: b.MinY - h*p.Head,
		MaxX: b.MaxX + w*p.Side,
		MaxY: b.MaxY + h*p.Bottom,
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
