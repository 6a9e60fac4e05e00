// Package overlay draws the pose bounding box and capture progress onto a
// transparent surface laid over the live video.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/stylecam/internal/detector"
	"github.com/ayusman/stylecam/internal/gesture"
)

// Text and bar layout constants.
const (
	fontFace      = gocv.FontHersheySimplex
	fontScale     = 0.8
	fontThickness = 2
	textGap       = 12
	barHeight     = 10
	barGap        = 8
)

// Renderer draws one overlay frame at a time.
type Renderer struct {
	// Padding inflates the keypoint box.
	Padding Padding
	// Mirrored flips box geometry horizontally to match a mirrored preview.
	Mirrored bool
	// Prompt is shown above the box while the gesture is not held.
	Prompt string
}

// NewRenderer creates a Renderer with default padding.
func NewRenderer(prompt string, mirrored bool) *Renderer {
	return &Renderer{
		Padding:  DefaultPadding,
		Mirrored: mirrored,
		Prompt:   prompt,
	}
}

// NewSurface allocates a transparent BGRA surface matching the frame size.
// The caller is responsible for closing it.
func NewSurface(width, height int) gocv.Mat {
	m := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC4)
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))
	return m
}

// Render clears the surface and draws the overlay for the given pose and
// trigger result. The surface is redrawn from scratch on every call.
func (r *Renderer) Render(surface *gocv.Mat, pose *detector.Pose, res gesture.Result) {
	if surface == nil || surface.Empty() {
		return
	}
	surface.SetTo(gocv.NewScalar(0, 0, 0, 0))

	width, height := surface.Cols(), surface.Rows()
	box, ok := BoundingBox(pose)
	if !ok {
		return
	}
	box = r.Padding.Apply(box).Clamp(float64(width), float64(height))

	sp := space{width: width, mirrored: r.Mirrored}
	rect := sp.rect(box)
	st := styleFor(res)

	if st.dash == nil {
		gocv.Rectangle(surface, rect, st.color, st.thickness)
	} else {
		dashedRect(surface, rect, st.color, st.thickness, st.dash)
	}

	// Text and bar are laid out in screen space so they stay readable
	// when the box geometry is mirrored.
	textY := rect.Min.Y - textGap
	if res.Status == gesture.Holding {
		barTop := rect.Min.Y - barGap - barHeight
		if barTop < 0 {
			barTop = rect.Min.Y + barGap
		}
		drawProgressBar(surface, image.Rect(rect.Min.X, barTop, rect.Max.X, barTop+barHeight), res.Progress, st.color)
		textY = barTop - textGap
	}
	drawCenteredText(surface, r.statusText(res), (rect.Min.X+rect.Max.X)/2, textY, st.color)
}

// statusText describes the trigger state to the user.
func (r *Renderer) statusText(res gesture.Result) string {
	switch res.Status {
	case gesture.Holding:
		if res.Remaining > 0 {
			return fmt.Sprintf("Hold still... %ds", int(math.Ceil(res.Remaining.Seconds())))
		}
		return fmt.Sprintf("Hold still... %d%%", int(res.Progress*100))
	case gesture.Captured:
		return "Capturing..."
	}
	if r.Prompt != "" {
		return r.Prompt
	}
	return "Stand inside the box"
}

// space maps frame coordinates into drawing coordinates. When mirrored the
// x axis is flipped for the duration of the box draw.
type space struct {
	width    int
	mirrored bool
}

func (s space) rect(b Box) image.Rectangle {
	if s.mirrored {
		b = b.Mirror(s.width)
	}
	return b.Rect()
}

// dashedRect strokes the rectangle clockwise from its top-left corner.
func dashedRect(img *gocv.Mat, r image.Rectangle, c color.RGBA, thickness int, dash []int) {
	tl, tr := r.Min, image.Pt(r.Max.X, r.Min.Y)
	br, bl := r.Max, image.Pt(r.Min.X, r.Max.Y)
	dashedLine(img, tl, tr, c, thickness, dash)
	dashedLine(img, tr, br, c, thickness, dash)
	dashedLine(img, br, bl, c, thickness, dash)
	dashedLine(img, bl, tl, c, thickness, dash)
}

// dashedLine draws a line as alternating on/off segments starting with a
// drawn segment at a.
func dashedLine(img *gocv.Mat, a, b image.Point, c color.RGBA, thickness int, dash []int) {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	on, off := float64(dash[0]), 0.0
	if len(dash) > 1 {
		off = float64(dash[1])
	}
	ux, uy := dx/length, dy/length

	for pos := 0.0; pos < length; pos += on + off {
		end := math.Min(pos+on, length)
		p1 := image.Pt(a.X+int(math.Round(ux*pos)), a.Y+int(math.Round(uy*pos)))
		p2 := image.Pt(a.X+int(math.Round(ux*end)), a.Y+int(math.Round(uy*end)))
		gocv.Line(img, p1, p2, c, thickness)
	}
}

func drawProgressBar(img *gocv.Mat, r image.Rectangle, progress float64, c color.RGBA) {
	gocv.Rectangle(img, r, ColorBarTrack, -1)
	fill := int(math.Round(float64(r.Dx()) * clamp(progress, 0, 1)))
	if fill > 0 {
		gocv.Rectangle(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+fill, r.Max.Y), c, -1)
	}
}

// drawCenteredText places text centred on cx with its baseline at y, nudged
// to stay inside the surface.
func drawCenteredText(img *gocv.Mat, text string, cx, y int, c color.RGBA) {
	size := gocv.GetTextSize(text, fontFace, fontScale, fontThickness)
	x := cx - size.X/2
	x = int(clamp(float64(x), 0, float64(img.Cols()-size.X)))
	if y < size.Y {
		y = size.Y
	}
	gocv.PutText(img, text, image.Pt(x, y), fontFace, fontScale, c, fontThickness)
}

// Composite copies every non-transparent surface pixel onto a BGR frame.
func Composite(frame *gocv.Mat, surface gocv.Mat) {
	if frame == nil || frame.Empty() || surface.Empty() {
		return
	}

	channels := gocv.Split(surface)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()
	if len(channels) < 4 {
		return
	}

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(surface, &bgr, gocv.ColorBGRAToBGR)

	bgr.CopyToWithMask(frame, channels[3])
}
