package overlay

import (
	"image/color"
	"math"

	"github.com/ayusman/stylecam/internal/gesture"
)

// Box colors per trigger status.
var (
	ColorIdle     = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	ColorHoldFrom = color.RGBA{R: 255, G: 230, B: 0, A: 255}
	ColorHoldTo   = color.RGBA{R: 255, G: 120, B: 0, A: 255}
	ColorCaptured = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	ColorBarTrack = color.RGBA{R: 40, G: 40, B: 40, A: 255}
)

// style describes how the box is stroked for one frame.
type style struct {
	color     color.RGBA
	dash      []int // on/off lengths in pixels; nil draws a solid line
	thickness int
}

func styleFor(res gesture.Result) style {
	switch res.Status {
	case gesture.Holding:
		return style{color: lerpColor(ColorHoldFrom, ColorHoldTo, res.Progress), dash: []int{6, 4}, thickness: 5}
	case gesture.Captured:
		return style{color: ColorCaptured, thickness: 6}
	}
	return style{color: ColorIdle, dash: []int{12, 8}, thickness: 4}
}

// lerpColor blends from a to b by t, with t clamped to [0,1].
func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	t = clamp(t, 0, 1)
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}
