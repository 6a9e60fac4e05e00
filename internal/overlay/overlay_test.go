package overlay

import (
	"image/color"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/stylecam/internal/detector"
	"github.com/ayusman/stylecam/internal/gesture"
)

// twoPointPose has confident keypoints at (100,50) and (300,200); every
// other keypoint is below the confidence threshold.
func twoPointPose() *detector.Pose {
	return &detector.Pose{Keypoints: []detector.Keypoint{
		{Name: detector.Nose, X: 100, Y: 50, Score: 0.9},
		{Name: detector.RightAnkle, X: 300, Y: 200, Score: 0.9},
		{Name: detector.LeftWrist, X: 5, Y: 5, Score: 0.2},
		{Name: detector.RightWrist, X: 600, Y: 470, Score: 0.1},
	}}
}

func TestBoundingBox(t *testing.T) {
	t.Run("spans confident keypoints exactly", func(t *testing.T) {
		box, ok := BoundingBox(twoPointPose())
		if !ok {
			t.Fatal("expected a bounding box")
		}
		want := Box{MinX: 100, MinY: 50, MaxX: 300, MaxY: 200}
		if box != want {
			t.Errorf("BoundingBox() = %+v, want %+v", box, want)
		}
	})

	t.Run("no confident keypoints", func(t *testing.T) {
		pose := &detector.Pose{Keypoints: []detector.Keypoint{{Name: detector.Nose, X: 1, Y: 1, Score: 0.1}}}
		if _, ok := BoundingBox(pose); ok {
			t.Error("expected no box")
		}
	})

	t.Run("nil pose", func(t *testing.T) {
		if _, ok := BoundingBox(nil); ok {
			t.Error("expected no box for nil pose")
		}
	})
}

func TestPadding_Apply(t *testing.T) {
	box := Box{MinX: 100, MinY: 100, MaxX: 200, MaxY: 300}

	t.Run("no padding keeps box", func(t *testing.T) {
		if got := NoPadding.Apply(box); got != box {
			t.Errorf("Apply() = %+v, want %+v", got, box)
		}
	})

	t.Run("inflates per side", func(t *testing.T) {
		got := Padding{Head: 0.25, Side: 0.1, Bottom: 0.05}.Apply(box)
		want := Box{MinX: 90, MinY: 50, MaxX: 210, MaxY: 310}
		if got != want {
			t.Errorf("Apply() = %+v, want %+v", got, want)
		}
	})
}

func TestBox_Mirror(t *testing.T) {
	box := Box{MinX: 0, MinY: 10, MaxX: 100, MaxY: 20}
	got := box.Mirror(640)
	want := Box{MinX: 539, MinY: 10, MaxX: 639, MaxY: 20}
	if got != want {
		t.Errorf("Mirror() = %+v, want %+v", got, want)
	}
	if back := got.Mirror(640); back != box {
		t.Errorf("mirroring twice = %+v, want %+v", back, box)
	}
}

func TestBox_Clamp(t *testing.T) {
	got := Box{MinX: -20, MinY: -5, MaxX: 700, MaxY: 500}.Clamp(640, 480)
	want := Box{MinX: 0, MinY: 0, MaxX: 639, MaxY: 479}
	if got != want {
		t.Errorf("Clamp() = %+v, want %+v", got, want)
	}
}

func TestStyleFor(t *testing.T) {
	t.Run("not detected is dashed green", func(t *testing.T) {
		st := styleFor(gesture.Result{Status: gesture.NotDetected})
		if st.color != ColorIdle || st.dash == nil {
			t.Errorf("unexpected style %+v", st)
		}
	})

	t.Run("holding interpolates color", func(t *testing.T) {
		start := styleFor(gesture.Result{Status: gesture.Holding, Progress: 0})
		end := styleFor(gesture.Result{Status: gesture.Holding, Progress: 1})
		mid := styleFor(gesture.Result{Status: gesture.Holding, Progress: 0.5})

		if start.color != ColorHoldFrom {
			t.Errorf("start color = %v, want %v", start.color, ColorHoldFrom)
		}
		if end.color != ColorHoldTo {
			t.Errorf("end color = %v, want %v", end.color, ColorHoldTo)
		}
		if mid.color.G >= start.color.G || mid.color.G <= end.color.G {
			t.Errorf("mid color %v not between %v and %v", mid.color, start.color, end.color)
		}
	})

	t.Run("captured is solid red", func(t *testing.T) {
		st := styleFor(gesture.Result{Status: gesture.Captured, Progress: 1})
		if st.color != ColorCaptured || st.dash != nil {
			t.Errorf("unexpected style %+v", st)
		}
	})
}

func TestLerpColor(t *testing.T) {
	a := color.RGBA{R: 0, G: 0, B: 0, A: 255}
	b := color.RGBA{R: 200, G: 100, B: 50, A: 255}

	tests := []struct {
		t    float64
		want color.RGBA
	}{
		{-1, a},
		{0, a},
		{0.5, color.RGBA{R: 100, G: 50, B: 25, A: 255}},
		{1, b},
		{2, b},
	}
	for _, tt := range tests {
		if got := lerpColor(a, b, tt.t); got != tt.want {
			t.Errorf("lerpColor(%f) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestRenderer_StatusText(t *testing.T) {
	r := NewRenderer("Strike a T-pose", false)

	tests := []struct {
		name string
		res  gesture.Result
		want string
	}{
		{"prompt", gesture.Result{Status: gesture.NotDetected}, "Strike a T-pose"},
		{"seconds remaining", gesture.Result{Status: gesture.Holding, Progress: 0.5, Remaining: 1500 * time.Millisecond}, "Hold still... 2s"},
		{"just started", gesture.Result{Status: gesture.Holding, Remaining: 3 * time.Second}, "Hold still... 3s"},
		{"captured", gesture.Result{Status: gesture.Captured, Progress: 1}, "Capturing..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.statusText(tt.res); got != tt.want {
				t.Errorf("statusText() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("percentage without remaining time", func(t *testing.T) {
		got := r.statusText(gesture.Result{Status: gesture.Holding, Progress: 0.42})
		if !strings.HasSuffix(got, "42%") {
			t.Errorf("statusText() = %q, want percentage", got)
		}
	})
}

func TestSpace_Rect(t *testing.T) {
	box := Box{MinX: 100, MinY: 50, MaxX: 300, MaxY: 200}

	plain := space{width: 640}.rect(box)
	if plain.Min.X != 100 || plain.Max.X != 300 {
		t.Errorf("unmirrored rect = %v", plain)
	}

	mirrored := space{width: 640, mirrored: true}.rect(box)
	if mirrored.Min.X != 339 || mirrored.Max.X != 539 {
		t.Errorf("mirrored rect = %v, want x in [339,539]", mirrored)
	}
	if mirrored.Min.Y != 50 || mirrored.Max.Y != 200 {
		t.Errorf("mirroring must not change y, got %v", mirrored)
	}
}

// pixel returns the BGRA value at (x, y).
func pixel(m gocv.Mat, x, y int) []uint8 {
	return m.GetVecbAt(y, x)
}

func TestRenderer_Render(t *testing.T) {
	t.Run("draws box corners in idle color", func(t *testing.T) {
		surface := NewSurface(640, 480)
		defer surface.Close()

		r := &Renderer{Padding: NoPadding}
		r.Render(&surface, twoPointPose(), gesture.Result{Status: gesture.NotDetected})

		px := pixel(surface, 100, 50)
		if px[0] != 0 || px[1] != 255 || px[2] != 0 || px[3] != 255 {
			t.Errorf("top-left corner = %v, want opaque green", px)
		}
		if px := pixel(surface, 620, 460); px[3] != 0 {
			t.Errorf("expected transparent pixel away from the box, got %v", px)
		}
	})

	t.Run("clears previous frame", func(t *testing.T) {
		surface := NewSurface(640, 480)
		defer surface.Close()

		r := &Renderer{Padding: NoPadding}
		r.Render(&surface, twoPointPose(), gesture.Result{Status: gesture.NotDetected})
		r.Render(&surface, nil, gesture.Result{Status: gesture.NotDetected})

		if px := pixel(surface, 100, 50); px[3] != 0 {
			t.Errorf("expected cleared pixel, got %v", px)
		}
	})

	t.Run("mirrored box aligns with flipped video", func(t *testing.T) {
		surface := NewSurface(640, 480)
		defer surface.Close()

		r := &Renderer{Padding: NoPadding, Mirrored: true}
		r.Render(&surface, twoPointPose(), gesture.Result{Status: gesture.NotDetected})

		if px := pixel(surface, 539, 50); px[3] != 255 {
			t.Errorf("expected mirrored corner at x=539 to be drawn, got %v", px)
		}
		if px := pixel(surface, 100, 200); px[3] != 0 {
			t.Errorf("expected unmirrored corner to be empty, got %v", px)
		}
	})

	t.Run("holding draws progress bar", func(t *testing.T) {
		surface := NewSurface(640, 480)
		defer surface.Close()

		r := &Renderer{Padding: NoPadding}
		r.Render(&surface, twoPointPose(), gesture.Result{Status: gesture.Holding, Progress: 0.5})

		// Bar sits 8px above the box top (y=50) and is 10px tall.
		barY := 50 - barGap - barHeight/2
		filled := pixel(surface, 150, barY)
		track := pixel(surface, 280, barY)
		if filled[3] != 255 || track[3] != 255 {
			t.Fatalf("expected opaque bar, got %v and %v", filled, track)
		}
		if track[0] != ColorBarTrack.B || track[1] != ColorBarTrack.G || track[2] != ColorBarTrack.R {
			t.Errorf("unfilled part = %v, want track color", track)
		}
		if filled[2] != 255 {
			t.Errorf("filled part = %v, want hold color", filled)
		}
	})

	t.Run("empty surface is ignored", func(t *testing.T) {
		r := &Renderer{}
		r.Render(nil, twoPointPose(), gesture.Result{})

		empty := gocv.NewMat()
		defer empty.Close()
		r.Render(&empty, twoPointPose(), gesture.Result{})
	})
}

func TestComposite(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.SetTo(gocv.NewScalar(10, 10, 10, 0))

	surface := NewSurface(640, 480)
	defer surface.Close()

	r := &Renderer{Padding: NoPadding}
	r.Render(&surface, twoPointPose(), gesture.Result{Status: gesture.NotDetected})

	Composite(&frame, surface)

	if px := frame.GetVecbAt(50, 100); px[1] != 255 {
		t.Errorf("expected box pixel on frame, got %v", px)
	}
	if px := frame.GetVecbAt(460, 620); px[0] != 10 || px[1] != 10 || px[2] != 10 {
		t.Errorf("expected untouched frame pixel, got %v", px)
	}
}
