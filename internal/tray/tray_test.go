package tray

import (
	"testing"

	"github.com/ayusman/stylecam/internal/gesture"
	"github.com/ayusman/stylecam/internal/session"
)

func TestStatusText(t *testing.T) {
	tests := []struct {
		name string
		snap session.Snapshot
		want string
	}{
		{"idle", session.Snapshot{}, "○ Camera off"},
		{"loading", session.Snapshot{State: session.Streaming}, "○ Camera on, loading pose model"},
		{"estimator unavailable", session.Snapshot{State: session.Streaming, EstimatorError: "boom"}, "○ Camera on (manual capture only)"},
		{"waiting", session.Snapshot{State: session.Detecting}, "● Waiting for gesture"},
		{
			"holding",
			session.Snapshot{State: session.Detecting, Result: gesture.Result{Status: gesture.Holding, Progress: 0.5}},
			"● Hold still... 50%",
		},
		{"reviewing", session.Snapshot{State: session.Reviewing}, "◆ Photo taken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusText(tt.snap); got != tt.want {
				t.Errorf("StatusText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTray_Update(t *testing.T) {
	tr := New()
	if tr.Status() != "○ Camera off" {
		t.Errorf("initial status = %q", tr.Status())
	}

	// Menu items are nil until the tray runs; Update must still record state.
	tr.Update(session.Snapshot{State: session.Detecting})
	if tr.Status() != "● Waiting for gesture" {
		t.Errorf("status = %q", tr.Status())
	}
	tr.SetLastCapture("abc")
}

func TestTray_Callbacks(t *testing.T) {
	tr := New()

	var captured, retaken, opened int
	tr.OnCapture(func() { captured++ })
	tr.OnRetake(func() { retaken++ })
	tr.OnOpenPage(func() { opened++ })

	tr.handle(tr.captureCallback)
	tr.handle(tr.retakeCallback)
	tr.handle(tr.retakeCallback)
	tr.handle(tr.openPageCallback)

	if captured != 1 || retaken != 2 || opened != 1 {
		t.Errorf("callbacks ran capture=%d retake=%d open=%d", captured, retaken, opened)
	}

	t.Run("unset callback is ignored", func(t *testing.T) {
		New().handle(New().captureCallback)
	})
}
