// Package tray provides a system tray menu for controlling the capture session.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/stylecam/internal/gesture"
	"github.com/ayusman/stylecam/internal/session"
)

// Tray represents the system tray application.
type Tray struct {
	onCapture  func()
	onRetake   func()
	onOpenPage func()
	onQuit     func()
	status     string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuStatus      *systray.MenuItem
	menuRetake      *systray.MenuItem
	menuLastCapture *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{status: StatusText(session.Snapshot{})}
}

// OnCapture sets the callback for the "Capture Now" menu item.
func (t *Tray) OnCapture(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCapture = fn
}

// OnRetake sets the callback for the "Retake" menu item.
func (t *Tray) OnRetake(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRetake = fn
}

// OnOpenPage sets the callback for the "Open Camera Page..." menu item.
func (t *Tray) OnOpenPage(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenPage = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("StyleCam")
	systray.SetTooltip("StyleCam outfit camera")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Capture session state")
	t.menuStatus.Disable()
	t.menuLastCapture = systray.AddMenuItem("Last: none", "Last captured photo")
	t.menuLastCapture.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuCapture := systray.AddMenuItem("Capture Now", "Take a photo immediately")
	t.menuRetake = systray.AddMenuItem("Retake", "Discard the photo and restart the camera")
	menuOpen := systray.AddMenuItem("Open Camera Page...", "Open the camera page in the browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit StyleCam")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-menuCapture.ClickedCh:
				t.handle(t.captureCallback)
			case <-t.menuRetake.ClickedCh:
				t.handle(t.retakeCallback)
			case <-menuOpen.ClickedCh:
				t.handle(t.openPageCallback)
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

func (t *Tray) captureCallback() func() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onCapture
}

func (t *Tray) retakeCallback() func() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onRetake
}

func (t *Tray) openPageCallback() func() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onOpenPage
}

// handle runs the callback returned by get outside the lock.
func (t *Tray) handle(get func() func()) {
	if callback := get(); callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Update refreshes the menu from a session snapshot.
func (t *Tray) Update(snap session.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = StatusText(snap)
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(t.status)
	}
	if t.menuRetake != nil {
		if snap.State == session.Reviewing {
			t.menuRetake.Enable()
		} else {
			t.menuRetake.Disable()
		}
	}
}

// SetLastCapture updates the last capture display in the menu.
func (t *Tray) SetLastCapture(label string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastCapture != nil {
		if label == "" {
			t.menuLastCapture.SetTitle("Last: none")
		} else {
			t.menuLastCapture.SetTitle("Last: " + label)
		}
	}
}

// Status returns the current status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// StatusText describes a session snapshot in one short line.
func StatusText(snap session.Snapshot) string {
	switch snap.State {
	case session.Streaming:
		if snap.EstimatorError != "" {
			return "○ Camera on (manual capture only)"
		}
		return "○ Camera on, loading pose model"
	case session.Detecting:
		if snap.Result.Status == gesture.Holding {
			return fmt.Sprintf("● Hold still... %d%%", int(snap.Result.Progress*100))
		}
		return "● Waiting for gesture"
	case session.Captured, session.Reviewing:
		return "◆ Photo taken"
	}
	return "○ Camera off"
}
