package server

import (
	"fmt"
	"net/http"
	"time"
)

// FrameInterval paces the preview stream at about 15 FPS.
const FrameInterval = 66 * time.Millisecond

// PreviewSource supplies the latest composited preview frame as JPEG.
type PreviewSource interface {
	Preview() []byte
}

// StreamHandler serves the session preview as MJPEG.
type StreamHandler struct {
	source   PreviewSource
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler for the given source.
func NewStreamHandler(source PreviewSource) *StreamHandler {
	return &StreamHandler{source: source, interval: FrameInterval}
}

// ServeHTTP streams MJPEG frames to the client until it disconnects.
// Frames are only sent when the preview changes.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last []byte
	for {
		frame := h.source.Preview()
		if len(frame) > 0 && !sameFrame(frame, last) {
			if err := writePart(w, frame); err != nil {
				return
			}
			last = frame
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// sameFrame reports whether a and b are the same preview buffer. The
// session replaces the buffer on every frame, so identity is enough.
func sameFrame(a, b []byte) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
