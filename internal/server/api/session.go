package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/stylecam/internal/capture"
	"github.com/ayusman/stylecam/internal/session"
)

// Controller is the part of the capture session the API drives.
type Controller interface {
	Snapshot() session.Snapshot
	Start(ctx context.Context) error
	Capture(ctx context.Context) error
	Retake(ctx context.Context) error
	Stop(ctx context.Context) error
}

// SessionHandler exposes the capture session's state and commands.
type SessionHandler struct {
	session Controller
}

// NewSessionHandler creates a SessionHandler for the given session.
func NewSessionHandler(s Controller) *SessionHandler {
	return &SessionHandler{session: s}
}

// ServeHTTP routes GET /api/session and POST /api/session/{command}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/session")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.session.Snapshot())
		return
	}

	var run func(context.Context) error
	switch path {
	case "start":
		run = h.session.Start
	case "capture":
		run = h.session.Capture
	case "retake":
		run = h.session.Retake
	case "stop":
		run = h.session.Stop
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := run(r.Context()); err != nil {
		writeError(w, commandStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// commandStatus maps a session command error to an HTTP status.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNothingCaptured),
		errors.Is(err, session.ErrNotStreaming):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotRunning),
		errors.Is(err, capture.ErrCameraNotOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}
