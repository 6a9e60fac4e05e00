package api

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/ayusman/stylecam/internal/analysis"
	"github.com/ayusman/stylecam/internal/store"
	"github.com/ayusman/stylecam/internal/styles"
)

// DefaultListLimit caps GET /api/captures when no limit is given.
const DefaultListLimit = 50

// Analyzer classifies photos and accepts style corrections.
type Analyzer interface {
	ProcessImage(ctx context.Context, jpeg []byte) (*analysis.Result, error)
	SubmitFeedback(ctx context.Context, recordID, style string) error
}

// CaptureHandler handles HTTP requests for capture resources.
type CaptureHandler struct {
	store    *store.Store
	analyzer Analyzer
}

// NewCaptureHandler creates a CaptureHandler. analyzer may be nil, in which
// case analysis requests fail and feedback is only stored locally.
func NewCaptureHandler(s *store.Store, analyzer Analyzer) *CaptureHandler {
	return &CaptureHandler{store: s, analyzer: analyzer}
}

// ServeHTTP routes requests for:
//
//	/api/captures
//	/api/captures/{id}
//	/api/captures/{id}/image
//	/api/captures/{id}/analyze
//	/api/captures/{id}/feedback
func (h *CaptureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/captures")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch parts[1] {
	case "image":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.image(w, r, id)
	case "analyze":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.analyze(w, r, id)
	case "feedback":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.feedback(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Request and response types

type feedbackRequest struct {
	Style string `json:"style"`
}

type feedbackResponse struct {
	ID        string `json:"id"`
	Style     string `json:"style"`
	Forwarded bool   `json:"forwarded"`
}

type predictionResponse struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

type captureResponse struct {
	ID             string               `json:"id"`
	Trigger        string               `json:"trigger"`
	Width          int                  `json:"width"`
	Height         int                  `json:"height"`
	ImageURL       string               `json:"image_url"`
	RemoteID       string               `json:"remote_id,omitempty"`
	TopPrediction  string               `json:"top_prediction,omitempty"`
	TopConfidence  float64              `json:"top_confidence,omitempty"`
	Predictions    []predictionResponse `json:"predictions,omitempty"`
	UserCorrection string               `json:"user_correction,omitempty"`
	FeedbackAt     string               `json:"feedback_at,omitempty"`
	CreatedAt      string               `json:"created_at"`
}

type listCapturesResponse struct {
	Captures []captureResponse `json:"captures"`
}

func toResponse(c *store.Capture) captureResponse {
	resp := captureResponse{
		ID:             c.ID,
		Trigger:        c.Trigger,
		Width:          c.Width,
		Height:         c.Height,
		ImageURL:       "/api/captures/" + c.ID + "/image",
		RemoteID:       c.RemoteID,
		TopPrediction:  c.TopPrediction,
		TopConfidence:  c.TopConfidence,
		UserCorrection: c.UserCorrection,
		CreatedAt:      formatTime(c.CreatedAt),
	}
	for _, p := range c.Predictions {
		resp.Predictions = append(resp.Predictions, predictionResponse{
			Name:        p.Name,
			Description: p.Description,
			Confidence:  p.Confidence,
		})
	}
	if c.FeedbackAt != nil {
		resp.FeedbackAt = formatTime(*c.FeedbackAt)
	}
	return resp
}

// list handles GET /api/captures?limit=N, newest first.
func (h *CaptureHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	captures, err := h.store.Captures().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list captures")
		return
	}

	response := listCapturesResponse{
		Captures: make([]captureResponse, 0, len(captures)),
	}
	for _, c := range captures {
		response.Captures = append(response.Captures, toResponse(c))
	}

	writeJSON(w, http.StatusOK, response)
}

// lookup fetches a capture, writing the error response when it fails.
func (h *CaptureHandler) lookup(w http.ResponseWriter, id string) (*store.Capture, bool) {
	c, err := h.store.Captures().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Capture not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get capture")
		return nil, false
	}
	return c, true
}

// get handles GET /api/captures/{id}.
func (h *CaptureHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	c, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

// image handles GET /api/captures/{id}/image and returns the JPEG.
func (h *CaptureHandler) image(w http.ResponseWriter, r *http.Request, id string) {
	c, ok := h.lookup(w, id)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(c.Image)))
	w.WriteHeader(http.StatusOK)
	w.Write(c.Image)
}

// analyze handles POST /api/captures/{id}/analyze. It sends the photo to
// the style backend and stores the predictions.
func (h *CaptureHandler) analyze(w http.ResponseWriter, r *http.Request, id string) {
	if h.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "Analysis backend not configured")
		return
	}

	c, ok := h.lookup(w, id)
	if !ok {
		return
	}

	if err := AnalyzeCapture(r.Context(), h.analyzer, h.store, c.ID, c.Image); err != nil {
		log.Printf("Analysis of capture %s failed: %v", id, err)
		if errors.Is(err, errSaveAnalysis) {
			writeError(w, http.StatusInternalServerError, "Failed to save analysis")
			return
		}
		writeError(w, http.StatusBadGateway, "Analysis backend failed")
		return
	}

	h.get(w, r, id)
}

var errSaveAnalysis = errors.New("save analysis")

// AnalyzeCapture sends a capture's photo to the style backend and stores the
// returned predictions, best first.
func AnalyzeCapture(ctx context.Context, a Analyzer, s *store.Store, id string, image []byte) error {
	result, err := a.ProcessImage(ctx, image)
	if err != nil {
		return err
	}

	predictions := make([]store.Prediction, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		predictions = append(predictions, store.Prediction(p))
	}
	if len(predictions) == 0 {
		if top, ok := result.Top(); ok {
			predictions = append(predictions, store.Prediction(top))
		}
	}
	slices.SortStableFunc(predictions, func(x, y store.Prediction) int {
		return cmp.Compare(y.Confidence, x.Confidence)
	})

	if err := s.Captures().SetAnalysis(id, result.RecordID, predictions); err != nil {
		return fmt.Errorf("%w: %w", errSaveAnalysis, err)
	}
	return nil
}

// feedback handles POST /api/captures/{id}/feedback with {"style": ...}.
// The correction is always stored locally. It is forwarded to the backend
// only when the capture is the backend's current record; otherwise, or when
// forwarding fails, the response reports forwarded=false.
func (h *CaptureHandler) feedback(w http.ResponseWriter, r *http.Request, id string) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Style == "" {
		writeError(w, http.StatusBadRequest, "Style is required")
		return
	}
	if !styles.Valid(req.Style) {
		writeError(w, http.StatusBadRequest, "Unknown style")
		return
	}

	c, ok := h.lookup(w, id)
	if !ok {
		return
	}

	if err := h.store.Captures().SetFeedback(id, req.Style); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Capture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save feedback")
		return
	}

	resp := feedbackResponse{ID: id, Style: req.Style}
	if h.analyzer != nil {
		err := h.analyzer.SubmitFeedback(r.Context(), c.RemoteID, req.Style)
		switch {
		case errors.Is(err, analysis.ErrNotCurrentRecord):
			log.Printf("Feedback for capture %s kept locally: not the backend's current record", id)
		case err != nil:
			log.Printf("Forwarding feedback for capture %s failed: %v", id, err)
		default:
			resp.Forwarded = true
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// delete handles DELETE /api/captures/{id}.
func (h *CaptureHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Captures().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Capture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete capture")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
