package api

import (
	"net/http"

	"github.com/ayusman/stylecam/internal/store"
	"github.com/ayusman/stylecam/internal/styles"
)

type stylesResponse struct {
	Styles []styles.Style `json:"styles"`
}

// StylesHandler serves the style catalogue.
type StylesHandler struct{}

// NewStylesHandler creates a StylesHandler.
func NewStylesHandler() *StylesHandler {
	return &StylesHandler{}
}

// ServeHTTP handles GET /api/styles.
func (h *StylesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, stylesResponse{Styles: styles.All()})
}

type countResponse struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type statsResponse struct {
	TotalCaptures  int             `json:"total_captures"`
	Analyzed       int             `json:"analyzed"`
	WithFeedback   int             `json:"with_feedback"`
	FeedbackRate   float64         `json:"feedback_rate"`
	TopPredictions []countResponse `json:"top_predictions"`
	Corrections    []countResponse `json:"corrections"`
}

// StatsHandler serves aggregate capture statistics.
type StatsHandler struct {
	store *store.Store
}

// NewStatsHandler creates a StatsHandler with the given store.
func NewStatsHandler(s *store.Store) *StatsHandler {
	return &StatsHandler{store: s}
}

// ServeHTTP handles GET /api/stats.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.store.Captures().Statistics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalCaptures:  stats.TotalCaptures,
		Analyzed:       stats.Analyzed,
		WithFeedback:   stats.WithFeedback,
		FeedbackRate:   stats.FeedbackRate,
		TopPredictions: toCounts(stats.TopPredictions),
		Corrections:    toCounts(stats.Corrections),
	})
}

func toCounts(counts []store.Count) []countResponse {
	out := make([]countResponse, 0, len(counts))
	for _, c := range counts {
		out = append(out, countResponse{Name: c.Name, Count: c.Count})
	}
	return out
}
