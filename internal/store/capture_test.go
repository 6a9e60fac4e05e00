package store

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

var testJPEG = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

func createCapture(t *testing.T, repo *CaptureRepository, id string) *Capture {
	t.Helper()

	c := &Capture{ID: id, Trigger: "hand-at-eye-level", Image: testJPEG, Width: 640, Height: 480}
	if err := repo.Create(c); err != nil {
		t.Fatalf("Create(%s) error = %v", id, err)
	}
	return c
}

func TestCaptureRepository_Create(t *testing.T) {
	repo := newTestStore(t).Captures()

	t.Run("stores image and metadata", func(t *testing.T) {
		c := createCapture(t, repo, "c1")
		if c.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}

		got, err := repo.GetByID("c1")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if !bytes.Equal(got.Image, testJPEG) {
			t.Errorf("image = %v, want %v", got.Image, testJPEG)
		}
		if got.Trigger != "hand-at-eye-level" || got.Width != 640 || got.Height != 480 {
			t.Errorf("unexpected capture %+v", got)
		}
		if got.Analyzed() || got.UserCorrection != "" || got.FeedbackAt != nil {
			t.Errorf("new capture should have no analysis or feedback: %+v", got)
		}
	})

	t.Run("rejects missing id", func(t *testing.T) {
		if err := repo.Create(&Capture{Image: testJPEG}); err == nil {
			t.Error("expected error for missing id")
		}
	})

	t.Run("rejects empty image", func(t *testing.T) {
		if err := repo.Create(&Capture{ID: "empty"}); err == nil {
			t.Error("expected error for empty image")
		}
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		if err := repo.Create(&Capture{ID: "c1", Image: testJPEG}); err == nil {
			t.Error("expected error for duplicate id")
		}
	})
}

func TestCaptureRepository_GetByID_NotFound(t *testing.T) {
	repo := newTestStore(t).Captures()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCaptureRepository_List(t *testing.T) {
	repo := newTestStore(t).Captures()
	for i := 0; i < 5; i++ {
		createCapture(t, repo, fmt.Sprintf("c%d", i))
	}

	t.Run("newest first", func(t *testing.T) {
		list, err := repo.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != 5 {
			t.Fatalf("expected 5 captures, got %d", len(list))
		}
		if list[0].ID != "c4" || list[4].ID != "c0" {
			t.Errorf("unexpected order: first %s, last %s", list[0].ID, list[4].ID)
		}
		if list[0].Image != nil {
			t.Error("List should not load image bytes")
		}
	})

	t.Run("limit", func(t *testing.T) {
		list, err := repo.List(2)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != 2 {
			t.Errorf("expected 2 captures, got %d", len(list))
		}
	})
}

func TestCaptureRepository_SetAnalysis(t *testing.T) {
	repo := newTestStore(t).Captures()
	createCapture(t, repo, "c1")

	predictions := []Prediction{
		{Name: "Streetwear", Description: "Urban casual", Confidence: 0.71},
		{Name: "Minimalist", Description: "Clean lines", Confidence: 0.2},
		{Name: "Bohemian", Description: "Free spirited", Confidence: 0.09},
	}
	if err := repo.SetAnalysis("c1", "remote-42", predictions); err != nil {
		t.Fatalf("SetAnalysis() error = %v", err)
	}

	got, err := repo.GetByID("c1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.RemoteID != "remote-42" {
		t.Errorf("RemoteID = %q, want remote-42", got.RemoteID)
	}
	if got.TopPrediction != "Streetwear" || got.TopConfidence != 0.71 {
		t.Errorf("top prediction = %s (%f), want Streetwear (0.71)", got.TopPrediction, got.TopConfidence)
	}
	if len(got.Predictions) != 3 || got.Predictions[2].Name != "Bohemian" {
		t.Errorf("predictions not stored in order: %+v", got.Predictions)
	}

	t.Run("replaces earlier predictions", func(t *testing.T) {
		if err := repo.SetAnalysis("c1", "remote-43", predictions[1:2]); err != nil {
			t.Fatalf("SetAnalysis() error = %v", err)
		}
		got, _ := repo.GetByID("c1")
		if len(got.Predictions) != 1 || got.TopPrediction != "Minimalist" {
			t.Errorf("expected single Minimalist prediction, got %+v", got.Predictions)
		}
	})

	t.Run("unknown capture", func(t *testing.T) {
		if err := repo.SetAnalysis("missing", "r", predictions); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestCaptureRepository_SetFeedback(t *testing.T) {
	repo := newTestStore(t).Captures()
	createCapture(t, repo, "c1")

	if err := repo.SetFeedback("c1", "Vintage"); err != nil {
		t.Fatalf("SetFeedback() error = %v", err)
	}

	got, err := repo.GetByID("c1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.UserCorrection != "Vintage" {
		t.Errorf("UserCorrection = %q, want Vintage", got.UserCorrection)
	}
	if got.FeedbackAt == nil {
		t.Error("expected FeedbackAt to be set")
	}

	if err := repo.SetFeedback("missing", "Vintage"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCaptureRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Captures()
	createCapture(t, repo, "c1")
	if err := repo.SetAnalysis("c1", "r", []Prediction{{Name: "Classic", Confidence: 0.5}}); err != nil {
		t.Fatalf("SetAnalysis() error = %v", err)
	}

	if err := repo.Delete("c1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID("c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM predictions").Scan(&n); err != nil {
		t.Fatalf("count predictions: %v", err)
	}
	if n != 0 {
		t.Errorf("expected predictions to cascade, %d left", n)
	}

	if err := repo.Delete("c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCaptureRepository_Statistics(t *testing.T) {
	repo := newTestStore(t).Captures()

	t.Run("empty store", func(t *testing.T) {
		stats, err := repo.Statistics()
		if err != nil {
			t.Fatalf("Statistics() error = %v", err)
		}
		if stats.TotalCaptures != 0 || stats.FeedbackRate != 0 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	for i := 0; i < 4; i++ {
		createCapture(t, repo, fmt.Sprintf("c%d", i))
	}
	analyses := map[string]string{"c0": "Streetwear", "c1": "Streetwear", "c2": "Formal"}
	for id, style := range analyses {
		if err := repo.SetAnalysis(id, "r-"+id, []Prediction{{Name: style, Confidence: 0.8}}); err != nil {
			t.Fatalf("SetAnalysis(%s) error = %v", id, err)
		}
	}
	if err := repo.SetFeedback("c1", "Vintage"); err != nil {
		t.Fatalf("SetFeedback() error = %v", err)
	}

	stats, err := repo.Statistics()
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}

	if stats.TotalCaptures != 4 || stats.Analyzed != 3 || stats.WithFeedback != 1 {
		t.Errorf("unexpected totals %+v", stats)
	}
	if stats.FeedbackRate != 0.25 {
		t.Errorf("FeedbackRate = %f, want 0.25", stats.FeedbackRate)
	}
	want := []Count{{Name: "Streetwear", Count: 2}, {Name: "Formal", Count: 1}}
	if len(stats.TopPredictions) != len(want) {
		t.Fatalf("TopPredictions = %+v, want %+v", stats.TopPredictions, want)
	}
	for i := range want {
		if stats.TopPredictions[i] != want[i] {
			t.Errorf("TopPredictions[%d] = %+v, want %+v", i, stats.TopPredictions[i], want[i])
		}
	}
	if len(stats.Corrections) != 1 || stats.Corrections[0] != (Count{Name: "Vintage", Count: 1}) {
		t.Errorf("Corrections = %+v", stats.Corrections)
	}
}
