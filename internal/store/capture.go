package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Capture is a photo taken by the capture session, along with whatever the
// analysis backend and the user later said about it.
type Capture struct {
	ID      string
	Trigger string
	// Image holds the JPEG bytes. It is only populated by GetByID.
	Image  []byte
	Width  int
	Height int

	RemoteID       string
	TopPrediction  string
	TopConfidence  float64
	Predictions    []Prediction
	UserCorrection string
	FeedbackAt     *time.Time
	CreatedAt      time.Time
}

// Analyzed reports whether predictions have been recorded for the capture.
func (c *Capture) Analyzed() bool {
	return c.TopPrediction != ""
}

// Prediction is one style score, ordered best first within a capture.
type Prediction struct {
	Name        string
	Description string
	Confidence  float64
}

// Count pairs a style name with how many captures carry it.
type Count struct {
	Name  string
	Count int
}

// Statistics summarises stored captures.
type Statistics struct {
	TotalCaptures  int
	Analyzed       int
	WithFeedback   int
	FeedbackRate   float64
	TopPredictions []Count
	Corrections    []Count
}

// CaptureRepository provides CRUD operations for captures.
type CaptureRepository struct {
	db *sql.DB
}

// Captures returns the capture repository for this store.
func (s *Store) Captures() *CaptureRepository {
	return &CaptureRepository{db: s.db}
}

// Create inserts a new capture. CreatedAt is set to the current time.
func (r *CaptureRepository) Create(c *Capture) error {
	if c.ID == "" {
		return errors.New("capture id is required")
	}
	if len(c.Image) == 0 {
		return errors.New("capture image is empty")
	}
	c.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO captures (id, trigger, image, width, height, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Trigger, c.Image, c.Width, c.Height, c.CreatedAt,
	)
	return err
}

// GetByID retrieves a capture, including its image and predictions.
func (r *CaptureRepository) GetByID(id string) (*Capture, error) {
	c := &Capture{}
	var correction sql.NullString
	var feedbackAt sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, trigger, image, width, height, remote_id, top_prediction, top_confidence,
		        user_correction, feedback_at, created_at
		 FROM captures WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Trigger, &c.Image, &c.Width, &c.Height, &c.RemoteID, &c.TopPrediction,
		&c.TopConfidence, &correction, &feedbackAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	applyFeedback(c, correction, feedbackAt)

	c.Predictions, err = r.predictions(id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns the most recent captures first, without image bytes or
// prediction lists. A non-positive limit returns every capture.
func (r *CaptureRepository) List(limit int) ([]*Capture, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, trigger, width, height, remote_id, top_prediction, top_confidence,
		        user_correction, feedback_at, created_at
		 FROM captures ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var captures []*Capture
	for rows.Next() {
		c := &Capture{}
		var correction sql.NullString
		var feedbackAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.Trigger, &c.Width, &c.Height, &c.RemoteID, &c.TopPrediction,
			&c.TopConfidence, &correction, &feedbackAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		applyFeedback(c, correction, feedbackAt)
		captures = append(captures, c)
	}

	return captures, rows.Err()
}

// SetAnalysis records the backend's predictions for a capture, replacing
// any earlier ones. Predictions must be ordered best first.
func (r *CaptureRepository) SetAnalysis(id, remoteID string, predictions []Prediction) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var top Prediction
	if len(predictions) > 0 {
		top = predictions[0]
	}

	result, err := tx.Exec(
		`UPDATE captures SET remote_id = ?, top_prediction = ?, top_confidence = ? WHERE id = ?`,
		remoteID, top.Name, top.Confidence, id,
	)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM predictions WHERE capture_id = ?`, id); err != nil {
		return err
	}
	for i, p := range predictions {
		if _, err := tx.Exec(
			`INSERT INTO predictions (capture_id, rank, name, description, confidence)
			 VALUES (?, ?, ?, ?, ?)`,
			id, i, p.Name, p.Description, p.Confidence,
		); err != nil {
			return fmt.Errorf("insert prediction %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// SetFeedback records the style the user says the capture really shows.
func (r *CaptureRepository) SetFeedback(id, style string) error {
	result, err := r.db.Exec(
		`UPDATE captures SET user_correction = ?, feedback_at = ? WHERE id = ?`,
		style, time.Now(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a capture and its predictions.
func (r *CaptureRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Statistics aggregates prediction and feedback counts across all captures.
func (r *CaptureRepository) Statistics() (*Statistics, error) {
	s := &Statistics{}

	err := r.db.QueryRow(
		`SELECT COUNT(*),
		        COUNT(CASE WHEN top_prediction != '' THEN 1 END),
		        COUNT(user_correction)
		 FROM captures`,
	).Scan(&s.TotalCaptures, &s.Analyzed, &s.WithFeedback)
	if err != nil {
		return nil, err
	}
	if s.TotalCaptures > 0 {
		s.FeedbackRate = float64(s.WithFeedback) / float64(s.TotalCaptures)
	}

	s.TopPredictions, err = r.counts(
		`SELECT top_prediction, COUNT(*) AS n FROM captures
		 WHERE top_prediction != '' GROUP BY top_prediction ORDER BY n DESC, top_prediction`,
	)
	if err != nil {
		return nil, err
	}

	s.Corrections, err = r.counts(
		`SELECT user_correction, COUNT(*) AS n FROM captures
		 WHERE user_correction IS NOT NULL GROUP BY user_correction ORDER BY n DESC, user_correction`,
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (r *CaptureRepository) predictions(captureID string) ([]Prediction, error) {
	rows, err := r.db.Query(
		`SELECT name, description, confidence FROM predictions
		 WHERE capture_id = ? ORDER BY rank`,
		captureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var predictions []Prediction
	for rows.Next() {
		var p Prediction
		if err := rows.Scan(&p.Name, &p.Description, &p.Confidence); err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}

	return predictions, rows.Err()
}

func (r *CaptureRepository) counts(query string) ([]Count, error) {
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

func applyFeedback(c *Capture, correction sql.NullString, feedbackAt sql.NullTime) {
	if correction.Valid {
		c.UserCorrection = correction.String
	}
	if feedbackAt.Valid {
		t := feedbackAt.Time
		c.FeedbackAt = &t
	}
}
