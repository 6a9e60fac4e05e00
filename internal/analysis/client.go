// Package analysis talks to the outfit style backend: it uploads captured
// photos for classification and forwards user corrections.
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds each backend request.
const DefaultTimeout = 30 * time.Second

var (
	// ErrNoImage is returned when ProcessImage is called without image bytes.
	ErrNoImage = errors.New("no image provided")
	// ErrNotCurrentRecord is returned by SubmitFeedback when the record is
	// not the one the backend session last processed.
	ErrNotCurrentRecord = errors.New("record is not the backend's current record")
)

// Config configures the backend client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Prediction is one style score returned by the backend.
type Prediction struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Result is the backend's classification of one image.
type Result struct {
	RecordID      string       `json:"record_id"`
	Predictions   []Prediction `json:"predictions"`
	TopPrediction *Prediction  `json:"top_prediction"`
}

// Top returns the best prediction, falling back to the first in the list.
func (r *Result) Top() (Prediction, bool) {
	if r.TopPrediction != nil {
		return *r.TopPrediction, true
	}
	if len(r.Predictions) > 0 {
		return r.Predictions[0], true
	}
	return Prediction{}, false
}

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Path, e.Code)
}

// Client is an HTTP client for the style backend. The backend applies
// feedback to the last record processed in its cookie session, so the
// Client serialises calls and only forwards feedback for that record.
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu      sync.Mutex
	current string
}

// NewClient creates a Client with its own cookie jar.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// BaseURL returns the backend address requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ProcessImage uploads a JPEG and returns the backend's style predictions.
func (c *Client) ProcessImage(ctx context.Context, jpeg []byte) (*Result, error) {
	if len(jpeg) == 0 {
		return nil, ErrNoImage
	}

	req := map[string]string{
		"image": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var result Result
	if err := c.post(ctx, "/process_image", req, &result); err != nil {
		return nil, err
	}
	c.current = result.RecordID
	return &result, nil
}

// CurrentRecord returns the record ID of the last successfully processed
// image, or "" if none.
func (c *Client) CurrentRecord() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SubmitFeedback tells the backend which style the image stored as recordID
// actually shows. It returns ErrNotCurrentRecord without contacting the
// backend unless recordID is the last record processed.
func (c *Client) SubmitFeedback(ctx context.Context, recordID, style string) error {
	if style == "" {
		return errors.New("style is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if recordID == "" || recordID != c.current {
		return ErrNotCurrentRecord
	}
	return c.post(ctx, "/submit_feedback", map[string]string{"style": style}, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Path: path, Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts the backend's {"error": ...} message if present.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
