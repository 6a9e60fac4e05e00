package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

// MoveNetDetector implements Detector using a Python MoveNet subprocess.
type MoveNetDetector struct {
	config     Config
	scriptPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
}

// NewMoveNetDetector creates a new MoveNet detector.
// The Python process is started by Load.
func NewMoveNetDetector(config Config) (*MoveNetDetector, error) {
	scriptPath := findMoveNetScript()
	if scriptPath == "" {
		return nil, fmt.Errorf("movenet_service.py not found: %w", ErrEstimatorUnavailable)
	}

	return &MoveNetDetector{
		config:     config,
		scriptPath: scriptPath,
	}, nil
}

// Load starts the Python service and waits until the model reports ready.
func (d *MoveNetDetector) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureStarted(ctx)
}

// Detect analyzes a frame and returns detected poses. It returns
// ErrNotLoaded until Load succeeds, and again after the service dies.
func (d *MoveNetDetector) Detect(frame *gocv.Mat) ([]Pose, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil, ErrNotLoaded
	}

	// Encode frame as JPEG
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return nil, d.fail(fmt.Errorf("write length: %w", err))
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, d.fail(fmt.Errorf("write data: %w", err))
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, d.fail(fmt.Errorf("read response: %w", err))
	}

	return parseResponse([]byte(line))
}

// Close shuts down the Python process.
func (d *MoveNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MoveNetDetector) ensureStarted(ctx context.Context) error {
	if d.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	args := []string{d.scriptPath, "--model", d.config.ModelType,
		"--min-pose-score", fmt.Sprintf("%.2f", d.config.MinPoseScore)}
	if d.config.EnableSmoothing {
		args = append(args, "--smoothing")
	}
	d.cmd = exec.Command(pythonPath, args...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start movenet service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	if err := d.awaitReady(ctx); err != nil {
		d.shutdown()
		return err
	}

	return nil
}

// awaitReady reads the service's handshake line. The service prints
// {"ready": true} once the model weights are loaded.
func (d *MoveNetDetector) awaitReady(ctx context.Context) error {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	reader := d.stdout
	go func() {
		line, err := reader.ReadString('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting for model: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("read handshake: %w", r.err)
		}
		var hs struct {
			Ready bool   `json:"ready"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(r.line), &hs); err != nil {
			return fmt.Errorf("parse handshake: %w", err)
		}
		if !hs.Ready {
			return fmt.Errorf("model not ready: %s", hs.Error)
		}
		return nil
	}
}

func (d *MoveNetDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

// fail tears down a service whose pipes broke so the next Detect reports
// ErrNotLoaded.
func (d *MoveNetDetector) fail(err error) error {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.shutdown()
	return fmt.Errorf("%w: %v", ErrNotLoaded, err)
}

func findMoveNetScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/movenet_service.py",
		"../scripts/movenet_service.py",
		filepath.Join(execDir, "scripts/movenet_service.py"),
		filepath.Join(os.Getenv("HOME"), ".stylecam/scripts/movenet_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".stylecam/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonPose represents the JSON structure from the Python service.
type jsonPose struct {
	Keypoints []Keypoint `json:"keypoints"`
	Score     float64    `json:"score"`
}

// parseResponse decodes one detection line. Unnamed keypoints are assigned
// names by position.
func parseResponse(line []byte) ([]Pose, error) {
	var response struct {
		Poses []jsonPose `json:"poses"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("estimator: %s", response.Error)
	}

	poses := make([]Pose, len(response.Poses))
	for i, p := range response.Poses {
		kps := make([]Keypoint, len(p.Keypoints))
		for j, k := range p.Keypoints {
			if k.Name == "" && j < len(KeypointNames) {
				k.Name = KeypointNames[j]
			}
			kps[j] = k
		}
		poses[i] = Pose{Keypoints: kps, Score: p.Score}
	}
	return poses, nil
}
