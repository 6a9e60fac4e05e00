// Package config loads stylecam settings from an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ayusman/stylecam/internal/gesture"
	"github.com/ayusman/stylecam/internal/overlay"
)

// DirName is the per-user data directory under the home directory.
const DirName = ".stylecam"

// Config holds every tunable setting. Durations are written as Go duration
// strings in the file, e.g. hold = "3s".
type Config struct {
	Camera  CameraConfig  `toml:"camera"`
	Gesture GestureConfig `toml:"gesture"`
	Overlay OverlayConfig `toml:"overlay"`
	Backend BackendConfig `toml:"backend"`
	Server  ServerConfig  `toml:"server"`

	// DataDir holds the database and helper scripts. Empty means ~/.stylecam.
	DataDir string `toml:"data_dir"`
	Tray    bool   `toml:"tray"`
}

type CameraConfig struct {
	DeviceID    int `toml:"device_id"`
	Width       int `toml:"width"`
	Height      int `toml:"height"`
	FPS         int `toml:"fps"`
	StallChecks int `toml:"stall_checks"`
}

type GestureConfig struct {
	Shape string   `toml:"shape"`
	Hold  Duration `toml:"hold"`
	// ModelType selects the MoveNet variant, "lightning" or "thunder".
	ModelType string `toml:"model"`
}

type OverlayConfig struct {
	Mirrored bool            `toml:"mirrored"`
	Padding  overlay.Padding `toml:"padding"`
}

type BackendConfig struct {
	URL     string   `toml:"url"`
	Timeout Duration `toml:"timeout"`
}

type ServerConfig struct {
	Addr      string `toml:"addr"`
	StaticDir string `toml:"static_dir"`
}

// Duration is a time.Duration that reads and writes as a string.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Camera: CameraConfig{
			Width:       640,
			Height:      480,
			FPS:         15,
			StallChecks: 3,
		},
		Gesture: GestureConfig{
			Shape:     string(gesture.ShapeHandAtEyeLevel),
			Hold:      Duration(gesture.DefaultThreshold),
			ModelType: "lightning",
		},
		Overlay: OverlayConfig{
			Mirrored: true,
			Padding:  overlay.DefaultPadding,
		},
		Backend: BackendConfig{
			URL:     "http://localhost:5000",
			Timeout: Duration(30 * time.Second),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Tray: true,
	}
}

// DefaultPath returns ~/.stylecam/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName, "config.toml"), nil
}

// Load reads the file at path over the defaults. A missing file is not an
// error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks settings that would otherwise fail deep inside the
// session.
func (c Config) Validate() error {
	if _, err := gesture.ParseShape(c.Gesture.Shape); err != nil {
		return err
	}
	if c.Gesture.Hold < 0 {
		return errors.New("gesture hold must not be negative")
	}
	if c.Camera.FPS < 0 {
		return errors.New("camera fps must not be negative")
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		return errors.New("camera size must not be negative")
	}
	return nil
}

// ResolveDataDir returns DataDir, or ~/.stylecam when it is empty.
func (c Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// HoldDuration returns the gesture hold threshold.
func (c Config) HoldDuration() time.Duration {
	return time.Duration(c.Gesture.Hold)
}
