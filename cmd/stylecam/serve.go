package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/stylecam/internal/analysis"
	"github.com/ayusman/stylecam/internal/capture"
	"github.com/ayusman/stylecam/internal/config"
	"github.com/ayusman/stylecam/internal/detector"
	"github.com/ayusman/stylecam/internal/gesture"
	"github.com/ayusman/stylecam/internal/server"
	"github.com/ayusman/stylecam/internal/server/api"
	"github.com/ayusman/stylecam/internal/session"
	"github.com/ayusman/stylecam/internal/store"
	"github.com/ayusman/stylecam/internal/tray"
)

var serveOpts struct {
	camera      int
	shape       string
	hold        time.Duration
	addr        string
	backend     string
	staticDir   string
	noTray      bool
	noMirror    bool
	autoAnalyze bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the camera session and web interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyServeFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runServe(cmd.Context())
	},
}

func init() {
	f := serveCmd.Flags()
	f.IntVar(&serveOpts.camera, "camera", 0, "camera device ID")
	f.StringVar(&serveOpts.shape, "shape", "", "trigger gesture: hand-at-eye-level or t-pose")
	f.DurationVar(&serveOpts.hold, "hold", 0, "how long the gesture must be held")
	f.StringVar(&serveOpts.addr, "addr", "", "HTTP listen address")
	f.StringVar(&serveOpts.backend, "backend", "", "style analysis backend URL (empty disables analysis)")
	f.StringVar(&serveOpts.staticDir, "static", "", "directory of web pages to serve")
	f.BoolVar(&serveOpts.noTray, "no-tray", false, "run without the system tray menu")
	f.BoolVar(&serveOpts.noMirror, "no-mirror", false, "show the preview unmirrored")
	f.BoolVar(&serveOpts.autoAnalyze, "auto-analyze", true, "send each capture to the backend as soon as it is taken")
	rootCmd.AddCommand(serveCmd)
}

// applyServeFlags overrides the loaded config with explicitly set flags.
func applyServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("camera") {
		cfg.Camera.DeviceID = serveOpts.camera
	}
	if f.Changed("shape") {
		cfg.Gesture.Shape = serveOpts.shape
	}
	if f.Changed("hold") {
		cfg.Gesture.Hold = config.Duration(serveOpts.hold)
	}
	if f.Changed("addr") {
		cfg.Server.Addr = serveOpts.addr
	}
	if f.Changed("backend") {
		cfg.Backend.URL = serveOpts.backend
	}
	if f.Changed("static") {
		cfg.Server.StaticDir = serveOpts.staticDir
	}
	if f.Changed("no-tray") {
		cfg.Tray = !serveOpts.noTray
	}
	if f.Changed("no-mirror") {
		cfg.Overlay.Mirrored = !serveOpts.noMirror
	}
}

func runServe(ctx context.Context) error {
	fmt.Println("StyleCam - gesture-triggered outfit camera")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	shape, err := gesture.ParseShape(cfg.Gesture.Shape)
	if err != nil {
		return err
	}

	var analyzer *analysis.Client
	if cfg.Backend.URL != "" {
		analyzer, err = analysis.NewClient(analysis.Config{
			BaseURL: cfg.Backend.URL,
			Timeout: time.Duration(cfg.Backend.Timeout),
		})
		if err != nil {
			return err
		}
		log.Printf("Style analysis backend: %s", analyzer.BaseURL())
	}

	trayMenu := tray.New()

	sess, err := session.New(session.Config{
		Camera: capture.NewCameraWithConfig(capture.Config{
			DeviceID: cfg.Camera.DeviceID,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			FPS:      cfg.Camera.FPS,
		}),
		Detector:    newDetector(),
		Store:       st,
		Shape:       shape,
		Threshold:   cfg.HoldDuration(),
		Mirrored:    cfg.Overlay.Mirrored,
		Padding:     cfg.Overlay.Padding,
		FPS:         cfg.Camera.FPS,
		StallChecks: cfg.Camera.StallChecks,
		OnCapture: func(c session.Capture) {
			trayMenu.SetLastCapture(c.At.Format("15:04:05"))
			if analyzer != nil && serveOpts.autoAnalyze {
				go analyzeInBackground(ctx, analyzer, st, c)
			}
		},
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	srvConfig := server.Config{
		StaticDir: cfg.Server.StaticDir,
		Store:     st,
		Session:   sess,
	}
	if srvConfig.StaticDir == "" {
		srvConfig.StaticDir = findWebDir()
	}
	if srvConfig.StaticDir != "" {
		fmt.Printf("Serving static files from: %s\n", srvConfig.StaticDir)
	}
	if analyzer != nil {
		srvConfig.Analyzer = analyzer
	}

	srv := server.New(srvConfig)
	defer srv.Close()

	go func() {
		if err := sess.Run(ctx); err != nil {
			log.Printf("Capture session failed: %v", err)
		}
		cancel()
	}()
	if err := sess.Start(ctx); err != nil {
		log.Printf("Camera did not start: %v", err)
	}

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
			log.Printf("Server failed: %v", err)
		}
		cancel()
	}()

	if cfg.Tray {
		runTray(ctx, cancel, trayMenu, sess, pageURL(cfg.Server.Addr))
	} else {
		<-ctx.Done()
	}

	<-serverDone
	select {
	case <-sess.Done():
	case <-time.After(server.ShutdownTimeout):
	}
	return nil
}

// newDetector returns the MoveNet estimator, or a detector that reports
// the estimator as unavailable so the session falls back to manual capture.
func newDetector() detector.Detector {
	cfgDetector := detector.DefaultConfig()
	if cfg.Gesture.ModelType != "" {
		cfgDetector.ModelType = cfg.Gesture.ModelType
	}

	mn, err := detector.NewMoveNetDetector(cfgDetector)
	if err == nil {
		log.Println("Using MoveNet pose estimation")
		return mn
	}

	log.Printf("MoveNet not available (%v), manual capture only", err)
	unavailable := detector.NewMockDetector()
	unavailable.SetLoadError(err)
	return unavailable
}

func analyzeInBackground(ctx context.Context, a api.Analyzer, st *store.Store, c session.Capture) {
	if err := api.AnalyzeCapture(ctx, a, st, c.ID, c.Image); err != nil {
		log.Printf("Automatic analysis of %s failed: %v", c.ID, err)
		return
	}
	log.Printf("Capture %s analyzed", c.ID)
}

// runTray blocks on the tray menu, refreshing it from the session until the
// user quits or ctx ends.
func runTray(ctx context.Context, cancel context.CancelFunc, t *tray.Tray, sess *session.Session, url string) {
	t.OnCapture(func() {
		if err := sess.Capture(ctx); err != nil {
			log.Printf("Capture from tray failed: %v", err)
		}
	})
	t.OnRetake(func() {
		if err := sess.Retake(ctx); err != nil {
			log.Printf("Retake from tray failed: %v", err)
		}
	})
	t.OnOpenPage(func() {
		if err := openBrowser(url); err != nil {
			log.Printf("Could not open %s: %v", url, err)
		}
	})
	t.OnQuit(cancel)

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				t.Quit()
				return
			case <-ticker.C:
				t.Update(sess.Snapshot())
			}
		}
	}()

	t.Run()
}

func pageURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	}
	return exec.Command("xdg-open", url).Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.stylecam/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if absPath, err := filepath.Abs(p); err == nil {
				return absPath
			}
			return p
		}
	}

	dir, err := cfg.ResolveDataDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(dir, "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
