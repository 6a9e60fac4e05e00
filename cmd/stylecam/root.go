package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/stylecam/internal/config"
	"github.com/ayusman/stylecam/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// cfg is the loaded configuration shared by subcommands
	cfg config.Config
	// configPath is the TOML file to read
	configPath string
	// dataDir overrides the configured data directory
	dataDir string
)

var rootCmd = &cobra.Command{
	Use:     "stylecam",
	Short:   "Gesture-triggered outfit camera with style analysis",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = config.DefaultPath(); err != nil {
				return err
			}
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir = dataDir
		}
		return nil
	},
}

// Execute runs the root command with a context cancelled on Ctrl+C.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.stylecam/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the capture database (default: ~/.stylecam)")
}

// openStore opens the capture database in the configured data directory.
func openStore() (*store.Store, error) {
	dir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.New(filepath.Join(dir, "stylecam.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}
