package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/namaznow/timings-import/internal/config"
	"github.com/namaznow/timings-import/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "configs/timings-import.toml"

var configPath string

func main() {
	// Values from .env never override the real environment
	envErr := godotenv.Load()

	// Determine if we're in development mode
	isDev := os.Getenv("ENV") != "production"

	// Initialize logging
	logging.Initialize(isDev)

	// Get a logger for the main component
	logger := logging.GetLogger("main")
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn().Err(envErr).Msg("Failed to load .env file")
	}

	// Create context that's canceled on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received signal, initiating shutdown")
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "timings-import",
		Short:         "Import prayer timings spreadsheets into the CMS",
		Long:          `timings-import reads a month of prayer times from an .xlsx spreadsheet and submits them to a location in the CMS.`,
		Version:       version + " (" + commit + ", " + date + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: $CONFIG_FILE or "+defaultConfigPath+" when present)")

	rootCmd.AddCommand(newServeCmd(), newImportCmd(), newLocationsCmd())
	return rootCmd
}

// loadConfig resolves the config path, loads it and applies the log level
func loadConfig() (*config.Config, error) {
	logger := logging.GetLogger("main")

	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		// Log error before returning, as the caller won't have config context
		logger.Error().Err(err).Str("config_path", path).Msg("Failed to load configuration")
		return nil, err
	}

	// Set log level from configuration
	level := logging.SetLogLevel(cfg.Service.LogLevel)
	logger.Debug().Str("log_level", level.String()).Str("config_path", path).Msg("Configuration loaded")
	return cfg, nil
}
