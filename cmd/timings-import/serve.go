package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/namaznow/timings-import/internal/config"
	"github.com/namaznow/timings-import/internal/form"
	"github.com/namaznow/timings-import/internal/handlers"
	"github.com/namaznow/timings-import/internal/logging"
	appSignals "github.com/namaznow/timings-import/internal/signals"
	"github.com/namaznow/timings-import/internal/strapi"
	"github.com/spf13/cobra"
)

const sessionSweepInterval = time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the import web form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logging.GetLogger("main")

	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", date).
		Msg("Starting Timings Import")

	client, err := strapi.NewClient(strapi.Config{
		BaseURL:   cfg.Strapi.BaseURL,
		AuthToken: cfg.Strapi.AuthToken,
		Timeout:   cfg.Strapi.RequestTimeout,
	})
	if err != nil {
		wrappedErr := fmt.Errorf("failed to initialize strapi client: %w", err)
		logger.Error().Err(wrappedErr).Msg("Strapi client initialization failed")
		return wrappedErr
	}

	registerAuditListeners()

	// Each browser session gets its own form controller
	sessions := handlers.NewSessionStore(cfg.Service.SessionTTL, func(n form.Notifier) *form.Controller {
		return form.New(form.Dependencies{
			Directory: client,
			Submitter: client,
			Notifier:  n,
		})
	})

	// Initialize static file handler
	staticHandler, err := handlers.NewStaticHandler()
	if err != nil {
		wrappedErr := fmt.Errorf("failed to initialize static handler: %w", err)
		logger.Error().Err(wrappedErr).Msg("Static handler initialization failed")
		return wrappedErr
	}

	// Initialize base handler first, as other handlers depend on it
	baseHandler, err := handlers.NewBaseHandler(sessions)
	if err != nil {
		wrappedErr := fmt.Errorf("failed to initialize base handler: %w", err)
		logger.Error().Err(wrappedErr).Msg("Base handler initialization failed")
		return wrappedErr
	}
	importHandler := handlers.NewImportHandler(baseHandler, cfg.Service.MaxUploadBytes())

	// Register routes
	mux := http.NewServeMux()
	staticHandler.RegisterRoutes(mux)
	importHandler.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sessions.Run(sweepCtx, sessionSweepInterval)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.App.Port).Str("strapi_base_url", cfg.Strapi.BaseURL).Msg("Starting web server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Context cancelled, initiating shutdown sequence")
	case err, ok := <-serveErr:
		if ok {
			logger.Error().Err(err).Msg("HTTP server error")
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	// Shutdown HTTP server
	logger.Info().Msg("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shut down gracefully")
	}

	// Closing the sessions cancels any location fetch still in flight
	stopSweep()
	<-sweepDone
	logger.Info().Int64("sessions_served", sessions.Created()).Msg("Shutdown complete")
	return runErr
}

// registerAuditListeners logs form events for auditing
func registerAuditListeners() {
	appSignals.OnLocationsLoaded(func(ctx context.Context, data appSignals.LocationsLoadedData) {
		signalLogger := logging.GetLogger("signal-locations-loaded")
		if data.Success {
			signalLogger.Debug().Int("count", data.Count).Msg("Locations loaded")
		} else {
			signalLogger.Warn().Msg("Location list could not be loaded")
		}
	}, "main-locations-loaded-handler")

	appSignals.OnTimingsSubmitted(func(ctx context.Context, data appSignals.TimingsSubmittedData) {
		signalLogger := logging.GetLogger("audit")
		event := signalLogger.Info()
		if !data.Success {
			event = signalLogger.Warn().Err(data.Err)
		}
		event.
			Int64("location_id", data.LocationID).
			Str("school_of_thought", data.SchoolOfThought.String()).
			Int("entries", data.Entries).
			Bool("success", data.Success).
			Msg("Timings submission")
	}, "main-timings-submitted-handler")
}
