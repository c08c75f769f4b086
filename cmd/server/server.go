// Package server implements the safetrack server command, the long-running
// process hosting ingestion, geofencing and the realtime event stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/safetrack/safetrack-go/internal/api"
	"github.com/safetrack/safetrack-go/internal/conf"
	"github.com/safetrack/safetrack-go/internal/datastore"
	"github.com/safetrack/safetrack-go/internal/events"
	"github.com/safetrack/safetrack-go/internal/ingest"
	"github.com/safetrack/safetrack-go/internal/logging"
	"github.com/safetrack/safetrack-go/internal/notify"
	"github.com/safetrack/safetrack-go/internal/observability"
	"github.com/safetrack/safetrack-go/internal/realtime"
)

const shutdownTimeout = 10 * time.Second

// Command creates the server command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the SafeTrack server",
		Long:  "Start the HTTP server hosting tracker ingestion, geofence evaluation and realtime SSE streams.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
}

func run(settings *conf.Settings) error {
	logger := logging.ForService("server")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	ds := datastore.New(settings)
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	bus, err := events.Initialize(&events.Config{
		BufferSize: settings.Tracking.EventBus.BufferSize,
		Workers:    settings.Tracking.EventBus.Workers,
		Enabled:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}

	broker := realtime.NewBroker(
		realtime.WithClientBuffer(settings.Tracking.SSE.ClientBuffer),
		realtime.WithSendTimeout(time.Duration(settings.Tracking.SSE.SendTimeoutMs)*time.Millisecond),
		realtime.WithMetrics(metrics.Realtime),
	)
	if err := bus.RegisterConsumer(broker); err != nil {
		return fmt.Errorf("failed to register realtime broker: %w", err)
	}

	if settings.Notification.Enabled {
		notifier, err := notify.NewNotifier(settings.Notification.Urls)
		if err != nil {
			return fmt.Errorf("failed to initialize notifier: %w", err)
		}
		if err := bus.RegisterConsumer(notifier); err != nil {
			return fmt.Errorf("failed to register notifier: %w", err)
		}
	}

	pipeline := ingest.New(ds, bus,
		ingest.WithMaxAccuracy(settings.Tracking.MaxAccuracy),
		ingest.WithMetrics(metrics.Ingest),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	controller, err := api.New(e, ds, settings, pipeline, broker, api.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("failed to initialize API controller: %w", err)
	}
	defer controller.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logger.Info("starting HTTP server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	if err := bus.Shutdown(shutdownTimeout); err != nil {
		logger.Error("event bus shutdown failed", "error", err)
	}

	return nil
}
