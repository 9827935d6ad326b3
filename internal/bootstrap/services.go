package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/sessiond/config"
	"github.com/target/sessiond/internal/observability/statsd"
	"github.com/target/sessiond/internal/service"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 10 * time.Second

// ServiceOrchestrationConfig groups everything needed to run the enabled services.
type ServiceOrchestrationConfig struct {
	Config *config.AppConfig
	Server *http.Server
	// Listener overrides Server.Addr. Used by tests.
	Listener net.Listener
	Sessions *service.SessionService
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts all enabled services and blocks until
// SIGINT/SIGTERM or until one of them fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunServices(ctx, cfg)
}

// RunServices runs the enabled services until ctx is cancelled or one fails.
// The first failure cancels the others; a clean shutdown returns nil.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeHTTP] {
		if cfg.Server == nil {
			return errors.New("http service enabled without a server")
		}
		runHTTP(g, gctx, cfg, logger)
	}

	if enabled[config.ServiceModeReaper] {
		if cfg.Sessions == nil {
			return errors.New("reaper service enabled without a session service")
		}
		reaper, reaperErr := service.NewReaperService(service.ReaperServiceOptions{
			Sessions: cfg.Sessions,
			Interval: cfg.Config.Sessions.SweepInterval,
			Metrics:  cfg.Metrics,
			Logger:   logger,
		})
		if reaperErr != nil {
			return fmt.Errorf("reaper: %w", reaperErr)
		}
		g.Go(func() error { return reaper.Run(gctx) })
	}

	err = g.Wait()
	if err != nil {
		logger.Error("service error", "error", err)
		return err
	}
	logger.Info("all services stopped")
	return nil
}

func runHTTP(g *errgroup.Group, ctx context.Context, cfg *ServiceOrchestrationConfig, logger *slog.Logger) {
	server := cfg.Server

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		var err error
		if cfg.Listener != nil {
			err = server.Serve(cfg.Listener)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		timeout := cfg.Config.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		return ShutdownHTTPServer(server, timeout, logger)
	})
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
