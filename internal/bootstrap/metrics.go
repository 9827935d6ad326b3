package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/target/sessiond/config"
	"github.com/target/sessiond/internal/observability/statsd"
)

// NewMetricsClient dials StatsD when metrics are enabled. It returns a nil
// client otherwise; a nil *statsd.Client drops every metric.
func NewMetricsClient(ctx context.Context, cfg config.MetricsConfig, logger *slog.Logger) (*statsd.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.IsEnabled() {
		logger.InfoContext(ctx, "metrics disabled")
		return nil, nil
	}
	client, err := statsd.Dial(ctx, statsd.Config{
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("metrics client: %w", err)
	}
	logger.InfoContext(ctx, "metrics enabled", "statsd_address", cfg.StatsdAddress, "prefix", cfg.Prefix)
	return client, nil
}
