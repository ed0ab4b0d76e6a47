// Command server runs the product search REST API and, when Kafka is enabled,
// the product event consumer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/productsearch/internal/app"
	"github.com/utafrali/productsearch/internal/config"
	"github.com/utafrali/productsearch/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("productsearch exited", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting product search service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("search_engine", cfg.SearchEngine),
		slog.Bool("kafka_enabled", cfg.KafkaEnabled),
		slog.Bool("tracing_enabled", cfg.TracingEnabled),
	)

	a, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}
	if err := a.Run(ctx); err != nil {
		return err
	}

	log.Info("product search service stopped")
	return nil
}
