package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/utafrali/productsearch/internal/app"
	"github.com/utafrali/productsearch/internal/config"
	"github.com/utafrali/productsearch/internal/domain"
	"github.com/utafrali/productsearch/internal/event"
	"github.com/utafrali/productsearch/internal/seed"
	"github.com/utafrali/productsearch/internal/service"
	pkgkafka "github.com/utafrali/productsearch/pkg/kafka"
	"github.com/utafrali/productsearch/pkg/logger"
)

type options struct {
	force bool
	file  string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Load sample products into the search index",
		Long:         `Bulk-save the built-in sample catalog, or the products of --file, when the index is empty.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "JSON file with an array of products (default: built-in sample catalog)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "seed even when the index already holds products")

	cmd.AddCommand(newPublishCmd(opts))
	return cmd
}

func newPublishCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:          "publish",
		Short:        "Publish the products as product.created events to Kafka",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPublish(cmd.Context(), opts)
		},
	}
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.ServiceName+"-seed", cfg.LogLevel), nil
}

func loadProducts(opts *options) ([]domain.Product, error) {
	if opts.file == "" {
		return seed.SampleProducts(), nil
	}
	return seed.LoadFile(opts.file)
}

func runSeed(ctx context.Context, opts *options) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	products, err := loadProducts(opts)
	if err != nil {
		return err
	}

	eng, err := app.NewEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	svc := service.NewProductService(eng, log)

	res, err := seed.New(svc, log).Run(ctx, products, opts.force)
	if err != nil {
		log.Error("seeding failed", slog.String("error", err.Error()))
		return err
	}
	if res.Skipped {
		fmt.Fprintf(os.Stdout, "index already holds %d products; use --force to seed anyway\n", res.Existing)
		return nil
	}
	fmt.Fprintf(os.Stdout, "seeded %d products\n", len(res.Saved))
	return nil
}

func runPublish(ctx context.Context, opts *options) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	products, err := loadProducts(opts)
	if err != nil {
		return err
	}
	if err := seed.Validate(products); err != nil {
		return err
	}

	events := make([]*pkgkafka.Event, 0, len(products))
	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		evt, err := event.NewProductEvent(event.TopicProductCreated, cfg.ServiceName+"-seed", p)
		if err != nil {
			return fmt.Errorf("build event for %q: %w", p.Name, err)
		}
		events = append(events, evt)
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warn("kafka producer close error", slog.String("error", err.Error()))
		}
	}()

	if err := producer.Publish(ctx, event.TopicProductCreated, events...); err != nil {
		return fmt.Errorf("publish product events: %w", err)
	}
	fmt.Fprintf(os.Stdout, "published %d product events to %s\n", len(events), event.TopicProductCreated)
	return nil
}
