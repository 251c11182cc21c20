package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"birdcatalog/internal/events"
	"birdcatalog/internal/metrics"
	"birdcatalog/internal/models"
	"birdcatalog/internal/photos"
	"birdcatalog/internal/server"
	"birdcatalog/internal/storage"
)

type loader func() (*models.Config, *zap.Logger, error)

func serveCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *models.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewStorage(ctx, cfg.DatabaseURL, cfg.StatusCacheTTL)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db.DB(), storage.MigrateUp, log); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	store, err := photos.NewStore(cfg.StoragePath, cfg.MaxUploadBytes())
	if err != nil {
		return fmt.Errorf("failed to init photo store: %w", err)
	}
	janitor := events.PhotoJanitor(store, log)

	var publisher events.Publisher
	if cfg.KafkaBroker != "" {
		// Kafka producer
		publisher = events.NewKafkaPublisher(kafka.NewWriter(kafka.WriterConfig{
			Brokers: []string{cfg.KafkaBroker},
			Topic:   cfg.KafkaTopic,
		}))

		// Start Kafka consumer in background
		consumer := kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{cfg.KafkaBroker},
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		})
		go func() {
			if err := events.Consume(ctx, consumer, janitor, log); err != nil {
				log.Error("event consumer stopped", zap.Error(err))
			}
		}()
		log.Info("catalog events go to kafka", zap.String("broker", cfg.KafkaBroker), zap.String("topic", cfg.KafkaTopic))
	} else {
		publisher = events.NewInlinePublisher(janitor)
	}
	defer publisher.Close()

	m, err := metrics.New()
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg, db, store, publisher, m, log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
