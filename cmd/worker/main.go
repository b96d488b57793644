package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/audit"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/worker"
)

const serviceVersion = "0.1.0"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	notifierURL := os.Getenv("NOTIFIER_URL")
	if notifierURL == "" {
		logger.Error("NOTIFIER_URL environment variable is required")
		os.Exit(1)
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront-worker", serviceVersion, otlpEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	brokers := strings.Split(kafkaBrokers, ",")
	recorder := audit.NewRecorder(db)
	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	orderHandler := worker.NewOrderPlacedHandler(recorder, notifierURL, httpClient, logger)
	stockHandler := worker.NewStockAdjustedHandler(recorder, logger)

	consumers := []struct {
		topic  string
		handle func(context.Context, []byte) error
	}{
		{topic: domain.TopicOrderPlaced, handle: orderHandler.Handle},
		{topic: domain.TopicStockAdjusted, handle: stockHandler.Handle},
	}

	var wg sync.WaitGroup
	for _, c := range consumers {
		consumer := messaging.NewConsumer(brokers, c.topic, "storefront-worker")
		handle := c.handle
		topic := c.topic

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = consumer.Close() }()

			logger.Info("consuming", "topic", topic, "brokers", brokers)
			if err := consumer.Consume(ctx, handle); err != nil {
				if ctx.Err() == context.Canceled {
					logger.Info("consumer stopped", "topic", topic)
					return
				}
				logger.Error("consumer error", "error", err, "topic", topic)
				cancel()
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down")
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()
}
