package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/address"
	"github.com/joao-fontenele/storefront/internal/audit"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/discount"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/subscription"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront-api", serviceVersion, otlpEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront-api", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Error("failed to create instruments", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var cache *catalog.ProductCache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer func() { _ = client.Close() }()
		cache = catalog.NewProductCache(client, 5*time.Minute)
		logger.Info("product cache enabled", "addr", redisAddr)
	}

	var producer *messaging.Producer
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		producer = messaging.NewProducer(strings.Split(kafkaBrokers, ","))
		defer func() { _ = producer.Close() }()
		logger.Info("event publishing enabled", "brokers", kafkaBrokers)
	}

	productRepo := catalog.NewProductRepository(db)
	discountRepo := discount.NewRepository(db)
	cartRepo := cart.NewCartRepository(db)
	addressRepo := address.NewRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	subscriptionRepo := subscription.NewRepository(db)
	auditRecorder := audit.NewRecorder(db)

	cartService := cart.NewService(cartRepo, productRepo, discountRepo)
	checkoutService := checkout.NewService(db, addressRepo, discountRepo, producer, metrics, logger)
	subscriptionService := subscription.NewService(subscriptionRepo, productRepo, addressRepo, checkoutService, logger)

	catalogHandler := catalog.NewHandler(productRepo, cache, producer, metrics, logger)
	discountHandler := discount.NewHandler(discountRepo, logger)
	cartHandler := cart.NewHandler(cartService, metrics, logger)
	checkoutHandler := checkout.NewHandler(checkoutService, metrics, logger)
	ordersHandler := orders.NewHandler(orderRepo, logger)
	addressHandler := address.NewHandler(addressRepo, logger)
	subscriptionHandler := subscription.NewHandler(subscriptionService, logger)
	auditHandler := audit.NewHandler(auditRecorder, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(catalogHandler.HandleListProducts))
	mux.HandleFunc("POST /products", telemetry.WithHTTPRoute(catalogHandler.HandleCreateProduct))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGetProduct))
	mux.HandleFunc("PUT /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleUpdateProduct))
	mux.HandleFunc("POST /products/{id}/stock", telemetry.WithHTTPRoute(catalogHandler.HandleAdjustStock))
	mux.HandleFunc("GET /categories", telemetry.WithHTTPRoute(catalogHandler.HandleListCategories))
	mux.HandleFunc("POST /categories", telemetry.WithHTTPRoute(catalogHandler.HandleCreateCategory))

	mux.HandleFunc("GET /coupons", telemetry.WithHTTPRoute(discountHandler.HandleListCoupons))
	mux.HandleFunc("POST /coupons", telemetry.WithHTTPRoute(discountHandler.HandleCreateCoupon))
	mux.HandleFunc("DELETE /coupons/{id}", telemetry.WithHTTPRoute(discountHandler.HandleDeactivateCoupon))
	mux.HandleFunc("GET /bulk-discounts", telemetry.WithHTTPRoute(discountHandler.HandleListRules))
	mux.HandleFunc("POST /bulk-discounts", telemetry.WithHTTPRoute(discountHandler.HandleCreateRule))
	mux.HandleFunc("DELETE /bulk-discounts/{id}", telemetry.WithHTTPRoute(discountHandler.HandleDeactivateRule))

	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleGetCart))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(cartHandler.HandleAddItem))
	mux.HandleFunc("PATCH /cart/items/{itemId}", telemetry.WithHTTPRoute(cartHandler.HandleUpdateItem))
	mux.HandleFunc("DELETE /cart/items/{itemId}", telemetry.WithHTTPRoute(cartHandler.HandleRemoveItem))
	mux.HandleFunc("POST /cart/coupon", telemetry.WithHTTPRoute(cartHandler.HandleApplyCoupon))
	mux.HandleFunc("DELETE /cart/coupon", telemetry.WithHTTPRoute(cartHandler.HandleRemoveCoupon))

	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(checkoutHandler.HandlePlaceOrder))

	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(ordersHandler.HandleListOrders))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(ordersHandler.HandleGetOrder))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(ordersHandler.HandleUpdateStatus))
	mux.HandleFunc("PATCH /orders/{id}/payment", telemetry.WithHTTPRoute(ordersHandler.HandleUpdatePayment))

	mux.HandleFunc("GET /addresses", telemetry.WithHTTPRoute(addressHandler.HandleListAddresses))
	mux.HandleFunc("POST /addresses", telemetry.WithHTTPRoute(addressHandler.HandleCreateAddress))
	mux.HandleFunc("DELETE /addresses/{id}", telemetry.WithHTTPRoute(addressHandler.HandleDeleteAddress))

	mux.HandleFunc("GET /subscriptions", telemetry.WithHTTPRoute(subscriptionHandler.HandleListSubscriptions))
	mux.HandleFunc("POST /subscriptions", telemetry.WithHTTPRoute(subscriptionHandler.HandleCreateSubscription))
	mux.HandleFunc("POST /subscriptions/{id}/pause", telemetry.WithHTTPRoute(subscriptionHandler.HandlePauseSubscription))
	mux.HandleFunc("POST /subscriptions/{id}/resume", telemetry.WithHTTPRoute(subscriptionHandler.HandleResumeSubscription))
	mux.HandleFunc("POST /subscriptions/{id}/cancel", telemetry.WithHTTPRoute(subscriptionHandler.HandleCancelSubscription))
	mux.HandleFunc("POST /subscriptions/run-renewals", telemetry.WithHTTPRoute(subscriptionHandler.HandleRunRenewals))

	mux.HandleFunc("GET /audit", telemetry.WithHTTPRoute(auditHandler.HandleListAudit))

	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "storefront-api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting storefront api", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
