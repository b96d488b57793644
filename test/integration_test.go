//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/address"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/discount"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/subscription"
)

// storefront wires the service stack over one database the way cmd/api does,
// minus telemetry. Tests that need Kafka pass a producer; the rest pass nil.
type storefront struct {
	db        *sql.DB
	products  *catalog.ProductRepository
	discounts *discount.Repository
	addresses *address.Repository
	carts     *cart.Service
	checkout  *checkout.Service
	orders    *orders.OrderRepository
	subRepo   *subscription.Repository
	subs      *subscription.Service
}

func newStorefront(t *testing.T, connStr string, producer *messaging.Producer) *storefront {
	t.Helper()

	db := OpenDB(t, connStr)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	products := catalog.NewProductRepository(db)
	discounts := discount.NewRepository(db)
	addresses := address.NewRepository(db)
	checkoutService := checkout.NewService(db, addresses, discounts, producer, nil, logger)
	subRepo := subscription.NewRepository(db)

	return &storefront{
		db:        db,
		products:  products,
		discounts: discounts,
		addresses: addresses,
		carts:     cart.NewService(cart.NewCartRepository(db), products, discounts),
		checkout:  checkoutService,
		orders:    orders.NewOrderRepository(db),
		subRepo:   subRepo,
		subs:      subscription.NewService(subRepo, products, addresses, checkoutService, logger),
	}
}

func seedProduct(ctx context.Context, t *testing.T, sf *storefront, title, sku string, consumerPrice, distributorPrice int64, stock int) *domain.Product {
	t.Helper()

	p := &domain.Product{
		Title:            title,
		SKU:              sku,
		ConsumerPrice:    consumerPrice,
		DistributorPrice: distributorPrice,
		StockQuantity:    stock,
		Active:           true,
		OwnerID:          uuid.New().String(),
	}
	if err := sf.products.Create(ctx, p); err != nil {
		t.Fatalf("failed to seed product %s: %v", sku, err)
	}
	return p
}

func seedAddress(ctx context.Context, t *testing.T, sf *storefront, userID string) *domain.Address {
	t.Helper()

	a := &domain.Address{
		UserID:     userID,
		Label:      "home",
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
	}
	if err := sf.addresses.Create(ctx, a); err != nil {
		t.Fatalf("failed to seed address: %v", err)
	}
	return a
}

func asUser(req *http.Request, userID string, role domain.Role) *http.Request {
	req.Header.Set(httpx.HeaderUserID, userID)
	req.Header.Set(httpx.HeaderUserRole, string(role))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	sf := newStorefront(t, pg.ConnStr, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cartHandler := cart.NewHandler(sf.carts, nil, logger)
	checkoutHandler := checkout.NewHandler(sf.checkout, nil, logger)

	userID := uuid.New().String()
	product := seedProduct(ctx, t, sf, "Espresso Beans 1kg", "BEAN-001", 2500, 1900, 20)
	addr := seedAddress(ctx, t, sf, userID)

	coupon := &domain.Coupon{
		Code:         "WELCOME10",
		Kind:         domain.CouponFixed,
		Amount:       500,
		MinCartValue: 2000,
		Active:       true,
	}
	if err := sf.discounts.CreateCoupon(ctx, coupon); err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}

	addBody := fmt.Sprintf(`{"product_id": %q, "quantity": 2}`, product.ID)
	req := asUser(httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(addBody)), userID, domain.RoleConsumer)
	rec := httptest.NewRecorder()
	cartHandler.HandleAddItem(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	req = asUser(httptest.NewRequest(http.MethodPost, "/cart/coupon", strings.NewReader(`{"code": " WELCOME10 "}`)), userID, domain.RoleConsumer)
	rec = httptest.NewRecorder()
	cartHandler.HandleApplyCoupon(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var view domain.CartView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode cart view: %v", err)
	}
	if view.CouponCode != "welcome10" {
		t.Fatalf("expected coupon code normalized to 'welcome10', got %q", view.CouponCode)
	}
	if view.Subtotal != 5000 || view.Discount != 500 || view.Total != 4500 {
		t.Fatalf("unexpected cart totals: subtotal=%d discount=%d total=%d", view.Subtotal, view.Discount, view.Total)
	}

	checkoutBody := fmt.Sprintf(`{"address_id": %q}`, addr.ID)
	req = asUser(httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutBody)), userID, domain.RoleConsumer)
	rec = httptest.NewRecorder()
	checkoutHandler.HandlePlaceOrder(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var placed domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&placed); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if placed.Status != domain.OrderStatusPending {
		t.Fatalf("expected order status %s, got %s", domain.OrderStatusPending, placed.Status)
	}
	if placed.PaymentStatus != domain.PaymentPending {
		t.Fatalf("expected payment status %s, got %s", domain.PaymentPending, placed.PaymentStatus)
	}
	if placed.TotalAmount != 5000 || placed.DiscountAmount != 500 || placed.FinalAmount != 4500 {
		t.Fatalf("unexpected order amounts: total=%d discount=%d final=%d",
			placed.TotalAmount, placed.DiscountAmount, placed.FinalAmount)
	}
	if placed.CouponCode != "welcome10" {
		t.Fatalf("expected order to record coupon 'welcome10', got %q", placed.CouponCode)
	}

	stored, err := sf.orders.GetByID(ctx, placed.ID)
	if err != nil {
		t.Fatalf("failed to fetch order from DB: %v", err)
	}
	if stored == nil {
		t.Fatal("order not found in database")
	}
	if len(stored.Items) != 1 {
		t.Fatalf("expected 1 order item, got %d", len(stored.Items))
	}
	item := stored.Items[0]
	if item.Title != "Espresso Beans 1kg" || item.SKU != "BEAN-001" {
		t.Fatalf("expected item snapshot of title and sku, got %q / %q", item.Title, item.SKU)
	}
	if item.Quantity != 2 || item.UnitPrice != 2500 {
		t.Fatalf("unexpected item snapshot: quantity=%d unit_price=%d", item.Quantity, item.UnitPrice)
	}

	refreshed, err := sf.products.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to fetch product: %v", err)
	}
	if refreshed.StockQuantity != 18 {
		t.Fatalf("expected stock 18 after checkout, got %d", refreshed.StockQuantity)
	}

	emptied, err := sf.carts.Get(ctx, userID, domain.RoleConsumer)
	if err != nil {
		t.Fatalf("failed to fetch cart after checkout: %v", err)
	}
	if len(emptied.Items) != 0 {
		t.Fatalf("expected cart emptied after checkout, got %d items", len(emptied.Items))
	}
	if emptied.CouponCode != "" {
		t.Fatalf("expected coupon cleared after checkout, got %q", emptied.CouponCode)
	}
	if emptied.Subtotal != 0 || emptied.Total != 0 {
		t.Fatalf("expected zeroed totals after checkout, got subtotal=%d total=%d", emptied.Subtotal, emptied.Total)
	}
}

func TestCheckoutOutOfStockRollsBack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	sf := newStorefront(t, pg.ConnStr, nil)

	userID := uuid.New().String()
	beans := seedProduct(ctx, t, sf, "Beans", "BEAN-001", 1000, 800, 10)
	grinder := seedProduct(ctx, t, sf, "Grinder", "GRND-001", 9000, 7500, 1)
	addr := seedAddress(ctx, t, sf, userID)

	if _, err := sf.carts.AddItem(ctx, userID, domain.RoleConsumer, beans.ID, 2); err != nil {
		t.Fatalf("failed to add beans: %v", err)
	}
	if _, err := sf.carts.AddItem(ctx, userID, domain.RoleConsumer, grinder.ID, 1); err != nil {
		t.Fatalf("failed to add grinder: %v", err)
	}

	// The last grinder sells elsewhere between add-to-cart and checkout.
	if _, err := sf.products.AdjustStock(ctx, grinder.ID, -1); err != nil {
		t.Fatalf("failed to drain grinder stock: %v", err)
	}

	_, err := sf.checkout.Place(ctx, userID, addr.ID)
	var oos *domain.OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("expected out-of-stock error, got %v", err)
	}
	if oos.ProductID != grinder.ID {
		t.Fatalf("expected shortage on %s, got %s", grinder.ID, oos.ProductID)
	}
	if oos.Requested != 1 || oos.Available != 0 {
		t.Fatalf("unexpected shortage detail: requested=%d available=%d", oos.Requested, oos.Available)
	}

	refreshedBeans, err := sf.products.GetByID(ctx, beans.ID)
	if err != nil {
		t.Fatalf("failed to fetch beans: %v", err)
	}
	if refreshedBeans.StockQuantity != 10 {
		t.Fatalf("expected beans stock unchanged at 10, got %d", refreshedBeans.StockQuantity)
	}

	view, err := sf.carts.Get(ctx, userID, domain.RoleConsumer)
	if err != nil {
		t.Fatalf("failed to fetch cart: %v", err)
	}
	if len(view.Items) != 2 {
		t.Fatalf("expected cart intact with 2 items, got %d", len(view.Items))
	}

	userOrders, err := sf.orders.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(userOrders) != 0 {
		t.Fatalf("expected no orders after failed checkout, got %d", len(userOrders))
	}
}

func TestDistributorBulkPricing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	sf := newStorefront(t, pg.ConnStr, nil)

	product := seedProduct(ctx, t, sf, "Filter Pack", "FILT-001", 1000, 800, 100)

	rule := &domain.BulkDiscountRule{
		ProductID:       product.ID,
		MinQuantity:     10,
		DiscountPercent: decimal.NewFromInt(5),
		Active:          true,
	}
	if err := sf.discounts.CreateRule(ctx, rule); err != nil {
		t.Fatalf("failed to create bulk rule: %v", err)
	}

	consumerView, err := sf.carts.AddItem(ctx, uuid.New().String(), domain.RoleConsumer, product.ID, 10)
	if err != nil {
		t.Fatalf("consumer add failed: %v", err)
	}
	if consumerView.Items[0].UnitPrice != 1000 {
		t.Fatalf("expected consumer unit price 1000, got %d", consumerView.Items[0].UnitPrice)
	}
	if consumerView.Discount != 0 {
		t.Fatalf("expected no bulk discount for consumer, got %d", consumerView.Discount)
	}
	if consumerView.Total != 10000 {
		t.Fatalf("expected consumer total 10000, got %d", consumerView.Total)
	}

	distributorView, err := sf.carts.AddItem(ctx, uuid.New().String(), domain.RoleDistributor, product.ID, 10)
	if err != nil {
		t.Fatalf("distributor add failed: %v", err)
	}
	if distributorView.Items[0].UnitPrice != 800 {
		t.Fatalf("expected distributor unit price 800, got %d", distributorView.Items[0].UnitPrice)
	}
	if distributorView.Subtotal != 8000 {
		t.Fatalf("expected distributor subtotal 8000, got %d", distributorView.Subtotal)
	}
	if distributorView.Discount != 400 {
		t.Fatalf("expected 5%% bulk discount of 400, got %d", distributorView.Discount)
	}
	if distributorView.Total != 7600 {
		t.Fatalf("expected distributor total 7600, got %d", distributorView.Total)
	}
}

func TestCartPriceLockedAtAdd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	sf := newStorefront(t, pg.ConnStr, nil)

	userID := uuid.New().String()
	product := seedProduct(ctx, t, sf, "Kettle", "KETL-001", 3000, 2400, 10)
	addr := seedAddress(ctx, t, sf, userID)

	if _, err := sf.carts.AddItem(ctx, userID, domain.RoleConsumer, product.ID, 1); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}

	repriced := *product
	repriced.ConsumerPrice = 3500
	if _, err := sf.products.Update(ctx, &repriced); err != nil {
		t.Fatalf("failed to reprice product: %v", err)
	}

	// Merging more quantity keeps the price locked when the line was created.
	view, err := sf.carts.AddItem(ctx, userID, domain.RoleConsumer, product.ID, 1)
	if err != nil {
		t.Fatalf("failed to add more of the item: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected lines merged into 1, got %d", len(view.Items))
	}
	if view.Items[0].Quantity != 2 {
		t.Fatalf("expected merged quantity 2, got %d", view.Items[0].Quantity)
	}
	if view.Items[0].UnitPrice != 3000 {
		t.Fatalf("expected locked unit price 3000, got %d", view.Items[0].UnitPrice)
	}
	if view.Subtotal != 6000 {
		t.Fatalf("expected subtotal 6000 at the locked price, got %d", view.Subtotal)
	}

	order, err := sf.checkout.Place(ctx, userID, addr.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if order.FinalAmount != 6000 {
		t.Fatalf("expected order charged at locked price, got final=%d", order.FinalAmount)
	}
	if order.Items[0].UnitPrice != 3000 {
		t.Fatalf("expected order item at locked price 3000, got %d", order.Items[0].UnitPrice)
	}

	// A fresh cart picks up the new catalog price.
	fresh, err := sf.carts.AddItem(ctx, uuid.New().String(), domain.RoleConsumer, product.ID, 1)
	if err != nil {
		t.Fatalf("failed to add item to fresh cart: %v", err)
	}
	if fresh.Items[0].UnitPrice != 3500 {
		t.Fatalf("expected fresh cart at new price 3500, got %d", fresh.Items[0].UnitPrice)
	}
}

func TestSubscriptionRenewalRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	sf := newStorefront(t, pg.ConnStr, nil)

	userID := uuid.New().String()
	addr := seedAddress(ctx, t, sf, userID)
	beans := seedProduct(ctx, t, sf, "Beans", "BEAN-001", 1200, 1000, 5)
	scarce := seedProduct(ctx, t, sf, "Limited Roast", "ROAST-001", 2000, 1600, 1)

	healthy, err := sf.subs.Create(ctx, userID, domain.RoleConsumer, beans.ID, addr.ID, 2, 30)
	if err != nil {
		t.Fatalf("failed to create subscription: %v", err)
	}
	starved, err := sf.subs.Create(ctx, userID, domain.RoleConsumer, scarce.ID, addr.ID, 5, 30)
	if err != nil {
		t.Fatalf("failed to create second subscription: %v", err)
	}

	// Both subscriptions fall due.
	if _, err := sf.db.ExecContext(ctx, `UPDATE subscriptions SET next_renewal_at = NOW() - INTERVAL '1 hour'`); err != nil {
		t.Fatalf("failed to backdate renewals: %v", err)
	}

	result, err := sf.subs.RunRenewals(ctx)
	if err != nil {
		t.Fatalf("renewal run failed: %v", err)
	}
	if result.Renewed != 1 || result.Paused != 1 || result.Failed != 0 {
		t.Fatalf("unexpected renewal result: %+v", result)
	}

	userOrders, err := sf.orders.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(userOrders) != 1 {
		t.Fatalf("expected 1 renewal order, got %d", len(userOrders))
	}
	order := userOrders[0]
	if order.FinalAmount != 2400 {
		t.Fatalf("expected renewal charged 2 x 1200, got %d", order.FinalAmount)
	}
	if order.AddressID != addr.ID {
		t.Fatalf("expected order shipped to subscription address %s, got %s", addr.ID, order.AddressID)
	}

	refreshed, err := sf.products.GetByID(ctx, beans.ID)
	if err != nil {
		t.Fatalf("failed to fetch product: %v", err)
	}
	if refreshed.StockQuantity != 3 {
		t.Fatalf("expected stock 3 after renewal, got %d", refreshed.StockQuantity)
	}

	renewed, err := sf.subRepo.GetByIDForUser(ctx, healthy.ID, userID)
	if err != nil {
		t.Fatalf("failed to fetch subscription: %v", err)
	}
	if renewed.Status != domain.SubscriptionActive {
		t.Fatalf("expected renewed subscription to stay active, got %s", renewed.Status)
	}
	if !renewed.NextRenewalAt.After(time.Now().UTC().AddDate(0, 0, 29)) {
		t.Fatalf("expected next renewal pushed ~30 days out, got %s", renewed.NextRenewalAt)
	}

	pausedSub, err := sf.subRepo.GetByIDForUser(ctx, starved.ID, userID)
	if err != nil {
		t.Fatalf("failed to fetch second subscription: %v", err)
	}
	if pausedSub.Status != domain.SubscriptionPaused {
		t.Fatalf("expected out-of-stock subscription paused, got %s", pausedSub.Status)
	}

	// Nothing is due anymore, so a second run is a no-op.
	again, err := sf.subs.RunRenewals(ctx)
	if err != nil {
		t.Fatalf("second renewal run failed: %v", err)
	}
	if again.Renewed != 0 || again.Paused != 0 || again.Failed != 0 {
		t.Fatalf("expected no-op second run, got %+v", again)
	}
}

func TestOrderPlacedEventDelivery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()

	producer := messaging.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	sf := newStorefront(t, pg.ConnStr, producer)

	userID := uuid.New().String()
	product := seedProduct(ctx, t, sf, "Beans", "BEAN-001", 1500, 1200, 10)
	addr := seedAddress(ctx, t, sf, userID)

	if _, err := sf.carts.AddItem(ctx, userID, domain.RoleConsumer, product.ID, 3); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}
	placed, err := sf.checkout.Place(ctx, userID, addr.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	consumer := messaging.NewConsumer(brokers, domain.TopicOrderPlaced, "integration-test",
		messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	events := make(chan domain.OrderPlacedEvent, 1)
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = consumer.Consume(consumeCtx, func(_ context.Context, payload []byte) error {
			var event domain.OrderPlacedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return err
			}
			events <- event
			stop()
			return nil
		})
	}()

	select {
	case event := <-events:
		if event.OrderID != placed.ID {
			t.Fatalf("expected event for order %s, got %s", placed.ID, event.OrderID)
		}
		if event.UserID != userID {
			t.Fatalf("expected event user %s, got %s", userID, event.UserID)
		}
		if event.FinalAmount != 4500 {
			t.Fatalf("expected event final amount 4500, got %d", event.FinalAmount)
		}
		if len(event.Items) != 1 {
			t.Fatalf("expected 1 event item, got %d", len(event.Items))
		}
	case <-time.After(90 * time.Second):
		t.Fatal("timed out waiting for order.placed event")
	}
}
