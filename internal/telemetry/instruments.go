package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles the storefront's domain instruments. A nil *Metrics is a
// valid no-op so services can run without a meter provider in tests.
type Metrics struct {
	ordersPlaced     metric.Int64Counter
	orderValue       metric.Int64Histogram
	checkoutFailures metric.Int64Counter
	cartMutations    metric.Int64Counter
	stockAdjustments metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("storefront")

	ordersPlaced, err := meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders placed through checkout or subscription renewal."),
		metric.WithUnit("{order}"))
	if err != nil {
		return nil, err
	}

	orderValue, err := meter.Int64Histogram("storefront.orders.value",
		metric.WithDescription("Final order amount in minor currency units."),
		metric.WithUnit("{minor_unit}"))
	if err != nil {
		return nil, err
	}

	checkoutFailures, err := meter.Int64Counter("storefront.checkout.failures",
		metric.WithDescription("Checkouts rejected before an order was created."),
		metric.WithUnit("{checkout}"))
	if err != nil {
		return nil, err
	}

	cartMutations, err := meter.Int64Counter("storefront.cart.mutations",
		metric.WithDescription("Cart operations that triggered a total recomputation."),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, err
	}

	stockAdjustments, err := meter.Int64Counter("storefront.stock.adjustments",
		metric.WithDescription("Manual stock adjustments applied by owners."),
		metric.WithUnit("{adjustment}"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ordersPlaced:     ordersPlaced,
		orderValue:       orderValue,
		checkoutFailures: checkoutFailures,
		cartMutations:    cartMutations,
		stockAdjustments: stockAdjustments,
	}, nil
}

// OrderPlaced records one placed order and its final amount. The source is
// "checkout" or "subscription".
func (m *Metrics) OrderPlaced(ctx context.Context, source string, finalAmount int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("source", source))
	m.ordersPlaced.Add(ctx, 1, attrs)
	m.orderValue.Record(ctx, finalAmount, attrs)
}

func (m *Metrics) CheckoutFailed(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.checkoutFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) CartMutated(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.cartMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m *Metrics) StockAdjusted(ctx context.Context) {
	if m == nil {
		return
	}
	m.stockAdjustments.Add(ctx, 1)
}
