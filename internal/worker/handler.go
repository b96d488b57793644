// Package worker processes committed events. It writes audit entries and
// pushes notifications; orders and stock are already settled by the time an
// event reaches it, so handlers never mutate state beyond the audit trail.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// AuditRecorder is satisfied by audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, actor, action, entity, entityID string, detail any) error
}

// OrderPlacedHandler audits each placed order and notifies the buyer through
// the notifier service. Delivery is at-least-once: a failed notification
// leaves the message uncommitted, and redelivery can duplicate audit rows.
type OrderPlacedHandler struct {
	recorder    AuditRecorder
	notifierURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewOrderPlacedHandler(recorder AuditRecorder, notifierURL string, client *http.Client, logger *slog.Logger) *OrderPlacedHandler {
	return &OrderPlacedHandler{
		recorder:    recorder,
		notifierURL: notifierURL,
		httpClient:  client,
		logger:      logger,
	}
}

func (h *OrderPlacedHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %w", err)
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "user_id", event.UserID)

	if err := h.recorder.Record(ctx, event.UserID, "order.placed", "order", event.OrderID, event); err != nil {
		return fmt.Errorf("record order audit entry: %w", err)
	}

	if err := h.notify(ctx, event); err != nil {
		return fmt.Errorf("send order notification: %w", err)
	}

	h.logger.Info("order placed event processed", "order_id", event.OrderID)
	return nil
}

func (h *OrderPlacedHandler) notify(ctx context.Context, event domain.OrderPlacedEvent) error {
	body := map[string]string{
		"to":      event.UserID,
		"subject": "Order placed: " + event.OrderID,
		"body": fmt.Sprintf("Order %s with %d item(s) was placed. Amount due: %d.",
			event.OrderID, len(event.Items), event.FinalAmount),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.notifierURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notifier returned status %d", resp.StatusCode)
	}

	return nil
}

// StockAdjustedHandler records manual stock corrections in the audit trail.
type StockAdjustedHandler struct {
	recorder AuditRecorder
	logger   *slog.Logger
}

func NewStockAdjustedHandler(recorder AuditRecorder, logger *slog.Logger) *StockAdjustedHandler {
	return &StockAdjustedHandler{recorder: recorder, logger: logger}
}

func (h *StockAdjustedHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.StockAdjustedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal stock adjusted event: %w", err)
	}

	if err := h.recorder.Record(ctx, event.Actor, "stock.adjusted", "product", event.ProductID, event); err != nil {
		return fmt.Errorf("record stock audit entry: %w", err)
	}

	h.logger.Info("stock adjustment audited",
		"product_id", event.ProductID,
		"delta", event.Delta,
		"new_stock", event.NewStock,
	)
	return nil
}
