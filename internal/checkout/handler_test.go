package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const testUserID = "11111111-1111-4a11-8111-111111111111"

func testHandler() *Handler {
	return NewHandler(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandler_HandlePlaceOrder(t *testing.T) {
	h := testHandler()

	t.Run("rejects missing identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"address_id":"x"}`))
		rec := httptest.NewRecorder()

		h.HandlePlaceOrder(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("rejects invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader("{"))
		req.Header.Set("X-User-ID", testUserID)
		req.Header.Set("X-User-Role", "consumer")
		rec := httptest.NewRecorder()

		h.HandlePlaceOrder(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_WriteCheckoutError(t *testing.T) {
	h := testHandler()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantErr    string
	}{
		{
			name:       "validation",
			err:        domain.Validationf("address_id must be a UUID"),
			wantStatus: http.StatusBadRequest,
			wantErr:    "address_id must be a UUID",
		},
		{
			name: "out of stock",
			err: &domain.OutOfStockError{
				ProductID: "p1", Title: "Widget", Requested: 3, Available: 1,
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty cart",
			err:        domain.ErrEmptyCart,
			wantStatus: http.StatusBadRequest,
			wantErr:    "cart is empty",
		},
		{
			name:       "missing address",
			err:        fmt.Errorf("address abc: %w", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unexpected error",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantErr:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
			rec := httptest.NewRecorder()

			h.writeCheckoutError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if tt.wantErr != "" && body["error"] != tt.wantErr {
				t.Errorf("expected error %q, got %q", tt.wantErr, body["error"])
			}
		})
	}
}
