package orders

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const (
	testConsumerID = "11111111-1111-4a11-8111-111111111111"
	testOwnerID    = "22222222-2222-4a22-8222-222222222222"
	testOrderID    = "7b0fb30d-6c2a-4f3b-9a3f-111111111111"
)

func testHandler() *Handler {
	return NewHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func asUser(req *http.Request, userID, role string) *http.Request {
	req.Header.Set("X-User-ID", userID)
	req.Header.Set("X-User-Role", role)
	return req
}

func TestHandler_HandleUpdateStatus(t *testing.T) {
	h := testHandler()

	t.Run("rejects non owner", func(t *testing.T) {
		req := asUser(httptest.NewRequest(http.MethodPatch, "/orders/"+testOrderID+"/status",
			strings.NewReader(`{"status":"confirmed"}`)), testConsumerID, "consumer")
		req.SetPathValue("id", testOrderID)
		rec := httptest.NewRecorder()

		h.HandleUpdateStatus(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		req := asUser(httptest.NewRequest(http.MethodPatch, "/orders/"+testOrderID+"/status",
			strings.NewReader(`{"status":"shipped"}`)), testOwnerID, "owner")
		req.SetPathValue("id", testOrderID)
		rec := httptest.NewRecorder()

		h.HandleUpdateStatus(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body["error"] != `unknown order status "shipped"` {
			t.Errorf("unexpected error message: %q", body["error"])
		}
	})

	t.Run("unparseable order id maps to not found", func(t *testing.T) {
		req := asUser(httptest.NewRequest(http.MethodPatch, "/orders/nope/status",
			strings.NewReader(`{"status":"confirmed"}`)), testOwnerID, "owner")
		req.SetPathValue("id", "nope")
		rec := httptest.NewRecorder()

		h.HandleUpdateStatus(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleUpdatePayment(t *testing.T) {
	h := testHandler()

	t.Run("rejects non owner", func(t *testing.T) {
		req := asUser(httptest.NewRequest(http.MethodPatch, "/orders/"+testOrderID+"/payment",
			strings.NewReader(`{"payment_status":"paid"}`)), testConsumerID, "distributor")
		req.SetPathValue("id", testOrderID)
		rec := httptest.NewRecorder()

		h.HandleUpdatePayment(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("rejects unknown payment status", func(t *testing.T) {
		req := asUser(httptest.NewRequest(http.MethodPatch, "/orders/"+testOrderID+"/payment",
			strings.NewReader(`{"payment_status":"settled"}`)), testOwnerID, "owner")
		req.SetPathValue("id", testOrderID)
		rec := httptest.NewRecorder()

		h.HandleUpdatePayment(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleListOrders_RequiresIdentity(t *testing.T) {
	h := testHandler()

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()

	h.HandleListOrders(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}
