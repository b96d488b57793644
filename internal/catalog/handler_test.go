package catalog

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/storefront/internal/httpx"
)

const (
	testConsumerID = "11111111-1111-4a11-8111-111111111111"
	testOwnerID    = "22222222-2222-4a22-8222-222222222222"
)

func testHandler() *Handler {
	return NewHandler(nil, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func asUser(req *http.Request, userID, role string) *http.Request {
	req.Header.Set(httpx.HeaderUserID, userID)
	req.Header.Set(httpx.HeaderUserRole, role)
	return req
}

func TestHandler_HandleCreateProduct(t *testing.T) {
	t.Run("rejects non-owner", func(t *testing.T) {
		handler := testHandler()
		req := asUser(httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{}`)), testConsumerID, "consumer")
		rec := httptest.NewRecorder()

		handler.HandleCreateProduct(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("rejects missing identity", func(t *testing.T) {
		handler := testHandler()
		req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		handler.HandleCreateProduct(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("rejects invalid body", func(t *testing.T) {
		handler := testHandler()
		req := asUser(httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`not json`)), testOwnerID, "owner")
		rec := httptest.NewRecorder()

		handler.HandleCreateProduct(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("validates required fields", func(t *testing.T) {
		handler := testHandler()
		body := `{"title":"","sku":"SKU-1","consumer_price":100,"distributor_price":80}`
		req := asUser(httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body)), testOwnerID, "owner")
		rec := httptest.NewRecorder()

		handler.HandleCreateProduct(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "title is required" {
			t.Errorf("unexpected error message: %s", resp["error"])
		}
	})

	t.Run("rejects non-positive prices", func(t *testing.T) {
		handler := testHandler()
		body := `{"title":"Widget","sku":"SKU-1","consumer_price":0,"distributor_price":80}`
		req := asUser(httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body)), testOwnerID, "owner")
		rec := httptest.NewRecorder()

		handler.HandleCreateProduct(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleAdjustStock(t *testing.T) {
	t.Run("rejects non-owner", func(t *testing.T) {
		handler := testHandler()
		req := asUser(httptest.NewRequest(http.MethodPost, "/products/p1/stock", strings.NewReader(`{"delta":5}`)), testConsumerID, "distributor")
		rec := httptest.NewRecorder()

		handler.HandleAdjustStock(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("rejects zero delta", func(t *testing.T) {
		handler := testHandler()
		req := asUser(httptest.NewRequest(http.MethodPost, "/products/x/stock", strings.NewReader(`{"delta":0}`)), testOwnerID, "owner")
		req.SetPathValue("id", "7b0fb30d-6c2a-4f3b-9a3f-111111111111")
		rec := httptest.NewRecorder()

		handler.HandleAdjustStock(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("unparseable product id maps to not found", func(t *testing.T) {
		handler := testHandler()
		req := asUser(httptest.NewRequest(http.MethodPost, "/products/x/stock", strings.NewReader(`{"delta":5}`)), testOwnerID, "owner")
		req.SetPathValue("id", "not-a-uuid")
		rec := httptest.NewRecorder()

		handler.HandleAdjustStock(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleGetProduct(t *testing.T) {
	t.Run("missing product id maps to not found", func(t *testing.T) {
		handler := testHandler()
		req := asUser(httptest.NewRequest(http.MethodGet, "/products/", nil), testConsumerID, "consumer")
		rec := httptest.NewRecorder()

		handler.HandleGetProduct(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}
