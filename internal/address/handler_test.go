package address

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testUserID = "11111111-1111-4a11-8111-111111111111"

func testHandler() *Handler {
	return NewHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandler_HandleCreateAddress(t *testing.T) {
	h := testHandler()

	t.Run("rejects missing identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/addresses", strings.NewReader(`{"line1":"1 Main St","city":"Springfield","postal_code":"12345"}`))
		rec := httptest.NewRecorder()

		h.HandleCreateAddress(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing line1",
			body:    `{"city":"Springfield","postal_code":"12345"}`,
			wantErr: "line1 is required",
		},
		{
			name:    "missing city",
			body:    `{"line1":"1 Main St","postal_code":"12345"}`,
			wantErr: "city is required",
		},
		{
			name:    "missing postal code",
			body:    `{"line1":"1 Main St","city":"Springfield"}`,
			wantErr: "postal_code is required",
		},
		{
			name:    "blank line1",
			body:    `{"line1":"   ","city":"Springfield","postal_code":"12345"}`,
			wantErr: "line1 is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/addresses", strings.NewReader(tt.body))
			req.Header.Set("X-User-ID", testUserID)
			req.Header.Set("X-User-Role", "consumer")
			rec := httptest.NewRecorder()

			h.HandleCreateAddress(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}

			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["error"] != tt.wantErr {
				t.Errorf("expected error %q, got %q", tt.wantErr, body["error"])
			}
		})
	}
}

func TestHandler_HandleDeleteAddress(t *testing.T) {
	h := testHandler()

	t.Run("unparseable id maps to not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/addresses/nope", nil)
		req.Header.Set("X-User-ID", testUserID)
		req.Header.Set("X-User-Role", "consumer")
		req.SetPathValue("id", "nope")
		rec := httptest.NewRecorder()

		h.HandleDeleteAddress(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}
