package notify

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testHandler() *Handler {
	return NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandler_HandleSend(t *testing.T) {
	h := testHandler()

	t.Run("accepts a notification", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/send",
			strings.NewReader(`{"to":"user-1","subject":"Order placed","body":"hi"}`))
		rec := httptest.NewRecorder()

		h.HandleSend(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body["status"] != "sent" {
			t.Errorf("expected status sent, got %q", body["status"])
		}
	})

	t.Run("rejects missing recipient", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(`{"subject":"x"}`))
		rec := httptest.NewRecorder()

		h.HandleSend(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("rejects invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader("{"))
		rec := httptest.NewRecorder()

		h.HandleSend(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}
