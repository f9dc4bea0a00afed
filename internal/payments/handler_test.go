package payments

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/shopflow/internal/gateway"
	"github.com/joao-fontenele/shopflow/internal/orders"
)

// newCallbackHandler wires a handler whose service has no database behind it.
// Requests that are rejected before payment processing never touch the
// service; anything that slips past verification panics on the nil DB and
// fails the test loudly.
func newCallbackHandler() (*Handler, *gateway.Client) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.NewClient("pub_test", "priv_test", "USD", "", "", &http.Client{}, time.Second)
	service := NewService(orders.NewOrderRepository(nil), gw, nil, logger)
	return NewHandler(service, gw, logger), gw
}

func postCallback(t *testing.T, handler *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payments/callback", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.HandleCallback(rec, req)
	return rec
}

func TestHandleCallbackRejectsBadRequests(t *testing.T) {
	handler, gw := newCallbackHandler()

	t.Run("invalid body", func(t *testing.T) {
		rec := postCallback(t, handler, "{not json")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := postCallback(t, handler, `{"data":"","signature":""}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("tampered signature", func(t *testing.T) {
		raw, _ := json.Marshal(gateway.CallbackPayload{
			Status:        "Paid",
			OrderID:       "order-1",
			Amount:        "130.00",
			Currency:      "USD",
			TransactionID: 42,
		})
		data := base64.StdEncoding.EncodeToString(raw)
		sig := gw.Sign(data)

		// Flip the payload after signing; the stale signature must be caught
		// before the order is ever looked up.
		raw, _ = json.Marshal(gateway.CallbackPayload{
			Status:        "Paid",
			OrderID:       "order-1",
			Amount:        "999999.00",
			Currency:      "USD",
			TransactionID: 42,
		})
		tampered := base64.StdEncoding.EncodeToString(raw)

		body, _ := json.Marshal(map[string]string{"data": tampered, "signature": sig})
		rec := postCallback(t, handler, string(body))
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 for tampered payload, got %d", rec.Code)
		}
	})

	t.Run("signed but malformed payload", func(t *testing.T) {
		data := base64.StdEncoding.EncodeToString([]byte("not json"))
		body, _ := json.Marshal(map[string]string{"data": data, "signature": gw.Sign(data)})
		rec := postCallback(t, handler, string(body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for malformed payload, got %d", rec.Code)
		}
	})
}

func TestStatusFromGateway(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Paid", "paid"},
		{"TestPaid", "test_paid"},
		{"Failed", "failed"},
		// Only the documented statuses are recognized; near-misses must not
		// move the payment state.
		{"paid", ""},
		{"success", ""},
		{"sandbox", ""},
		{"failure", ""},
		{"error", ""},
		{"processing", ""},
		{"", ""},
	}

	for _, tc := range cases {
		if got := string(statusFromGateway(tc.in)); got != tc.want {
			t.Errorf("statusFromGateway(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
