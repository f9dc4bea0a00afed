package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

func newTestClient(apiURL string) *Client {
	return NewClient("pub_test", "priv_test", "USD",
		"https://checkout.example.com/pay", apiURL,
		&http.Client{}, 2*time.Second)
}

func TestBuildPaymentRequest(t *testing.T) {
	client := newTestClient("http://unused")

	payload, err := client.BuildPaymentRequest(decimal.NewFromInt(130), "Order abc", "abc")
	if err != nil {
		t.Fatalf("build payment request: %v", err)
	}

	if payload.Data == "" || payload.Signature == "" {
		t.Fatal("expected non-empty data and signature")
	}
	if payload.CheckoutURL != "https://checkout.example.com/pay" {
		t.Errorf("unexpected checkout url: %s", payload.CheckoutURL)
	}

	raw, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		t.Fatalf("data is not valid base64: %v", err)
	}

	var req paymentRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("data is not valid JSON: %v", err)
	}

	if req.Action != "pay" {
		t.Errorf("expected action 'pay', got %q", req.Action)
	}
	if req.PublicKey != "pub_test" {
		t.Errorf("expected public key 'pub_test', got %q", req.PublicKey)
	}
	if req.Version != protocolVersion {
		t.Errorf("expected version %d, got %d", protocolVersion, req.Version)
	}
	if req.OrderID != "abc" {
		t.Errorf("expected order id 'abc', got %q", req.OrderID)
	}
	if req.Amount != "130.00" {
		t.Errorf("expected amount '130.00', got %q", req.Amount)
	}
	if req.Currency != "USD" {
		t.Errorf("expected currency 'USD', got %q", req.Currency)
	}

	if payload.Signature != client.Sign(payload.Data) {
		t.Error("signature does not match Sign(data)")
	}
}

func TestAmountFormatting(t *testing.T) {
	client := newTestClient("http://unused")

	// The gateway rejects scientific notation, so amounts must always be
	// rendered as plain fixed-point strings.
	cases := []struct {
		amount string
		want   string
	}{
		{"199.99", "199.99"},
		{"130", "130.00"},
		{"0.5", "0.50"},
		{"1234567.5", "1234567.50"},
		{"0", "0.00"},
	}

	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.amount)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.amount, err)
		}

		payload, err := client.BuildPaymentRequest(amount, "d", "o")
		if err != nil {
			t.Fatalf("build payment request: %v", err)
		}

		raw, _ := base64.StdEncoding.DecodeString(payload.Data)
		var req paymentRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}

		if req.Amount != tc.want {
			t.Errorf("amount %s: expected %q, got %q", tc.amount, tc.want, req.Amount)
		}
	}
}

func TestVerifyCallback(t *testing.T) {
	client := newTestClient("http://unused")

	payload, err := client.BuildPaymentRequest(decimal.NewFromInt(42), "d", "o")
	if err != nil {
		t.Fatalf("build payment request: %v", err)
	}

	t.Run("round trip", func(t *testing.T) {
		if !client.VerifyCallback(payload.Data, payload.Signature) {
			t.Error("expected signature over untouched data to verify")
		}
	})

	t.Run("single byte tamper", func(t *testing.T) {
		tampered := []byte(payload.Data)
		if tampered[0] == 'A' {
			tampered[0] = 'B'
		} else {
			tampered[0] = 'A'
		}
		if client.VerifyCallback(string(tampered), payload.Signature) {
			t.Error("expected tampered data to fail verification")
		}
	})

	t.Run("wrong private key", func(t *testing.T) {
		other := NewClient("pub_test", "other_key", "USD", "", "", &http.Client{}, time.Second)
		if other.VerifyCallback(payload.Data, payload.Signature) {
			t.Error("expected signature from a different key to fail verification")
		}
	})
}

func TestDecodePayload(t *testing.T) {
	client := newTestClient("http://unused")

	t.Run("valid payload", func(t *testing.T) {
		raw, _ := json.Marshal(CallbackPayload{
			Status:        "Paid",
			OrderID:       "order-1",
			Amount:        "130.00",
			Currency:      "USD",
			TransactionID: 555,
		})
		data := base64.StdEncoding.EncodeToString(raw)

		payload, err := client.DecodePayload(data)
		if err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Status != "Paid" || payload.OrderID != "order-1" || payload.TransactionID != 555 {
			t.Errorf("unexpected payload: %+v", payload)
		}
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := client.DecodePayload("%%% not base64 %%%")
		if !errors.Is(err, domain.ErrMalformedPayload) {
			t.Errorf("expected ErrMalformedPayload, got %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		data := base64.StdEncoding.EncodeToString([]byte("not json"))
		_, err := client.DecodePayload(data)
		if !errors.Is(err, domain.ErrMalformedPayload) {
			t.Errorf("expected ErrMalformedPayload, got %v", err)
		}
	})
}

func TestRefund(t *testing.T) {
	t.Run("successful refund", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode refund body: %v", err)
			}

			// The gateway checks our signature the same way we check its
			// callbacks.
			verifier := newTestClient("")
			if !verifier.VerifyCallback(body["data"], body["signature"]) {
				t.Error("refund request carries an invalid signature")
			}

			raw, _ := base64.StdEncoding.DecodeString(body["data"])
			var req paymentRequest
			_ = json.Unmarshal(raw, &req)
			if req.Action != "refund" {
				t.Errorf("expected action 'refund', got %q", req.Action)
			}
			if req.OrderID != "order-9" {
				t.Errorf("expected order id 'order-9', got %q", req.OrderID)
			}
			if req.TransactionID != 555 {
				t.Errorf("expected transaction id 555 in refund payload, got %d", req.TransactionID)
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":"ok","refund_id":777}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		refundID, err := client.Refund(context.Background(), "order-9", 555, decimal.NewFromInt(130))
		if err != nil {
			t.Fatalf("refund: %v", err)
		}
		if refundID != 777 {
			t.Errorf("expected refund id 777, got %d", refundID)
		}
	})

	t.Run("gateway http error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Refund(context.Background(), "order-9", 555, decimal.NewFromInt(130))
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Errorf("expected ErrGatewayUnavailable, got %v", err)
		}
	})

	t.Run("gateway rejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":"error","err_description":"payment not found"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Refund(context.Background(), "order-9", 555, decimal.NewFromInt(130))
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Errorf("expected ErrGatewayUnavailable, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"result":"ok","refund_id":1}`))
		}))
		defer server.Close()

		client := NewClient("pub_test", "priv_test", "USD", "", server.URL,
			&http.Client{}, 50*time.Millisecond)
		_, err := client.Refund(context.Background(), "order-9", 555, decimal.NewFromInt(130))
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Errorf("expected ErrGatewayUnavailable on timeout, got %v", err)
		}
	})
}
