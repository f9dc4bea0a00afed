package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type emailCapture struct {
	mu     sync.Mutex
	emails []map[string]string
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, req)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"sent"}`)
}

func (e *emailCapture) getEmails() []map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]map[string]string, len(e.emails))
	copy(result, e.emails)
	return result
}

func newNotificationTestHandler(t *testing.T) (*NotificationHandler, *emailCapture) {
	t.Helper()

	capture := &emailCapture{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", capture.handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewNotificationHandler(server.URL, &http.Client{Timeout: 5 * time.Second}, logger)
	return handler, capture
}

func TestHandleOrderPlaced(t *testing.T) {
	handler, capture := newNotificationTestHandler(t)

	event := domain.OrderPlacedEvent{
		OrderID:       "order-1",
		UserID:        42,
		Total:         decimal.NewFromInt(130),
		PaymentMethod: domain.PaymentMethodCard,
		Items:         []domain.OrderItem{{ProductID: 1, Quantity: 2}},
		Timestamp:     time.Now().UTC(),
	}
	payload, _ := json.Marshal(event)

	if err := handler.HandleOrderPlaced(context.Background(), payload); err != nil {
		t.Fatalf("handle order placed: %v", err)
	}

	emails := capture.getEmails()
	if len(emails) != 1 {
		t.Fatalf("expected 1 email, got %d", len(emails))
	}
	if !strings.Contains(emails[0]["subject"], "order-1") {
		t.Errorf("expected subject to mention the order, got %q", emails[0]["subject"])
	}
	if !strings.Contains(emails[0]["body"], "130.00") {
		t.Errorf("expected body to mention the total, got %q", emails[0]["body"])
	}
}

func TestHandleOrderPlacedBadPayload(t *testing.T) {
	handler, capture := newNotificationTestHandler(t)

	if err := handler.HandleOrderPlaced(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("expected an error for an undecodable event")
	}
	if len(capture.getEmails()) != 0 {
		t.Fatal("expected no email for an undecodable event")
	}
}

func TestHandlePaymentUpdated(t *testing.T) {
	cases := []struct {
		name        string
		status      domain.PaymentStatus
		wantEmails  int
		wantSubject string
	}{
		{"paid", domain.PaymentStatusPaid, 1, "Payment received"},
		{"test paid", domain.PaymentStatusTestPaid, 1, "Payment received"},
		{"failed", domain.PaymentStatusFailed, 1, "Payment failed"},
		{"refunded", domain.PaymentStatusRefunded, 1, "Payment refunded"},
		{"not paid is silent", domain.PaymentStatusNotPaid, 0, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler, capture := newNotificationTestHandler(t)

			event := domain.PaymentUpdatedEvent{
				OrderID:       "order-2",
				TransactionID: 555,
				Status:        tc.status,
				Timestamp:     time.Now().UTC(),
			}
			payload, _ := json.Marshal(event)

			if err := handler.HandlePaymentUpdated(context.Background(), payload); err != nil {
				t.Fatalf("handle payment updated: %v", err)
			}

			emails := capture.getEmails()
			if len(emails) != tc.wantEmails {
				t.Fatalf("expected %d emails, got %d", tc.wantEmails, len(emails))
			}
			if tc.wantEmails > 0 && !strings.Contains(emails[0]["subject"], tc.wantSubject) {
				t.Errorf("expected subject to contain %q, got %q", tc.wantSubject, emails[0]["subject"])
			}
		})
	}
}

func TestHandlePaymentUpdatedEmailServiceDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewNotificationHandler(server.URL, &http.Client{Timeout: 5 * time.Second}, logger)

	event := domain.PaymentUpdatedEvent{OrderID: "order-3", Status: domain.PaymentStatusPaid}
	payload, _ := json.Marshal(event)

	// A failed send must surface so the consumer does not commit the offset.
	if err := handler.HandlePaymentUpdated(context.Background(), payload); err == nil {
		t.Fatal("expected an error when the email service is down")
	}
}
