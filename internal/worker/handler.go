package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

// NotificationHandler turns order and payment events into customer emails.
// Events arrive at least once, so everything here must tolerate replays;
// sending the same receipt twice is accepted as harmless, and the payment
// service already suppresses duplicate payment.updated events.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) HandleOrderPlaced(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %w", err)
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "user_id", event.UserID)

	body := map[string]string{
		"to":      fmt.Sprintf("user-%d@example.com", event.UserID),
		"subject": "Order confirmation: " + event.OrderID,
		"body": fmt.Sprintf("We received your order %s for %s (%d items).",
			event.OrderID, event.Total.StringFixed(2), len(event.Items)),
	}

	if err := h.sendEmail(ctx, body); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	h.logger.Info("confirmation email sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) HandlePaymentUpdated(ctx context.Context, payload []byte) error {
	var event domain.PaymentUpdatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment updated event: %w", err)
	}

	h.logger.Info("processing payment updated event",
		"order_id", event.OrderID, "status", event.Status, "transaction_id", event.TransactionID)

	var subject, text string
	switch event.Status {
	case domain.PaymentStatusPaid, domain.PaymentStatusTestPaid:
		subject = "Payment received: " + event.OrderID
		text = fmt.Sprintf("Payment for order %s was received (transaction %d).", event.OrderID, event.TransactionID)
	case domain.PaymentStatusFailed:
		subject = "Payment failed: " + event.OrderID
		text = fmt.Sprintf("Payment for order %s failed. Please try again.", event.OrderID)
	case domain.PaymentStatusRefunded:
		subject = "Payment refunded: " + event.OrderID
		text = fmt.Sprintf("Payment for order %s was refunded.", event.OrderID)
	default:
		h.logger.Info("no notification for payment status", "order_id", event.OrderID, "status", event.Status)
		return nil
	}

	body := map[string]string{
		"to":      "orders@example.com",
		"subject": subject,
		"body":    text,
	}

	if err := h.sendEmail(ctx, body); err != nil {
		return fmt.Errorf("send payment email: %w", err)
	}

	h.logger.Info("payment email sent", "order_id", event.OrderID, "status", event.Status)
	return nil
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
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
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
