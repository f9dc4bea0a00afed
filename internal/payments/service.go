package payments

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/database"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/gateway"
	"github.com/joao-fontenele/shopflow/internal/messaging"
	"github.com/joao-fontenele/shopflow/internal/orders"
)

// Service owns the payment side of an order: generating checkout payloads,
// applying gateway callbacks and requesting refunds. It is the only writer of
// the payment columns.
type Service struct {
	repo     *orders.OrderRepository
	gateway  *gateway.Client
	producer *messaging.Producer // payment.updated; may be nil
	logger   *slog.Logger
}

func NewService(repo *orders.OrderRepository, gw *gateway.Client, producer *messaging.Producer, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		gateway:  gw,
		producer: producer,
		logger:   logger,
	}
}

// CreatePayment builds a signed checkout payload for the order and stamps
// payment_created. One payment intent per call; callers must cancel a prior
// intent before requesting another for the same order.
func (s *Service) CreatePayment(ctx context.Context, orderID string, amount decimal.Decimal) (*gateway.PaymentPayload, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Order %s", order.ID)
	payload, err := s.gateway.BuildPaymentRequest(amount, description, order.ID)
	if err != nil {
		return nil, fmt.Errorf("build payment request: %w", err)
	}

	if err := s.repo.MarkPaymentCreated(ctx, order.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	s.logger.Info("payment intent created", "order_id", order.ID, "amount", amount.StringFixed(2))
	return payload, nil
}

// statusFromGateway maps the gateway's status string to our enum. Only the
// three statuses the gateway documents are recognized; anything else maps to
// empty, which leaves the stored status untouched.
func statusFromGateway(status string) domain.PaymentStatus {
	switch status {
	case "Paid":
		return domain.PaymentStatusPaid
	case "TestPaid":
		return domain.PaymentStatusTestPaid
	case "Failed":
		return domain.PaymentStatusFailed
	default:
		return ""
	}
}

// UpdatePaymentStatus applies a verified gateway callback. It is idempotent
// under at-least-once delivery: the write sets absolute values keyed by order
// id, and the payment.updated event is published only when the stored status
// actually changed.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID string, transactionID int64, status, failureReason string) error {
	var changed bool
	var applied domain.PaymentStatus

	err := database.WithRetry(ctx, s.repo.DB(), database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := s.repo.GetForUpdateTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		previous := order.PaymentStatus
		if mapped := statusFromGateway(status); mapped != "" {
			order.PaymentStatus = mapped
		}
		order.TransactionID = transactionID
		now := time.Now().UTC()
		order.PaymentProcessed = &now
		if order.PaymentStatus == domain.PaymentStatusFailed && failureReason != "" {
			order.PaymentFailure = &failureReason
		}

		if err := s.repo.UpdatePaymentTx(ctx, tx, order); err != nil {
			return err
		}

		changed = order.PaymentStatus != previous
		applied = order.PaymentStatus
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("payment status updated",
		"order_id", orderID, "transaction_id", transactionID, "status", applied, "changed", changed)

	if changed {
		s.PublishPaymentUpdated(ctx, orderID, transactionID, applied)
	}

	return nil
}

// PublishPaymentUpdated emits a payment.updated event. It runs outside any
// transaction: callback processing calls it when the stored status actually
// changed, and order cancellation calls it after a refund has committed.
func (s *Service) PublishPaymentUpdated(ctx context.Context, orderID string, transactionID int64, status domain.PaymentStatus) {
	if s.producer == nil {
		return
	}

	event := domain.PaymentUpdatedEvent{
		OrderID:       orderID,
		TransactionID: transactionID,
		Status:        status,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.producer.Publish(ctx, orderID, event); err != nil {
		s.logger.Error("failed to publish payment updated event", "error", err, "order_id", orderID)
	}
}

// RefundPayment reverses the payment for an order in its own transaction.
func (s *Service) RefundPayment(ctx context.Context, orderID string) error {
	return database.WithTransaction(ctx, s.repo.DB(), database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := s.repo.GetForUpdateTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		return s.RefundInTx(ctx, tx, order)
	})
}

// RefundInTx refunds an already-locked order as part of a larger transaction,
// typically cancellation. The row lock is held across the gateway call so a
// concurrent callback cannot flip the payment status under us. If the gateway
// call fails the transaction rolls back and nothing local changes.
func (s *Service) RefundInTx(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	if order.PaymentStatus != domain.PaymentStatusPaid {
		return fmt.Errorf("%w: cannot refund order in payment status %q", domain.ErrInvalidState, order.PaymentStatus)
	}
	if order.TransactionID == 0 {
		return fmt.Errorf("%w: no gateway transaction recorded for order %s", domain.ErrInvalidState, order.ID)
	}

	refundID, err := s.gateway.Refund(ctx, order.ID, order.TransactionID, order.TotalAmount)
	if err != nil {
		return err
	}

	order.PaymentStatus = domain.PaymentStatusRefunded
	order.RefundID = refundID
	if err := s.repo.UpdatePaymentTx(ctx, tx, order); err != nil {
		return err
	}

	s.logger.Info("payment refunded", "order_id", order.ID, "refund_id", refundID)
	return nil
}
