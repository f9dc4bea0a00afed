package orders

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/addresses"
	"github.com/joao-fontenele/shopflow/internal/catalog"
	"github.com/joao-fontenele/shopflow/internal/database"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/gateway"
	"github.com/joao-fontenele/shopflow/internal/messaging"
)

// PaymentProvider is the slice of the payment service the order workflow
// needs: a checkout payload after placement, a refund inside the cancellation
// transaction, and the event that announces the refund once it commits.
type PaymentProvider interface {
	CreatePayment(ctx context.Context, orderID string, amount decimal.Decimal) (*gateway.PaymentPayload, error)
	RefundInTx(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	PublishPaymentUpdated(ctx context.Context, orderID string, transactionID int64, status domain.PaymentStatus)
}

type Service struct {
	repo     *OrderRepository
	payments PaymentProvider
	producer *messaging.Producer // order.placed; may be nil
	logger   *slog.Logger
}

func NewService(repo *OrderRepository, payments PaymentProvider, producer *messaging.Producer, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		payments: payments,
		producer: producer,
		logger:   logger,
	}
}

type PlaceOrderRequest struct {
	UserID         int64
	DeliveryMethod domain.DeliveryMethod
	PaymentMethod  domain.PaymentMethod
	AddressID      int64
	Discount       decimal.Decimal
	Items          []ItemRequest
}

type ItemRequest struct {
	ProductID int64
	Quantity  int
}

// OrderPlacement is what a successful checkout returns: the persisted order
// and, for card payments, the signed payload the client posts to the
// gateway's hosted checkout form.
type OrderPlacement struct {
	Order   *domain.Order           `json:"order"`
	Payment *gateway.PaymentPayload `json:"payment,omitempty"`
}

func (r PlaceOrderRequest) validate() error {
	if r.UserID <= 0 || r.AddressID <= 0 {
		return fmt.Errorf("%w: user_id and address_id are required", domain.ErrInvalidInput)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", domain.ErrInvalidInput)
	}
	for _, item := range r.Items {
		if item.ProductID <= 0 || item.Quantity < 1 {
			return fmt.Errorf("%w: product_id and quantity must be positive", domain.ErrInvalidInput)
		}
	}
	if r.Discount.IsNegative() {
		return fmt.Errorf("%w: discount cannot be negative", domain.ErrInvalidInput)
	}
	switch r.DeliveryMethod {
	case domain.DeliveryMethodPickup, domain.DeliveryMethodCourier, domain.DeliveryMethodPost:
	default:
		return fmt.Errorf("%w: unknown delivery method", domain.ErrInvalidInput)
	}
	switch r.PaymentMethod {
	case domain.PaymentMethodCash, domain.PaymentMethodCard:
	default:
		return fmt.Errorf("%w: unknown payment method", domain.ErrInvalidInput)
	}
	return nil
}

// PlaceOrder runs the whole checkout: price resolution, stock reservation,
// address snapshot and order persistence happen in one transaction, so a
// partial order is never observable. Unit prices come from the catalog, never
// from the client. For card payments a signed checkout payload is attached.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*OrderPlacement, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	order := &domain.Order{
		UserID:         &req.UserID,
		OrderedAt:      time.Now().UTC(),
		Status:         domain.OrderStatusCreated,
		DiscountAmount: req.Discount,
		DeliveryMethod: req.DeliveryMethod,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  domain.PaymentStatusNotPaid,
	}

	err := database.WithRetry(ctx, s.repo.DB(), database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", req.UserID).Scan(&exists); err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return domain.ErrUserNotFound
		}

		addr, err := addresses.GetForUser(ctx, tx, req.AddressID, req.UserID)
		if err != nil {
			return err
		}
		order.DeliveryAddress = addr.Snapshot()

		total := decimal.Zero
		order.Items = order.Items[:0]
		for _, item := range req.Items {
			unitPrice, err := catalog.ReserveStock(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			subtotal := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			total = total.Add(subtotal)
			order.Items = append(order.Items, domain.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: unitPrice,
				Subtotal:  subtotal,
			})
		}

		// Total is fixed here and never recomputed from product prices.
		order.TotalAmount = total.Sub(order.DiscountAmount)
		if order.TotalAmount.IsNegative() {
			return fmt.Errorf("%w: discount exceeds order total", domain.ErrInvalidInput)
		}

		return s.repo.CreateTx(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		"order_id", order.ID, "user_id", req.UserID, "total", order.TotalAmount.StringFixed(2),
		"payment_method", order.PaymentMethod)

	if s.producer != nil {
		event := domain.OrderPlacedEvent{
			OrderID:       order.ID,
			UserID:        req.UserID,
			Total:         order.TotalAmount,
			PaymentMethod: order.PaymentMethod,
			Items:         order.Items,
			Timestamp:     order.OrderedAt,
		}
		if err := s.producer.Publish(ctx, order.ID, event); err != nil {
			s.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	placement := &OrderPlacement{Order: order}
	if req.PaymentMethod == domain.PaymentMethodCard {
		payload, err := s.payments.CreatePayment(ctx, order.ID, order.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("create payment for order %s: %w", order.ID, err)
		}
		placement.Payment = payload
	}

	return placement, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// GetUserOrders returns the user's order history, most recent first.
func (s *Service) GetUserOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	exists, err := addresses.UserExists(ctx, s.repo.DB(), userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.ListByUser(ctx, userID)
}

// CancelOrder moves an order to cancelled if it has not been collected yet,
// releasing the reserved stock. A paid order is refunded first, inside the
// same transaction and under the same row lock, so a refund failure leaves
// the order exactly as it was.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var cancelled *domain.Order

	err := database.WithTransaction(ctx, s.repo.DB(), database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := s.repo.GetForUpdateTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !order.Status.CanTransitionTo(domain.OrderStatusCancelled) {
			return fmt.Errorf("%w: cannot cancel order in status %q", domain.ErrInvalidState, order.Status)
		}

		if order.PaymentStatus == domain.PaymentStatusPaid {
			if err := s.payments.RefundInTx(ctx, tx, order); err != nil {
				return err
			}
		}

		for _, item := range order.Items {
			if err := catalog.ReleaseStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := s.repo.UpdateStatusTx(ctx, tx, order.ID, domain.OrderStatusCancelled); err != nil {
			return err
		}

		order.Status = domain.OrderStatusCancelled
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cancelled.PaymentStatus == domain.PaymentStatusRefunded {
		s.payments.PublishPaymentUpdated(ctx, cancelled.ID, cancelled.TransactionID, domain.PaymentStatusRefunded)
	}

	s.logger.Info("order cancelled", "order_id", orderID, "payment_status", cancelled.PaymentStatus)
	return cancelled, nil
}

// AdvanceStatus moves an order along the fulfillment path. Cancellation has
// its own entry point because of the refund side effects.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	if next == domain.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: use cancellation, not a status update", domain.ErrInvalidInput)
	}
	switch next {
	case domain.OrderStatusApproved, domain.OrderStatusCollected, domain.OrderStatusDelivered:
	default:
		return nil, fmt.Errorf("%w: unknown order status", domain.ErrInvalidInput)
	}

	var updated *domain.Order
	err := database.WithTransaction(ctx, s.repo.DB(), database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := s.repo.GetForUpdateTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !order.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: cannot move order from %q to %q", domain.ErrInvalidState, order.Status, next)
		}

		if err := s.repo.UpdateStatusTx(ctx, tx, order.ID, next); err != nil {
			return err
		}

		order.Status = next
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status advanced", "order_id", orderID, "status", next)
	return updated, nil
}
