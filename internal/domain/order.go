package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusCollected OrderStatus = "collected"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// CanTransitionTo reports whether the order status machine allows moving from s
// to next. The happy path is linear (created → approved → collected → delivered);
// cancellation is only reachable from created or approved, and delivered and
// cancelled are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusCreated:
		return next == OrderStatusApproved || next == OrderStatusCancelled
	case OrderStatusApproved:
		return next == OrderStatusCollected || next == OrderStatusCancelled
	case OrderStatusCollected:
		return next == OrderStatusDelivered
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentStatusNotPaid  PaymentStatus = "not_paid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusTestPaid PaymentStatus = "test_paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type DeliveryMethod string

const (
	DeliveryMethodPickup  DeliveryMethod = "pickup"
	DeliveryMethodCourier DeliveryMethod = "courier"
	DeliveryMethodPost    DeliveryMethod = "post"
)

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

// AddressSnapshot is the delivery address copied onto the order at placement
// time. Later edits to the user's saved address never change order history.
type AddressSnapshot struct {
	City      string `json:"city"`
	Street    string `json:"street"`
	Building  string `json:"building"`
	Apartment string `json:"apartment,omitempty"`
	PostCode  string `json:"post_code,omitempty"`
}

type Order struct {
	ID               string          `json:"id"`
	UserID           *int64          `json:"user_id,omitempty"`
	OrderedAt        time.Time       `json:"ordered_at"`
	Status           OrderStatus     `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	DeliveryMethod   DeliveryMethod  `json:"delivery_method"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	DeliveryAddress  AddressSnapshot `json:"delivery_address"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	TransactionID    int64           `json:"transaction_id"`
	RefundID         int64           `json:"refund_id,omitempty"`
	PaymentCreated   *time.Time      `json:"payment_created,omitempty"`
	PaymentProcessed *time.Time      `json:"payment_processed,omitempty"`
	PaymentFailure   *string         `json:"payment_failure,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Items            []OrderItem     `json:"items"`
}

type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
}

type Address struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	City      string `json:"city"`
	Street    string `json:"street"`
	Building  string `json:"building"`
	Apartment string `json:"apartment,omitempty"`
	PostCode  string `json:"post_code,omitempty"`
}

func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		City:      a.City,
		Street:    a.Street,
		Building:  a.Building,
		Apartment: a.Apartment,
		PostCode:  a.PostCode,
	}
}
