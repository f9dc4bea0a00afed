package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderPlacedEvent struct {
	OrderID       string          `json:"order_id"`
	UserID        int64           `json:"user_id"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Items         []OrderItem     `json:"items"`
	Timestamp     time.Time       `json:"timestamp"`
}

// PaymentUpdatedEvent is published only when a gateway callback actually
// changes the stored payment status. Replayed callbacks therefore never
// produce a second event.
type PaymentUpdatedEvent struct {
	OrderID       string        `json:"order_id"`
	TransactionID int64         `json:"transaction_id"`
	Status        PaymentStatus `json:"status"`
	Timestamp     time.Time     `json:"timestamp"`
}
