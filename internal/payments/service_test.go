package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/gateway"
	"github.com/joao-fontenele/shopflow/internal/orders"
)

func TestRefundInTxPreconditions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// No gateway server: both cases must fail before any refund call leaves
	// the process.
	gw := gateway.NewClient("pub_test", "priv_test", "USD", "", "http://127.0.0.1:0",
		&http.Client{}, time.Second)
	service := NewService(orders.NewOrderRepository(nil), gw, nil, logger)

	t.Run("unpaid order", func(t *testing.T) {
		order := &domain.Order{
			ID:            "order-1",
			PaymentStatus: domain.PaymentStatusNotPaid,
			TransactionID: 555,
			TotalAmount:   decimal.NewFromInt(130),
		}
		err := service.RefundInTx(context.Background(), nil, order)
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("paid without a gateway transaction", func(t *testing.T) {
		order := &domain.Order{
			ID:            "order-2",
			PaymentStatus: domain.PaymentStatusPaid,
			TransactionID: 0,
			TotalAmount:   decimal.NewFromInt(130),
		}
		err := service.RefundInTx(context.Background(), nil, order)
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState for a missing transaction id, got %v", err)
		}
	})
}
