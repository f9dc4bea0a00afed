package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

// ReserveStock locks the product row, checks availability and decrements the
// stock, returning the current unit price. It runs inside the caller's
// placement transaction so a failed reservation rolls back the whole order.
func ReserveStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) (decimal.Decimal, error) {
	var price decimal.Decimal
	var stock int

	err := tx.QueryRowContext(ctx, `
		SELECT price, stock_quantity
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&price, &stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Decimal{}, domain.ErrProductNotFound
		}
		return decimal.Decimal{}, fmt.Errorf("lock product %d: %w", productID, err)
	}

	if stock < quantity {
		return decimal.Decimal{}, domain.ErrInsufficientStock
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("reserve stock for product %d: %w", productID, err)
	}

	return price, nil
}

// ReleaseStock returns previously reserved quantity to the shelf. Used when an
// order is cancelled.
func ReleaseStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("release stock for product %d: %w", productID, err)
	}
	return nil
}
