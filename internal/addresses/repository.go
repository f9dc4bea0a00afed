package addresses

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

// GetForUser loads a delivery address owned by the given user. An address that
// exists but belongs to somebody else is reported as not found.
func GetForUser(ctx context.Context, tx *sql.Tx, addressID, userID int64) (*domain.Address, error) {
	addr := &domain.Address{}

	err := tx.QueryRowContext(ctx, `
		SELECT id, user_id, city, street, building, apartment, post_code
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`, addressID, userID).Scan(
		&addr.ID,
		&addr.UserID,
		&addr.City,
		&addr.Street,
		&addr.Building,
		&addr.Apartment,
		&addr.PostCode,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address %d: %w", addressID, err)
	}

	return addr, nil
}

// UserExists is used by the orders service before listing a user's history.
func UserExists(ctx context.Context, db *sql.DB, userID int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
		userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}
