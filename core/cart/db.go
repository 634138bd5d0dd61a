package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func FetchItems(ctx context.Context, db *sqlx.DB, userID string) ([]Item, error) {
	const q = `SELECT * FROM cart_items WHERE user_id = $1 ORDER BY created_at`

	items := []Item{}
	if err := db.SelectContext(ctx, &items, q, userID); err != nil {
		return nil, fmt.Errorf("selecting cart items: %w", err)
	}

	return items, nil
}

// CreateItem inserts the course into the user's cart. Adding a course that
// is already there is a no-op, keeping the original row.
func CreateItem(ctx context.Context, db sqlx.ExtContext, userID string, courseID int64, now time.Time) error {
	const q = `
	INSERT INTO cart_items (user_id, course_id, created_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id, course_id) DO NOTHING`

	if _, err := db.ExecContext(ctx, q, userID, courseID, now); err != nil {
		return fmt.Errorf("inserting cart item: %w", err)
	}

	return nil
}

func DeleteItem(ctx context.Context, db sqlx.ExtContext, userID string, courseID int64) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1 AND course_id = $2`

	if _, err := db.ExecContext(ctx, q, userID, courseID); err != nil {
		return fmt.Errorf("deleting cart item: %w", err)
	}

	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, userID string) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("flushing cart: %w", err)
	}

	return nil
}
