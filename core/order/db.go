package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("order not found")

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders (order_id, reference, user_id, provider, provider_id, capture_id, status, total, created_at, updated_at)
	VALUES (:order_id, :reference, :user_id, :provider, :provider_id, :capture_id, :status, :total, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items (order_id, course_id, price, created_at)
	VALUES (:order_id, :course_id, :price, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}

	return nil
}

func Fetch(ctx context.Context, db *sqlx.DB, id string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := db.GetContext(ctx, &ord, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order[%s]: %w", id, err)
	}

	return ord, nil
}

func FetchByProviderID(ctx context.Context, db *sqlx.DB, providerID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE provider_id = $1`

	var ord Order
	if err := db.GetContext(ctx, &ord, q, providerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order bound to payment[%s]: %w", providerID, err)
	}

	return ord, nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, orderID string) ([]Item, error) {
	const q = `SELECT * FROM order_items WHERE order_id = $1`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting items of order[%s]: %w", orderID, err)
	}

	return items, nil
}

func ListByUser(ctx context.Context, db *sqlx.DB, userID string) ([]Order, error) {
	const q = `SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	orders := []Order{}
	if err := db.SelectContext(ctx, &orders, q, userID); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}

	return orders, nil
}

// UpdateStatus moves the order to the given status, guarding the move with
// the current status so concurrent updates cannot double-apply.
func UpdateStatus(ctx context.Context, db sqlx.ExtContext, id string, from, to Status, now time.Time) error {
	const q = `UPDATE orders SET status = $1, updated_at = $2 WHERE order_id = $3 AND status = $4`

	res, err := db.ExecContext(ctx, q, to, now, id, from)
	if err != nil {
		return fmt.Errorf("updating status of order[%s]: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking status update of order[%s]: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("order[%s] is no longer in status[%s]", id, from)
	}

	return nil
}

func SetCapture(ctx context.Context, db sqlx.ExtContext, id, captureID string, now time.Time) error {
	const q = `UPDATE orders SET capture_id = $1, updated_at = $2 WHERE order_id = $3`

	if _, err := db.ExecContext(ctx, q, captureID, now, id); err != nil {
		return fmt.Errorf("recording capture of order[%s]: %w", id, err)
	}

	return nil
}

// ExpireStale marks orders that never left the created status within the
// window as expired. Best effort, driven by the background sweeper.
func ExpireStale(ctx context.Context, db *sqlx.DB, olderThan time.Duration, now time.Time) (int64, error) {
	const q = `UPDATE orders SET status = $1, updated_at = $2 WHERE status = $3 AND created_at < $4`

	res, err := db.ExecContext(ctx, q, Expired, now, Created, now.Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("expiring stale orders: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting expired orders: %w", err)
	}

	return n, nil
}
