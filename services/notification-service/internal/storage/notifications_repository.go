package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/orderflow/libs/db"
)

type Notification struct {
	OrderID   string
	Channel   string
	Recipient string
	Subject   string
	Status    string
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert records the sent notification in the consumer's transaction, so
// the audit row and the processed-event marker commit together.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, n Notification) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO notifications (order_id, channel, recipient, subject, status, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		n.OrderID, n.Channel, n.Recipient, n.Subject, n.Status)
	if err != nil {
		return fmt.Errorf("inserting notification for order %s: %w", n.OrderID, err)
	}
	return nil
}

// Reader serves the read-only HTTP surface outside any transaction.
type Reader struct {
	pool *db.Pool
}

func NewReader(pool *db.Pool) *Reader {
	return &Reader{pool: pool}
}

func (r *Reader) ListByOrder(ctx context.Context, orderID string) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, channel, recipient, subject, status
		FROM notifications
		WHERE order_id = $1
		ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.OrderID, &n.Channel, &n.Recipient, &n.Subject, &n.Status); err != nil {
			return nil, fmt.Errorf("scanning notification row: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountByStatus summarizes delivery outcomes across all notifications.
func (r *Reader) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*)
		FROM notifications
		GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("summarizing notifications: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
