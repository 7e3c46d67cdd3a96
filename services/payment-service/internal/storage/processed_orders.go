// Package storage persists per-order payment state. A row exists for every
// order the service has seen, so redelivered OrderCreated events and
// compensating failures can be recognized without reprocessing.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/orderflow/libs/db"
)

const (
	StatusProcessing = "PROCESSING"
	StatusAuthorized = "AUTHORIZED"
	StatusFailed     = "FAILED"
)

type ProcessedOrder struct {
	OrderID  string
	Status   string
	Attempts int
}

type ProcessedOrders struct{}

func NewProcessedOrders() *ProcessedOrders {
	return &ProcessedOrders{}
}

// Get returns the order's payment record, locking it for the duration of
// the transaction.
func (r *ProcessedOrders) Get(ctx context.Context, tx pgx.Tx, orderID string) (ProcessedOrder, bool, error) {
	var po ProcessedOrder
	err := tx.QueryRow(ctx, `
		SELECT order_id, status, attempts
		FROM processed_orders
		WHERE order_id = $1
		FOR UPDATE`, orderID).Scan(&po.OrderID, &po.Status, &po.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProcessedOrder{}, false, nil
	}
	if err != nil {
		return ProcessedOrder{}, false, fmt.Errorf("fetching processed order %s: %w", orderID, err)
	}
	return po, true, nil
}

func (r *ProcessedOrders) Insert(ctx context.Context, tx pgx.Tx, po ProcessedOrder) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO processed_orders (order_id, status, attempts, updated_at)
		VALUES ($1, $2, $3, now())`,
		po.OrderID, po.Status, po.Attempts)
	if err != nil {
		return fmt.Errorf("inserting processed order %s: %w", po.OrderID, err)
	}
	return nil
}

func (r *ProcessedOrders) SetStatus(ctx context.Context, tx pgx.Tx, orderID, status string, attempts int) error {
	_, err := tx.Exec(ctx, `
		UPDATE processed_orders
		SET status = $2, attempts = $3, updated_at = now()
		WHERE order_id = $1`,
		orderID, status, attempts)
	if err != nil {
		return fmt.Errorf("updating processed order %s: %w", orderID, err)
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

func (r *Reader) GetByOrder(ctx context.Context, orderID string) (ProcessedOrder, bool, error) {
	var po ProcessedOrder
	err := r.pool.QueryRow(ctx, `
		SELECT order_id, status, attempts
		FROM processed_orders
		WHERE order_id = $1`, orderID).Scan(&po.OrderID, &po.Status, &po.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProcessedOrder{}, false, nil
	}
	if err != nil {
		return ProcessedOrder{}, false, fmt.Errorf("fetching payment for order %s: %w", orderID, err)
	}
	return po, true, nil
}

func (r *Reader) List(ctx context.Context, limit int) ([]ProcessedOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, status, attempts
		FROM processed_orders
		ORDER BY updated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var out []ProcessedOrder
	for rows.Next() {
		var po ProcessedOrder
		if err := rows.Scan(&po.OrderID, &po.Status, &po.Attempts); err != nil {
			return nil, fmt.Errorf("scanning payment row: %w", err)
		}
		out = append(out, po)
	}
	return out, rows.Err()
}
