package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/orderflow/libs/db"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/model"
)

type OrderRepository struct {
	pool *db.Pool
}

func NewOrderRepository(pool *db.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *OrderRepository) Create(ctx context.Context, tx pgx.Tx, order model.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (order_id, user_id, total, items, status)
		VALUES ($1, $2, $3, $4, $5)
	`, order.OrderID, order.UserID, order.Total, items, order.Status)
	return err
}

func (r *OrderRepository) Get(ctx context.Context, orderID string) (model.Order, error) {
	var order model.Order
	var rawItems []byte
	err := r.pool.QueryRow(ctx, `
		SELECT order_id, user_id, total, items, status, created_at
		FROM orders
		WHERE order_id = $1
	`, orderID).Scan(&order.OrderID, &order.UserID, &order.Total, &rawItems, &order.Status, &order.CreatedAt)
	if err != nil {
		return model.Order{}, err
	}
	if len(rawItems) > 0 {
		if err := json.Unmarshal(rawItems, &order.Items); err != nil {
			return model.Order{}, err
		}
	}
	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, user_id, total, items, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var order model.Order
		var rawItems []byte
		if err := rows.Scan(&order.OrderID, &order.UserID, &order.Total, &rawItems, &order.Status, &order.CreatedAt); err != nil {
			return nil, err
		}
		if len(rawItems) > 0 {
			if err := json.Unmarshal(rawItems, &order.Items); err != nil {
				return nil, err
			}
		}
		orders = append(orders, order)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return orders, nil
}

// UpdateStatus locks the order row, flips the status, and reports the prior
// status so the caller can decide which terminal event to stage.
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, orderID string, status model.OrderStatus) (model.OrderStatus, error) {
	var previous model.OrderStatus
	err := tx.QueryRow(ctx, `
		SELECT status FROM orders WHERE order_id = $1 FOR UPDATE
	`, orderID).Scan(&previous)
	if err != nil {
		return "", err
	}
	_, err = tx.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE order_id = $1
	`, orderID, status)
	if err != nil {
		return "", err
	}
	return previous, nil
}
