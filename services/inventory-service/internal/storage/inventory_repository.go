package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/orderflow/libs/db"
)

type Stock struct {
	SKU       string    `json:"sku"`
	Available int       `json:"available_qty"`
	Reserved  int       `json:"reserved_qty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type InventoryRepository struct {
	pool *db.Pool
}

func NewInventoryRepository(pool *db.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

func (r *InventoryRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// FetchForUpdate locks every requested SKU row for the duration of the
// transaction. The all-or-nothing check and the decrements both happen under
// these locks, so concurrent orders cannot interleave partial reservations.
func (r *InventoryRepository) FetchForUpdate(ctx context.Context, tx pgx.Tx, skus []string) (map[string]int, error) {
	rows, err := tx.Query(ctx, `
		SELECT sku, available_qty
		FROM inventory
		WHERE sku = ANY($1)
		ORDER BY sku
		FOR UPDATE
	`, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	available := map[string]int{}
	for rows.Next() {
		var sku string
		var qty int
		if err := rows.Scan(&sku, &qty); err != nil {
			return nil, err
		}
		available[sku] = qty
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return available, nil
}

// Reserve moves qty from available to reserved for one SKU and records the
// hold so a later compensation can find it.
func (r *InventoryRepository) Reserve(ctx context.Context, tx pgx.Tx, orderID, sku string, qty int) error {
	_, err := tx.Exec(ctx, `
		UPDATE inventory
		SET available_qty = available_qty - $2,
		    reserved_qty = reserved_qty + $2,
		    updated_at = now()
		WHERE sku = $1
	`, sku, qty)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO reservations (order_id, sku, qty, state)
		VALUES ($1, $2, $3, 'held')
	`, orderID, sku, qty)
	return err
}

// Release returns every held reservation for the order to available stock.
// Orders with no held reservation (e.g. the rejection's own compensating
// event) release nothing.
func (r *InventoryRepository) Release(ctx context.Context, tx pgx.Tx, orderID string) (int, error) {
	rows, err := tx.Query(ctx, `
		SELECT sku, qty FROM reservations
		WHERE order_id = $1 AND state = 'held'
		FOR UPDATE
	`, orderID)
	if err != nil {
		return 0, err
	}
	type hold struct {
		sku string
		qty int
	}
	var holds []hold
	for rows.Next() {
		var h hold
		if err := rows.Scan(&h.sku, &h.qty); err != nil {
			rows.Close()
			return 0, err
		}
		holds = append(holds, h)
	}
	rows.Close()
	if rows.Err() != nil {
		return 0, rows.Err()
	}

	for _, h := range holds {
		if _, err := tx.Exec(ctx, `
			UPDATE inventory
			SET available_qty = available_qty + $2,
			    reserved_qty = reserved_qty - $2,
			    updated_at = now()
			WHERE sku = $1
		`, h.sku, h.qty); err != nil {
			return 0, err
		}
	}
	_, err = tx.Exec(ctx, `
		UPDATE reservations SET state = 'released', updated_at = now()
		WHERE order_id = $1 AND state = 'held'
	`, orderID)
	if err != nil {
		return 0, err
	}
	return len(holds), nil
}

// Commit converts the order's held reservations into a permanent deduction.
func (r *InventoryRepository) Commit(ctx context.Context, tx pgx.Tx, orderID string) error {
	rows, err := tx.Query(ctx, `
		SELECT sku, qty FROM reservations
		WHERE order_id = $1 AND state = 'held'
		FOR UPDATE
	`, orderID)
	if err != nil {
		return err
	}
	type hold struct {
		sku string
		qty int
	}
	var holds []hold
	for rows.Next() {
		var h hold
		if err := rows.Scan(&h.sku, &h.qty); err != nil {
			rows.Close()
			return err
		}
		holds = append(holds, h)
	}
	rows.Close()
	if rows.Err() != nil {
		return rows.Err()
	}

	for _, h := range holds {
		if _, err := tx.Exec(ctx, `
			UPDATE inventory
			SET reserved_qty = reserved_qty - $2,
			    updated_at = now()
			WHERE sku = $1
		`, h.sku, h.qty); err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx, `
		UPDATE reservations SET state = 'committed', updated_at = now()
		WHERE order_id = $1 AND state = 'held'
	`, orderID)
	return err
}

func (r *InventoryRepository) Seed(ctx context.Context, sku string, qty int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inventory (sku, available_qty, reserved_qty)
		VALUES ($1, $2, 0)
		ON CONFLICT (sku)
		DO UPDATE SET available_qty = inventory.available_qty + EXCLUDED.available_qty,
		              updated_at = now()
	`, sku, qty)
	return err
}

func (r *InventoryRepository) Get(ctx context.Context, sku string) (Stock, error) {
	var s Stock
	err := r.pool.QueryRow(ctx, `
		SELECT sku, available_qty, reserved_qty, updated_at
		FROM inventory
		WHERE sku = $1
	`, sku).Scan(&s.SKU, &s.Available, &s.Reserved, &s.UpdatedAt)
	return s, err
}

func (r *InventoryRepository) List(ctx context.Context) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sku, available_qty, reserved_qty, updated_at
		FROM inventory
		ORDER BY sku
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []Stock
	for rows.Next() {
		var s Stock
		if err := rows.Scan(&s.SKU, &s.Available, &s.Reserved, &s.UpdatedAt); err != nil {
			return nil, err
		}
		stocks = append(stocks, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return stocks, nil
}
