// Package store persists the order status view in Redis.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/orderflow/services/orderviews-service/internal/projection"
)

// Store reads and folds order status views.
type Store interface {
	Get(ctx context.Context, orderID string) (projection.OrderStatus, bool, error)
	Apply(ctx context.Context, update projection.OrderStatus) error
}

const keyPrefix = "order:status:"

// maxTxRetries bounds the optimistic WATCH loop under contention.
const maxTxRetries = 5

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds the store. A zero ttl keeps views forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (s *Redis) Get(ctx context.Context, orderID string) (projection.OrderStatus, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+orderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return projection.OrderStatus{}, false, nil
	}
	if err != nil {
		return projection.OrderStatus{}, false, fmt.Errorf("reading status for %s: %w", orderID, err)
	}
	var view projection.OrderStatus
	if err := json.Unmarshal(raw, &view); err != nil {
		return projection.OrderStatus{}, false, fmt.Errorf("decoding status for %s: %w", orderID, err)
	}
	return view, true, nil
}

// Apply merges the update into the stored view under WATCH, retrying when a
// concurrent fold touches the same order.
func (s *Redis) Apply(ctx context.Context, update projection.OrderStatus) error {
	key := keyPrefix + update.OrderID

	fold := func(tx *redis.Tx) error {
		var existing projection.OrderStatus
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			if err := json.Unmarshal(raw, &existing); err != nil {
				return fmt.Errorf("decoding stored status for %s: %w", update.OrderID, err)
			}
		}
		body, err := json.Marshal(projection.Merge(existing, update))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, body, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fold, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("applying status update for %s: %w", update.OrderID, err)
		}
		return nil
	}
	return fmt.Errorf("applying status update for %s: contention retries exhausted", update.OrderID)
}

// ReadyCheck reports whether Redis answers pings.
func ReadyCheck(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
