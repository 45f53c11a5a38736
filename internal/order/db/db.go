package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"seller-portal/internal/models"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrVersionConflict = errors.New("order was modified concurrently")
)

// MaxTxAttempts bounds how often UpdateInTx reruns its closure after losing
// a version race.
const MaxTxAttempts = 3

type DB struct {
	Bun *bun.DB
}

// MutateFunc receives the current order and changes it in place. It returns
// true when the order must be written back.
type MutateFunc func(o *models.Order) (bool, error)

// ---------------- ORDERS ----------------

// GetOrderByID → fetch one order by its ID
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &order, nil
}

// CreateOrder → insert a new order; an existing id is left untouched.
// Reports whether a row was inserted.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(order).
		On("CONFLICT (order_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert order %s: %w", order.OrderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListOrdersByMerchant → newest first
func (d *DB) ListOrdersByMerchant(ctx context.Context, merchantID string, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", merchantID, err)
	}
	return orders, nil
}

// ListOrdersByStatus → oldest first, for admin planning queues
func (d *DB) ListOrdersByStatus(ctx context.Context, statuses []models.WorkflowStatus, limit int) ([]models.Order, error) {
	var orders []models.Order
	q := d.Bun.NewSelect().
		Model(&orders).
		Order("created_at ASC").
		Limit(limit)
	if len(statuses) > 0 {
		q = q.Where("workflow_status IN (?)", bun.In(statuses))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	return orders, nil
}

// UpdateInTx loads the order inside a transaction, hands it to fn and
// writes it back if fn asks for it. The write is conditional on the version
// that was read; on a lost race the whole closure is run again against
// fresh data. An error from fn rolls back, except that fn may both request
// a write and fail, in which case the write is committed and the error is
// returned.
func (d *DB) UpdateInTx(ctx context.Context, id string, fn MutateFunc) (*models.Order, error) {
	var lastErr error
	for attempt := 0; attempt < MaxTxAttempts; attempt++ {
		order, err := d.updateOnce(ctx, id, fn)
		if !errors.Is(err, ErrVersionConflict) {
			return order, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("update order %s after %d attempts: %w", id, MaxTxAttempts, lastErr)
}

func (d *DB) updateOnce(ctx context.Context, id string, fn MutateFunc) (*models.Order, error) {
	var (
		order   models.Order
		outcome error
	)

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&order).Where("order_id = ?", id).Limit(1)
		if d.Bun.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("load order %s: %w", id, err)
		}

		write, err := fn(&order)
		if !write {
			return err
		}
		outcome = err

		prev := order.Version
		order.Version = prev + 1
		res, err := tx.NewUpdate().
			Model(&order).
			ExcludeColumn("order_id").
			Where("order_id = ?", id).
			Where("version = ?", prev).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("write order %s: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrVersionConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, outcome
}
