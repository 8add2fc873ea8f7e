package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/orderflow/internal/order/domain"
)

const demoCustomer = "user1"

func demoOrders(now time.Time) []domain.Order {
	now = now.UTC()
	return []domain.Order{
		{
			ID:          "order-1-id",
			CustomerID:  demoCustomer,
			Date:        domain.Day(now),
			Status:      domain.StatusConfirmed,
			TotalAmount: decimal.NewFromInt(1200),
			LineItems:   []domain.OrderLineItem{{ProductID: "product-1-id", Price: decimal.NewFromInt(1200), Quantity: 1}},
			CreatedAt:   now,
		},
		{
			ID:          "order-2-id",
			CustomerID:  demoCustomer,
			Date:        domain.Day(now.AddDate(0, 0, -1)),
			Status:      domain.StatusPending,
			TotalAmount: decimal.NewFromInt(500),
			LineItems:   []domain.OrderLineItem{{ProductID: "product-2-id", Price: decimal.NewFromInt(250), Quantity: 2}},
			CreatedAt:   now.AddDate(0, 0, -1),
		},
	}
}

// SeedDemo writes two historical orders for the demo customer when the
// orders table is empty. No events are emitted for them.
func (r *Repository) SeedDemo(ctx context.Context, now time.Time) (bool, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&n); err != nil {
		return false, fmt.Errorf("count orders: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	orders := demoOrders(now)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, o := range orders {
			if err := insertOrder(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed orders: %w", err)
	}
	r.log.Info("demo orders seeded", "count", len(orders), "customer_id", demoCustomer)
	return true, nil
}
