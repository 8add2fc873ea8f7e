package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var demoProducts = []struct {
	id       string
	name     string
	price    string
	quantity int
}{
	{"product-1-id", "Laptop", "12000", 10},
	{"product-2-id", "Smartphone", "8000", 20},
	{"product-3-id", "Printer", "3000", 5},
}

// SeedDemo inserts the demo catalog when the products table is empty.
func (r *Repository) SeedDemo(ctx context.Context) (bool, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&n); err != nil {
		return false, fmt.Errorf("count products: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	batch := &pgx.Batch{}
	for _, p := range demoProducts {
		batch.Queue(`INSERT INTO products (id, name, price, quantity) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
			p.id, p.name, p.price, p.quantity)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return false, fmt.Errorf("seed products: %w", err)
	}
	r.log.Info("demo products seeded", "count", len(demoProducts))
	return true, nil
}
