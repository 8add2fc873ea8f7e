package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/orderflow/internal/order/domain"
	"github.com/dmehra2102/orderflow/pkg/outbox"
)

//go:embed schema.sql
var schema string

const orderColumns = `id, customer_id, order_date, status, total_amount::text, created_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate orders: %w", err)
	}
	return nil
}

func (r *Repository) SaveWithOutbox(ctx context.Context, o domain.Order, event outbox.Record) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := insertOrder(ctx, tx, o); err != nil {
		return err
	}

	headers := event.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')`,
		event.AggregateType, event.AggregateID, event.Type, event.Payload, headers, event.Traceparent)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}

	return tx.Commit(ctx)
}

func insertOrder(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	_, err := tx.Exec(ctx, `INSERT INTO orders (id, customer_id, order_date, status, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.CustomerID, o.Date, string(o.Status), o.TotalAmount.String(), o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for i, item := range o.LineItems {
		batch.Queue(`INSERT INTO order_line_items (order_id, position, product_id, price, quantity)
			VALUES ($1, $2, $3, $4, $5)`,
			o.ID, i, item.ProductID, item.Price.String(), item.Quantity)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert line items %s: %w", o.ID, err)
	}
	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o      domain.Order
		status string
		total  string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.Date, &status, &total, &o.CreatedAt); err != nil {
		return domain.Order{}, err
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode total %q: %w", total, err)
	}
	o.Status = domain.OrderStatus(status)
	o.TotalAmount = amount
	return o, nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("%s: %w", id, domain.ErrOrderNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}

	orders := []domain.Order{o}
	if err := r.loadLineItems(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (r *Repository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at, id`, customerID)
}

func (r *Repository) List(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at, id`)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadLineItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadLineItems fills LineItems for every order with a single query.
func (r *Repository) loadLineItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		index[o.ID] = i
	}

	rows, err := r.pool.Query(ctx, `SELECT order_id, product_id, price::text, quantity
		FROM order_line_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			price   string
			item    domain.OrderLineItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &price, &item.Quantity); err != nil {
			return err
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("decode price %q: %w", price, err)
		}
		i := index[orderID]
		orders[i].LineItems = append(orders[i].LineItems, item)
	}
	return rows.Err()
}
