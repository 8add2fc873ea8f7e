package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/orderflow/internal/product/domain"
)

//go:embed schema.sql
var schema string

const (
	uniqueViolation   = "23505"
	numericOutOfRange = "22003"
)

const productColumns = `id, name, price::text, quantity, version, created_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:  log,
		pool: pool,
	}
}

func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate products: %w", err)
	}
	return nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Quantity, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("decode price %q: %w", price, err)
	}
	p.Price = d
	return p, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%s: %w", id, domain.ErrProductNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func (r *Repository) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	created, err := scanProduct(r.pool.QueryRow(ctx, `
		INSERT INTO products (id, name, price, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING `+productColumns,
		p.ID, p.Name, p.Price.String(), p.Quantity))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Product{}, fmt.Errorf("%w: product %s already exists", domain.ErrInvalidProduct, p.ID)
		}
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	var price *string
	if patch.Price != nil {
		s := patch.Price.String()
		price = &s
	}

	updated, err := scanProduct(r.pool.QueryRow(ctx, `
		UPDATE products
		SET name = COALESCE($2, name),
		    price = COALESCE($3::numeric, price),
		    quantity = COALESCE($4, quantity),
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, patch.Name, price, patch.Quantity))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%s: %w", id, domain.ErrProductNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product %s: %w", id, err)
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		r.log.Debug("delete of absent product", "product_id", id)
	}
	return nil
}

// Reserve is a single compare-and-decrement statement; concurrent callers
// can never drive quantity below zero.
func (r *Repository) Reserve(ctx context.Context, id string, qty int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET quantity = quantity - $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND quantity >= $2`, id, qty)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("reserve %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", id, domain.ErrProductNotFound)
	}
	return fmt.Errorf("%s: %w", id, domain.ErrInsufficientStock)
}

func (r *Repository) Release(ctx context.Context, id string, qty int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET quantity = quantity + $2, version = version + 1, updated_at = now()
		WHERE id = $1`, id, qty)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == numericOutOfRange {
			return fmt.Errorf("%w: releasing %d would overflow stock of %s", domain.ErrInvalidProduct, qty, id)
		}
		return fmt.Errorf("release %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, domain.ErrProductNotFound)
	}
	return nil
}
