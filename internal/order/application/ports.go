package application

import (
	"context"

	"github.com/dmehra2102/orderflow/internal/order/domain"
	"github.com/dmehra2102/orderflow/pkg/outbox"
)

type OrderRepository interface {
	// SaveWithOutbox stores the order, its line items and the outbox record
	// in one transaction.
	SaveWithOutbox(ctx context.Context, o domain.Order, event outbox.Record) error
	Get(ctx context.Context, id string) (domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

// InventoryClient reads the catalog with the order service's own credential;
// the end user is authorized by the order service before any call is made.
// Implementations report domain.ErrProductNotFound or
// domain.ErrRemoteUnavailable.
type InventoryClient interface {
	FetchProduct(ctx context.Context, id string) (domain.Product, error)
	FetchAllProducts(ctx context.Context) ([]domain.Product, error)
}

type StockReserver interface {
	ReserveStock(ctx context.Context, productID string, qty int) error
	ReleaseStock(ctx context.Context, productID string, qty int) error
}
