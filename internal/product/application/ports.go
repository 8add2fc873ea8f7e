package application

import (
	"context"

	"github.com/dmehra2102/orderflow/internal/product/domain"
)

type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	Create(ctx context.Context, p domain.Product) (domain.Product, error)
	Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error)
	Delete(ctx context.Context, id string) error
	// Reserve decrements stock only when at least qty units remain.
	Reserve(ctx context.Context, id string, qty int) error
	Release(ctx context.Context, id string, qty int) error
}
