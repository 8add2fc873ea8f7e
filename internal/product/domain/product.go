package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidProduct    = errors.New("invalid product")
)

// MaxQuantity is the largest stock or adjustment the store column holds.
const MaxQuantity = math.MaxInt32

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if p.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidProduct)
	}
	if p.Quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity must not exceed %d", ErrInvalidProduct, MaxQuantity)
	}
	return nil
}

// ProductPatch is a partial update. A nil field is left as is; a non-nil
// zero value is applied.
type ProductPatch struct {
	Name     *string
	Price    *decimal.Decimal
	Quantity *int
}

func (pp ProductPatch) Empty() bool {
	return pp.Name == nil && pp.Price == nil && pp.Quantity == nil
}

func (pp ProductPatch) Validate() error {
	if pp.Name != nil && strings.TrimSpace(*pp.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidProduct)
	}
	if pp.Price != nil && pp.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if pp.Quantity != nil && *pp.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidProduct)
	}
	if pp.Quantity != nil && *pp.Quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity must not exceed %d", ErrInvalidProduct, MaxQuantity)
	}
	return nil
}

func (pp ProductPatch) Apply(p Product) Product {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.Quantity != nil {
		p.Quantity = *pp.Quantity
	}
	return p
}

func ValidateStockQuantity(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidProduct)
	}
	if qty > MaxQuantity {
		return fmt.Errorf("%w: quantity must not exceed %d", ErrInvalidProduct, MaxQuantity)
	}
	return nil
}
