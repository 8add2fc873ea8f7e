package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrRemoteUnavailable = errors.New("inventory unavailable")
	ErrInvalidOrder      = errors.New("invalid order")

	// ErrCredentialRejected marks a RemoteUnavailable caused by the product
	// service refusing this service's own credential. It is not retried.
	ErrCredentialRejected = errors.New("inventory rejected the service credential")
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusCreated   OrderStatus = "CREATED"
	StatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCreated, StatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID          string
	CustomerID  string
	Date        time.Time
	Status      OrderStatus
	TotalAmount decimal.Decimal
	LineItems   []OrderLineItem
	CreatedAt   time.Time
}

// OrderLineItem snapshots the product price at the time the order was placed.
type OrderLineItem struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

func (li OrderLineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Product is the order side view of a catalog entry.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// PlaceOrder is a customer's request for a quantity of one product.
type PlaceOrder struct {
	ProductID string
	Quantity  int
}

func (p PlaceOrder) Validate() error {
	if p.ProductID == "" {
		return fmt.Errorf("%w: productId is required", ErrInvalidOrder)
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if p.Quantity > math.MaxInt32 {
		return fmt.Errorf("%w: quantity must not exceed %d", ErrInvalidOrder, math.MaxInt32)
	}
	return nil
}

// NewOrder builds a CREATED order dated on now's UTC calendar day. The total
// is the exact sum of each line's price times quantity.
func NewOrder(id, customerID string, items []OrderLineItem, now time.Time) (Order, error) {
	if customerID == "" {
		return Order{}, fmt.Errorf("%w: customer is required", ErrInvalidOrder)
	}
	if len(items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one line item is required", ErrInvalidOrder)
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: line item quantity must be positive", ErrInvalidOrder)
		}
		total = total.Add(item.Subtotal())
	}

	now = now.UTC()
	return Order{
		ID:          id,
		CustomerID:  customerID,
		Date:        Day(now),
		Status:      StatusCreated,
		TotalAmount: total,
		LineItems:   items,
		CreatedAt:   now,
	}, nil
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
