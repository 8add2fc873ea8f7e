package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dmehra2102/orderflow/internal/order/domain"
	"github.com/dmehra2102/orderflow/pkg/auth"
	"github.com/dmehra2102/orderflow/pkg/outbox"
	"github.com/dmehra2102/orderflow/pkg/tracing"
)

const (
	OpCreate  = "order.create"
	OpList    = "order.list"
	OpGet     = "order.get"
	OpListAll = "order.list_all"
	OpCatalog = "order.catalog"
)

var requirements = map[string]auth.Requirement{
	OpCreate:  auth.Require(OpCreate, auth.RoleClient),
	OpList:    auth.Require(OpList, auth.RoleClient),
	OpGet:     auth.Require(OpGet, auth.RoleClient, auth.RoleAdmin),
	OpListAll: auth.Require(OpListAll, auth.RoleAdmin),
	OpCatalog: auth.Require(OpCatalog, auth.RoleClient),
}

const aggregateOrder = "order"

type Service struct {
	log   *slog.Logger
	repo  OrderRepository
	inv   InventoryClient
	stock StockReserver
	gate  *auth.Gate
	now   func() time.Time
	newID func() string

	created  metric.Int64Counter
	rejected metric.Int64Counter
}

type Option func(*Service)

// WithReservation makes placement decrement stock atomically through r
// instead of relying on the advisory availability check alone.
func WithReservation(r StockReserver) Option {
	return func(s *Service) { s.stock = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(log *slog.Logger, repo OrderRepository, inv InventoryClient, gate *auth.Gate, opts ...Option) *Service {
	s := &Service{
		log:   log,
		repo:  repo,
		inv:   inv,
		gate:  gate,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter("github.com/dmehra2102/orderflow/internal/order")
	var err error
	if s.created, err = meter.Int64Counter("orders.created", metric.WithDescription("Orders persisted")); err != nil {
		log.Warn("orders.created counter unavailable", "err", err)
	}
	if s.rejected, err = meter.Int64Counter("orders.rejected", metric.WithDescription("Order placements refused")); err != nil {
		log.Warn("orders.rejected counter unavailable", "err", err)
	}
	return s
}

func (s *Service) authorize(caller auth.Principal, op string) error {
	return s.gate.Authorize(caller, requirements[op])
}

func (s *Service) reject(ctx context.Context, reason string) {
	if s.rejected != nil {
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return "inventory_unavailable"
	case errors.Is(err, auth.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidOrder):
		return "invalid"
	default:
		return "error"
	}
}

// CreateOrder places a single-line order for the caller. Nothing is
// persisted unless the product exists and has enough stock.
func (s *Service) CreateOrder(ctx context.Context, caller auth.Principal, req domain.PlaceOrder) (domain.Order, error) {
	if err := s.authorize(caller, OpCreate); err != nil {
		return domain.Order{}, err
	}
	o, err := s.placeOrder(ctx, caller, req)
	if err != nil {
		s.reject(ctx, rejectReason(err))
		return domain.Order{}, err
	}
	if s.created != nil {
		s.created.Add(ctx, 1)
	}
	s.log.Info("order created",
		"order_id", o.ID,
		"customer_id", o.CustomerID,
		"product_id", req.ProductID,
		"quantity", req.Quantity,
		"total", o.TotalAmount.String(),
	)
	return o, nil
}

func (s *Service) placeOrder(ctx context.Context, caller auth.Principal, req domain.PlaceOrder) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}

	product, err := s.inv.FetchProduct(ctx, req.ProductID)
	if err != nil {
		return domain.Order{}, err
	}
	if product.Quantity < req.Quantity {
		return domain.Order{}, fmt.Errorf("%s: requested %d, available %d: %w",
			req.ProductID, req.Quantity, product.Quantity, domain.ErrInsufficientStock)
	}

	if s.stock != nil {
		if err := s.stock.ReserveStock(ctx, req.ProductID, req.Quantity); err != nil {
			return domain.Order{}, err
		}
	}

	o, err := domain.NewOrder(s.newID(), caller.ID, []domain.OrderLineItem{{
		ProductID: req.ProductID,
		Price:     product.Price,
		Quantity:  req.Quantity,
	}}, s.now())
	if err != nil {
		s.releaseStock(ctx, caller, req)
		return domain.Order{}, err
	}

	payload, err := json.Marshal(domain.NewOrderCreated(o))
	if err != nil {
		s.releaseStock(ctx, caller, req)
		return domain.Order{}, fmt.Errorf("encode %s: %w", domain.EventOrderCreated, err)
	}
	event := outbox.Record{
		AggregateType: aggregateOrder,
		AggregateID:   o.ID,
		Type:          domain.EventOrderCreated,
		Payload:       payload,
		Traceparent:   tracing.Traceparent(ctx),
	}
	if err := s.repo.SaveWithOutbox(ctx, o, event); err != nil {
		s.releaseStock(ctx, caller, req)
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}
	return o, nil
}

// releaseStock hands a reservation back after a failed placement. A failure
// here leaves stock under-counted and is only logged.
func (s *Service) releaseStock(ctx context.Context, caller auth.Principal, req domain.PlaceOrder) {
	if s.stock == nil {
		return
	}
	if err := s.stock.ReleaseStock(context.WithoutCancel(ctx), req.ProductID, req.Quantity); err != nil {
		s.log.Error("stock release failed",
			"product_id", req.ProductID,
			"quantity", req.Quantity,
			"customer_id", caller.ID,
			"err", err,
		)
	}
}

func (s *Service) ListOrders(ctx context.Context, caller auth.Principal) ([]domain.Order, error) {
	if err := s.authorize(caller, OpList); err != nil {
		return nil, err
	}
	return s.repo.ListByCustomer(ctx, caller.ID)
}

// GetOrder returns any order to an ADMIN. Other callers only see their own;
// someone else's order is reported as not found.
func (s *Service) GetOrder(ctx context.Context, caller auth.Principal, id string) (domain.Order, error) {
	if err := s.authorize(caller, OpGet); err != nil {
		return domain.Order{}, err
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !caller.HasRole(auth.RoleAdmin) && o.CustomerID != caller.ID {
		return domain.Order{}, fmt.Errorf("%s: %w", id, domain.ErrOrderNotFound)
	}
	return o, nil
}

func (s *Service) ListAllOrders(ctx context.Context, caller auth.Principal) ([]domain.Order, error) {
	if err := s.authorize(caller, OpListAll); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *Service) Catalog(ctx context.Context, caller auth.Principal) ([]domain.Product, error) {
	if err := s.authorize(caller, OpCatalog); err != nil {
		return nil, err
	}
	return s.inv.FetchAllProducts(ctx)
}
