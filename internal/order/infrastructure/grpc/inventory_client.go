package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/orderflow/internal/order/domain"
	"github.com/dmehra2102/orderflow/pkg/auth"
	"github.com/dmehra2102/orderflow/pkg/inventoryrpc"
)

type InventoryClient struct {
	log        *slog.Logger
	conn       *grpc.ClientConn
	cc         inventoryrpc.InventoryClient
	timeout    time.Duration
	maxRetries uint64
}

// NewInventoryClient dials the product service. Every call carries a token
// from creds, never the end user's.
func NewInventoryClient(log *slog.Logger, addr string, creds auth.TokenSource, timeout time.Duration, maxRetries uint64, opts ...grpc.DialOption) (*InventoryClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(auth.PerRPCCredentials(creds)),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &InventoryClient{
		log:        log,
		conn:       conn,
		cc:         inventoryrpc.NewInventoryClient(conn),
		timeout:    timeout,
		maxRetries: maxRetries,
	}, nil
}

func (c *InventoryClient) Close() error {
	return c.conn.Close()
}

func toDomain(p *inventoryrpc.Product) (domain.Product, error) {
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: bad price %q", domain.ErrRemoteUnavailable, p.Price)
	}
	return domain.Product{ID: p.ID, Name: p.Name, Price: price, Quantity: p.Quantity}, nil
}

func (c *InventoryClient) FetchProduct(ctx context.Context, id string) (domain.Product, error) {
	var product domain.Product
	err := c.retry(ctx, func(ctx context.Context) error {
		resp, err := c.cc.GetProduct(ctx, &inventoryrpc.GetProductRequest{ID: id})
		if err != nil {
			return fromStatus(err)
		}
		product, err = toDomain(resp)
		return err
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("fetch product %s: %w", id, err)
	}
	return product, nil
}

func (c *InventoryClient) FetchAllProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := c.retry(ctx, func(ctx context.Context) error {
		resp, err := c.cc.ListProducts(ctx, &inventoryrpc.ListProductsRequest{})
		if err != nil {
			return fromStatus(err)
		}
		products = make([]domain.Product, 0, len(resp.Products))
		for i := range resp.Products {
			p, err := toDomain(&resp.Products[i])
			if err != nil {
				return err
			}
			products = append(products, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	return products, nil
}

func (c *InventoryClient) ReserveStock(ctx context.Context, productID string, qty int) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.cc.ReserveStock(ctx, &inventoryrpc.StockRequest{ProductID: productID, Quantity: qty})
	if err != nil {
		return fmt.Errorf("reserve %s: %w", productID, fromStatus(err))
	}
	return nil
}

func (c *InventoryClient) ReleaseStock(ctx context.Context, productID string, qty int) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.cc.ReleaseStock(ctx, &inventoryrpc.StockRequest{ProductID: productID, Quantity: qty})
	if err != nil {
		return fmt.Errorf("release %s: %w", productID, fromStatus(err))
	}
	return nil
}

func (c *InventoryClient) retry(ctx context.Context, fn func(context.Context) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(func() error {
		actx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		err := fn(actx)
		if err != nil && (!errors.Is(err, domain.ErrRemoteUnavailable) || errors.Is(err, domain.ErrCredentialRejected)) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func fromStatus(err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.NotFound:
		return domain.ErrProductNotFound
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %w: %s", domain.ErrRemoteUnavailable, domain.ErrCredentialRejected, st.Message())
	case codes.FailedPrecondition:
		return domain.ErrInsufficientStock
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", domain.ErrInvalidOrder, st.Message())
	default:
		return fmt.Errorf("%w: %s", domain.ErrRemoteUnavailable, st.Message())
	}
}
