// Package productclient calls the product service over HTTP with the order
// service's own bearer token.
package productclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dmehra2102/orderflow/internal/order/domain"
	"github.com/dmehra2102/orderflow/pkg/auth"
)

type Client struct {
	log        *slog.Logger
	baseURL    string
	creds      auth.TokenSource
	http       *http.Client
	timeout    time.Duration
	maxRetries uint64
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetries allows n extra attempts for reads that fail with
// ErrRemoteUnavailable.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

func New(log *slog.Logger, baseURL string, creds auth.TokenSource, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type productDTO struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func (p productDTO) toDomain() domain.Product {
	return domain.Product{ID: p.ID, Name: p.Name, Price: p.Price, Quantity: p.Quantity}
}

func (c *Client) FetchProduct(ctx context.Context, id string) (domain.Product, error) {
	var dto productDTO
	err := c.retry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &dto)
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("fetch product %s: %w", id, err)
	}
	return dto.toDomain(), nil
}

func (c *Client) FetchAllProducts(ctx context.Context) ([]domain.Product, error) {
	var dtos []productDTO
	err := c.retry(ctx, func(ctx context.Context) error {
		dtos = nil
		return c.do(ctx, http.MethodGet, "/products", nil, &dtos)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	products := make([]domain.Product, 0, len(dtos))
	for _, d := range dtos {
		products = append(products, d.toDomain())
	}
	return products, nil
}

type stockBody struct {
	Quantity int `json:"quantity"`
}

// ReserveStock is never retried: a lost response could otherwise reserve twice.
func (c *Client) ReserveStock(ctx context.Context, productID string, qty int) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.do(ctx, http.MethodPost, "/products/"+url.PathEscape(productID)+"/reserve", stockBody{Quantity: qty}, nil); err != nil {
		return fmt.Errorf("reserve %s: %w", productID, err)
	}
	return nil
}

func (c *Client) ReleaseStock(ctx context.Context, productID string, qty int) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.do(ctx, http.MethodPost, "/products/"+url.PathEscape(productID)+"/release", stockBody{Quantity: qty}, nil); err != nil {
		return fmt.Errorf("release %s: %w", productID, err)
	}
	return nil
}

// retry runs fn with a fresh per-attempt timeout. Only ErrRemoteUnavailable
// is retried.
func (c *Client) retry(ctx context.Context, fn func(context.Context) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		err := fn(actx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrRemoteUnavailable) || errors.Is(err, domain.ErrCredentialRejected) {
			return backoff.Permanent(err)
		}
		if uint64(attempt) <= c.maxRetries {
			c.log.Warn("product service call failed, retrying", "attempt", attempt, "err", err)
		}
		return err
	}, b)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := auth.SetAuthorization(req, c.creds); err != nil {
		return fmt.Errorf("service credential: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrRemoteUnavailable, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrProductNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w: product service answered %d", domain.ErrRemoteUnavailable, domain.ErrCredentialRejected, resp.StatusCode)
	case resp.StatusCode == http.StatusConflict:
		return domain.ErrInsufficientStock
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: product service rejected the request", domain.ErrInvalidOrder)
	default:
		return fmt.Errorf("%w: product service answered %d", domain.ErrRemoteUnavailable, resp.StatusCode)
	}
}
