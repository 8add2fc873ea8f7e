package productclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/orderflow/internal/order/domain"
	"github.com/dmehra2102/orderflow/pkg/auth"
	"github.com/dmehra2102/orderflow/pkg/logging"
)

const serviceToken = auth.StaticToken("svc-token")

func newClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(logging.Discard(), srv.URL, serviceToken, time.Second, opts...)
}

func TestFetchProduct_SendsServiceTokenAndDecodes(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer svc-token" {
			t.Errorf("unexpected authorization %q", got)
		}
		if r.URL.Path != "/products/p1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"p1","name":"Laptop","price":"12000.50","quantity":10}`))
	})

	p, err := c.FetchProduct(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "p1" || !p.Price.Equal(decimal.RequireFromString("12000.50")) || p.Quantity != 10 {
		t.Errorf("unexpected product %+v", p)
	}
}

func TestFetchProduct_AcceptsNumericPrice(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p1","name":"Laptop","price":250,"quantity":2}`))
	})
	p, err := c.FetchProduct(context.Background(), "p1")
	if err != nil || !p.Price.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("unexpected result %+v %v", p, err)
	}
}

func TestFetchProduct_ErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		h    http.HandlerFunc
		want error
	}{
		{"not found", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) }, domain.ErrProductNotFound},
		{"forbidden", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusForbidden) }, domain.ErrCredentialRejected},
		{"unauthorized", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusUnauthorized) }, domain.ErrCredentialRejected},
		{"server error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }, domain.ErrRemoteUnavailable},
		{"garbage body", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`<html>`)) }, domain.ErrRemoteUnavailable},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, domain.ErrRemoteUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.h)
			defer srv.Close()
			c := New(logging.Discard(), srv.URL, serviceToken, 100*time.Millisecond)

			_, err := c.FetchProduct(context.Background(), "p1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFetchProduct_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(logging.Discard(), url, serviceToken, time.Second)
	if _, err := c.FetchProduct(context.Background(), "p1"); !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestFetchProduct_RetriesOnlyUnavailable(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"p1","name":"Laptop","price":"1","quantity":1}`))
	}, WithRetries(3))

	if _, err := c.FetchProduct(context.Background(), "p1"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}

	var notFound atomic.Int32
	c = newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		notFound.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}, WithRetries(3))
	if _, err := c.FetchProduct(context.Background(), "p1"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatal(err)
	}
	if notFound.Load() != 1 {
		t.Errorf("not found must not be retried, got %d attempts", notFound.Load())
	}
}

func TestFetchProduct_RejectedCredentialIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}, WithRetries(3))

	_, err := c.FetchProduct(context.Background(), "p1")
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", hits.Load())
	}
}

func TestFetchProduct_MissingCredential(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()

	c := New(logging.Discard(), srv.URL, auth.StaticToken(""), time.Second)
	if _, err := c.FetchProduct(context.Background(), "p1"); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if hits.Load() != 0 {
		t.Error("request sent without a credential")
	}
}

func TestFetchProduct_NoRetriesByDefault(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := c.FetchProduct(context.Background(), "p1"); !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", hits.Load())
	}
}

func TestFetchAllProducts(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"id":"p1","name":"A","price":"1","quantity":1},{"id":"p2","name":"B","price":"2","quantity":2}]`))
	})
	products, err := c.FetchAllProducts(context.Background())
	if err != nil || len(products) != 2 || products[1].ID != "p2" {
		t.Fatalf("unexpected result %+v %v", products, err)
	}
}

func TestReserveStock(t *testing.T) {
	var stock atomic.Int32
	stock.Store(2)
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Quantity int `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/products/p1/reserve":
			if int(stock.Load()) < body.Quantity {
				w.WriteHeader(http.StatusConflict)
				return
			}
			stock.Add(int32(-body.Quantity))
		case "/products/p1/release":
			stock.Add(int32(body.Quantity))
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	if err := c.ReserveStock(ctx, "p1", 2); err != nil {
		t.Fatal(err)
	}
	if err := c.ReserveStock(ctx, "p1", 1); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if err := c.ReleaseStock(ctx, "p1", 1); err != nil {
		t.Fatal(err)
	}
	if stock.Load() != 1 {
		t.Errorf("expected stock 1, got %d", stock.Load())
	}
	if err := c.ReserveStock(ctx, "p9", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
