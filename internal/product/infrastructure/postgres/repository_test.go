package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/orderflow/internal/product/domain"
	"github.com/dmehra2102/orderflow/pkg/logging"
	"github.com/dmehra2102/orderflow/test/integration"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	repo := NewRepository(logging.Discard(), integration.Postgres(t))
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func TestRepository_CRUD(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, domain.Product{ID: "p1", Name: "Monitor", Price: decimal.RequireFromString("249.99"), Quantity: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.Price.Equal(decimal.RequireFromString("249.99")) || created.Version != 1 {
		t.Errorf("unexpected created product %+v", created)
	}

	if _, err := repo.Create(ctx, domain.Product{ID: "p1", Name: "Dup", Price: decimal.Zero}); !errors.Is(err, domain.ErrInvalidProduct) {
		t.Errorf("expected duplicate to be rejected, got %v", err)
	}

	zero := decimal.Zero
	updated, err := repo.Update(ctx, "p1", domain.ProductPatch{Price: &zero})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Price.IsZero() || updated.Name != "Monitor" || updated.Quantity != 4 || updated.Version != 2 {
		t.Errorf("unexpected updated product %+v", updated)
	}

	if _, err := repo.Update(ctx, "missing", domain.ProductPatch{Price: &zero}); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	if err := repo.Delete(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "p1"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
	if _, err := repo.Get(ctx, "p1"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRepository_SeedAndList(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	seeded, err := repo.SeedDemo(ctx)
	if err != nil || !seeded {
		t.Fatalf("seed: %v %v", seeded, err)
	}
	again, err := repo.SeedDemo(ctx)
	if err != nil || again {
		t.Fatalf("second seed should be a no-op: %v %v", again, err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].Name != "Laptop" || list[2].Name != "Smartphone" {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestRepository_ReserveIsAtomic(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	if _, err := repo.Create(ctx, domain.Product{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(250), Quantity: 2}); err != nil {
		t.Fatal(err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		miss int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Reserve(ctx, "p1", 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				miss++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 2 || miss != 8 {
		t.Errorf("expected 2 reservations and 8 rejections, got %d/%d", ok, miss)
	}

	p, _ := repo.Get(ctx, "p1")
	if p.Quantity != 0 {
		t.Errorf("expected stock 0, got %d", p.Quantity)
	}

	if err := repo.Release(ctx, "p1", 1); err != nil {
		t.Fatal(err)
	}
	if err := repo.Reserve(ctx, "missing", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := repo.Release(ctx, "missing", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := repo.Release(ctx, "p1", domain.MaxQuantity); !errors.Is(err, domain.ErrInvalidProduct) {
		t.Errorf("expected overflowing release to be invalid, got %v", err)
	}
}
