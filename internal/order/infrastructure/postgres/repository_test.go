package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/orderflow/internal/order/domain"
	"github.com/dmehra2102/orderflow/pkg/logging"
	"github.com/dmehra2102/orderflow/pkg/outbox"
	"github.com/dmehra2102/orderflow/test/integration"
)

func setup(t *testing.T) (*Repository, *OutboxStore) {
	t.Helper()
	pool := integration.Postgres(t)
	log := logging.Discard()
	repo := NewRepository(log, pool)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo, NewOutboxStore(log, pool)
}

func newOrder(t *testing.T, id, customer string) domain.Order {
	t.Helper()
	o, err := domain.NewOrder(id, customer, []domain.OrderLineItem{
		{ProductID: "p1", Price: decimal.RequireFromString("250.00"), Quantity: 2},
		{ProductID: "p2", Price: decimal.RequireFromString("0.99"), Quantity: 1},
	}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func record(o domain.Order) outbox.Record {
	payload, _ := json.Marshal(domain.NewOrderCreated(o))
	return outbox.Record{AggregateType: "order", AggregateID: o.ID, Type: domain.EventOrderCreated, Payload: payload}
}

func TestRepository_SaveAndRead(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	o := newOrder(t, "o-1", "user1")
	if err := repo.SaveWithOutbox(ctx, o, record(o)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.Get(ctx, "o-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("500.99")) || got.Status != domain.StatusCreated {
		t.Errorf("unexpected order %+v", got)
	}
	if !got.Date.Equal(o.Date) {
		t.Errorf("expected date %s, got %s", o.Date, got.Date)
	}
	if len(got.LineItems) != 2 || got.LineItems[0].ProductID != "p1" || got.LineItems[1].ProductID != "p2" {
		t.Errorf("line items out of order: %+v", got.LineItems)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRepository_FailedSaveLeavesNothing(t *testing.T) {
	repo, store := setup(t)
	ctx := context.Background()

	o := newOrder(t, "o-1", "user1")
	if err := repo.SaveWithOutbox(ctx, o, record(o)); err != nil {
		t.Fatal(err)
	}
	dup := newOrder(t, "o-1", "user2")
	if err := repo.SaveWithOutbox(ctx, dup, record(dup)); err == nil {
		t.Fatal("expected duplicate id to fail")
	}

	events, err := store.LockBatch(ctx, "relay-1", 10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("expected only the first event, got %d", len(events))
	}
	theirs, _ := repo.ListByCustomer(ctx, "user2")
	if len(theirs) != 0 {
		t.Errorf("rolled back order visible: %+v", theirs)
	}
}

func TestRepository_ListFilters(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	for _, o := range []domain.Order{newOrder(t, "o-1", "user1"), newOrder(t, "o-2", "user2"), newOrder(t, "o-3", "user1")} {
		if err := repo.SaveWithOutbox(ctx, o, record(o)); err != nil {
			t.Fatal(err)
		}
	}

	mine, err := repo.ListByCustomer(ctx, "user1")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2, got %d", len(mine))
	}
	for _, o := range mine {
		if o.CustomerID != "user1" || len(o.LineItems) != 2 {
			t.Errorf("unexpected order %+v", o)
		}
	}

	all, err := repo.List(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("list all: %v %d", err, len(all))
	}
}

func TestOutboxStore_Lifecycle(t *testing.T) {
	repo, store := setup(t)
	ctx := context.Background()

	for _, id := range []string{"o-1", "o-2"} {
		o := newOrder(t, id, "user1")
		if err := repo.SaveWithOutbox(ctx, o, record(o)); err != nil {
			t.Fatal(err)
		}
	}

	events, err := store.LockBatch(ctx, "relay-1", 10, time.Minute)
	if err != nil || len(events) != 2 {
		t.Fatalf("lock: %v %d", err, len(events))
	}
	if events[0].Type != domain.EventOrderCreated || events[0].AggregateID != "o-1" {
		t.Errorf("unexpected event %+v", events[0])
	}

	again, err := store.LockBatch(ctx, "relay-2", 10, time.Minute)
	if err != nil || len(again) != 0 {
		t.Fatalf("leased events handed out twice: %v %d", err, len(again))
	}

	if err := store.MarkSent(ctx, []int64{events[0].ID}); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed(ctx, events[1].ID, "broker down", 3); err != nil {
		t.Fatal(err)
	}

	retry, err := store.LockBatch(ctx, "relay-1", 10, time.Minute)
	if err != nil || len(retry) != 1 || retry[0].ID != events[1].ID || retry[0].RetryCount != 1 {
		t.Fatalf("expected failed event back for retry: %v %+v", err, retry)
	}
	if err := store.MarkFailed(ctx, retry[0].ID, "broker down", 2); err != nil {
		t.Fatal(err)
	}
	if rest, _ := store.LockBatch(ctx, "relay-1", 10, time.Minute); len(rest) != 0 {
		t.Errorf("event should be parked after max attempts, got %d", len(rest))
	}
}

func TestOutboxStore_ExpiredLeaseIsReclaimed(t *testing.T) {
	repo, store := setup(t)
	ctx := context.Background()

	o := newOrder(t, "o-1", "user1")
	if err := repo.SaveWithOutbox(ctx, o, record(o)); err != nil {
		t.Fatal(err)
	}
	if events, _ := store.LockBatch(ctx, "relay-1", 10, time.Millisecond); len(events) != 1 {
		t.Fatal("expected one event")
	}
	time.Sleep(20 * time.Millisecond)

	events, err := store.LockBatch(ctx, "relay-2", 10, time.Minute)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected reclaimed event: %v %d", err, len(events))
	}
}

func TestRepository_SeedDemo(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

	seeded, err := repo.SeedDemo(ctx, now)
	if err != nil || !seeded {
		t.Fatalf("seed: %v %v", seeded, err)
	}
	if again, _ := repo.SeedDemo(ctx, now); again {
		t.Error("second seed should be a no-op")
	}

	orders, err := repo.ListByCustomer(ctx, "user1")
	if err != nil || len(orders) != 2 {
		t.Fatalf("list: %v %d", err, len(orders))
	}
	byID := map[string]domain.Order{}
	for _, o := range orders {
		byID[o.ID] = o
	}
	pending := byID["order-2-id"]
	if pending.Status != domain.StatusPending || !pending.TotalAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("unexpected pending order %+v", pending)
	}
	if !pending.Date.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected previous day, got %s", pending.Date)
	}
	if byID["order-1-id"].Status != domain.StatusConfirmed {
		t.Errorf("unexpected confirmed order %+v", byID["order-1-id"])
	}
}
