package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDrain_RunsAllAndJoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	var calls []string

	err := Drain(time.Second,
		func(ctx context.Context) error { calls = append(calls, "http"); return errA },
		nil,
		func(ctx context.Context) error { calls = append(calls, "db"); return nil },
		func(ctx context.Context) error {
			calls = append(calls, "kafka")
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected drain context to carry a deadline")
			}
			return errB
		},
	)

	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %v", calls)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("expected joined errors, got %v", err)
	}
}

func TestWithSignals_ParentCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := WithSignals(parent)
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected derived context to be cancelled with its parent")
	}
}
