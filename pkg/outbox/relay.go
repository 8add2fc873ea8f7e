package outbox

import (
	"context"
	"log/slog"
	"time"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	// MarkFailed records a failed attempt. Events reaching maxAttempts move to
	// StatusFailed, the rest go back to pending.
	MarkFailed(ctx context.Context, id int64, errMsg string, maxAttempts int) error
}

type Relay struct {
	log         *slog.Logger
	store       Store
	dispatch    *Dispatcher
	relayID     string
	batchSize   int
	interval    time.Duration
	lease       time.Duration
	maxAttempts int
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option { return func(r *Relay) { r.interval = d } }

func WithBatchSize(n int) Option { return func(r *Relay) { r.batchSize = n } }

func WithMaxAttempts(n int) Option { return func(r *Relay) { r.maxAttempts = n } }

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string, opts ...Option) *Relay {
	r := &Relay{
		log:         log,
		store:       store,
		dispatch:    dispatch,
		relayID:     relayID,
		batchSize:   100,
		interval:    500 * time.Millisecond,
		lease:       5 * time.Second,
		maxAttempts: 10,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls the store until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.log.Info("relay started", "relay_id", r.relayID, "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if _, err := r.Flush(ctx); err != nil {
				r.log.Error("relay flush error", "relay_id", r.relayID, "err", err)
			}
		}
	}
}

// Flush dispatches one locked batch and returns how many events were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			if mErr := r.store.MarkFailed(ctx, e.ID, err.Error(), r.maxAttempts); mErr != nil {
				r.log.Error("relay mark failed error", "event_id", e.ID, "err", mErr)
			}
			continue
		}
		ids = append(ids, e.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.store.MarkSent(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}
