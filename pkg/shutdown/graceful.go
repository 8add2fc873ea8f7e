package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// WithSignals returns a context cancelled on SIGINT or SIGTERM.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// Func releases one resource within the deadline carried by ctx.
type Func func(ctx context.Context) error

// Drain runs fns in order under a shared timeout and joins their errors.
func Drain(timeout time.Duration, fns ...Func) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var err error
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		err = errors.Join(err, fn(ctx))
	}
	return err
}
