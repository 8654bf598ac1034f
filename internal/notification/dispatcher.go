package notification

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/example/ec-fulfillment/internal/domain/order"
)

const DefaultTimeout = 5 * time.Second

// Sender delivers order notifications. It may block; the Dispatcher keeps it
// off the caller's path.
type Sender interface {
	OrderCreated(ctx context.Context, o *order.Order) error
	OrderStatusChanged(ctx context.Context, o *order.Order, previous order.Status) error
}

// Dispatcher implements order.Notifier. Each notification runs in its own
// goroutine under a timeout; failures and panics are logged and dropped.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ order.Notifier = (*Dispatcher)(nil)

func NewDispatcher(sender Sender, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{sender: sender, timeout: timeout}
}

func (d *Dispatcher) OrderCreated(ctx context.Context, o *order.Order) {
	d.dispatch(ctx, "OrderCreated", o.OrderNumber, func(ctx context.Context) error {
		return d.sender.OrderCreated(ctx, o)
	})
}

func (d *Dispatcher) OrderStatusChanged(ctx context.Context, o *order.Order, previous order.Status) {
	d.dispatch(ctx, "OrderStatusChanged", o.OrderNumber, func(ctx context.Context) error {
		return d.sender.OrderStatusChanged(ctx, o, previous)
	})
}

func (d *Dispatcher) dispatch(parent context.Context, kind, orderNumber string, send func(context.Context) error) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		log.Printf("[Notifier] Dropping %s for %s: dispatcher closed", kind, orderNumber)
		return
	}
	d.wg.Add(1)
	d.mu.RUnlock()

	// The request context is usually cancelled as soon as the response is
	// written; keep its values but not its deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.timeout)
	go func() {
		defer d.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Notifier] Panic sending %s for %s: %v", kind, orderNumber, r)
			}
		}()

		if err := send(ctx); err != nil {
			log.Printf("[Notifier] Failed to send %s for %s: %v", kind, orderNumber, err)
		}
	}()
}

// Close stops accepting notifications and waits for in-flight sends, or
// until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
