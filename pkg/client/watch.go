package client

import (
	"context"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 20 * time.Second
	MinPollInterval     = 15 * time.Second
	MaxPollInterval     = 30 * time.Second
)

// ClampPollInterval keeps a polling interval inside [MinPollInterval,
// MaxPollInterval]; zero or negative means DefaultPollInterval.
func ClampPollInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultPollInterval
	case d < MinPollInterval:
		return MinPollInterval
	case d > MaxPollInterval:
		return MaxPollInterval
	default:
		return d
	}
}

// OrderWatcher polls one order and reports status changes
type OrderWatcher struct {
	session  *Session
	orderID  uuid.UUID
	interval time.Duration
}

// WatchOrder returns a watcher polling at interval, clamped to the allowed range
func (s *Session) WatchOrder(orderID uuid.UUID, interval time.Duration) *OrderWatcher {
	return &OrderWatcher{session: s, orderID: orderID, interval: ClampPollInterval(interval)}
}

func (w *OrderWatcher) Interval() time.Duration {
	return w.interval
}

// Run calls onChange with the order whenever its status differs from the
// last one seen, starting with the first poll. It returns nil once the order
// reaches a terminal status, or the context error when ctx ends. A failed
// poll is logged and retried on the next tick.
func (w *OrderWatcher) Run(ctx context.Context, onChange func(*domain.Order)) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	return w.run(ctx, ticker.C, onChange)
}

func (w *OrderWatcher) run(ctx context.Context, tick <-chan time.Time, onChange func(*domain.Order)) error {
	var last domain.OrderStatus
	for {
		order, err := w.session.Order(ctx, w.orderID)
		switch {
		case err == nil:
			if order.Status != last {
				last = order.Status
				onChange(order)
			}
			if order.Status.Terminal() {
				return nil
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case IsKind(err, domain.KindNotFound), IsKind(err, domain.KindAuthentication):
			return err
		default:
			w.session.logger.Warn("Order poll failed", zap.String("order_id", w.orderID.String()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		}
	}
}
