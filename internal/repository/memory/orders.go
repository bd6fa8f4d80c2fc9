package memory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

type orders struct{ store *Store }

var _ repository.OrderRepository = (*orders)(nil)

func copyOrder(o domain.Order) *domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.SelectedOptions = item.SelectedOptions.Clone()
		items[i] = item
	}
	o.Items = items
	return &o
}

func (o *orders) Create(ctx context.Context, order *domain.Order) error {
	o.store.wlock(ctx)
	defer o.store.wunlock(ctx)

	if _, ok := o.store.data.users[order.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	for _, item := range order.Items {
		if _, ok := o.store.data.products[item.ProductID]; !ok {
			return repository.ErrProductNotFound
		}
	}

	stored := copyOrder(*order)
	for i := range stored.Items {
		stored.Items[i].OrderID = order.ID
	}
	o.store.data.orders[order.ID] = *stored
	return nil
}

func (o *orders) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o.store.rlock(ctx)
	defer o.store.runlock(ctx)

	order, ok := o.store.data.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (o *orders) collect(match func(domain.Order) bool) []*domain.Order {
	out := make([]*domain.Order, 0)
	for _, order := range o.store.data.orders {
		if match(order) {
			out = append(out, copyOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].OrderDate.After(out[j].OrderDate)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

func (o *orders) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	o.store.rlock(ctx)
	defer o.store.runlock(ctx)

	return o.collect(func(order domain.Order) bool { return order.UserID == userID }), nil
}

func (o *orders) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	o.store.rlock(ctx)
	defer o.store.runlock(ctx)

	return o.collect(func(order domain.Order) bool {
		return filter.Status == nil || order.Status == *filter.Status
	}), nil
}

func (o *orders) LockStatus(ctx context.Context, id uuid.UUID) (domain.OrderStatus, error) {
	o.store.rlock(ctx)
	defer o.store.runlock(ctx)

	order, ok := o.store.data.orders[id]
	if !ok {
		return "", repository.ErrOrderNotFound
	}
	return order.Status, nil
}

func (o *orders) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, adminNotes *string) error {
	o.store.wlock(ctx)
	defer o.store.wunlock(ctx)

	order, ok := o.store.data.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.Status = status
	if adminNotes != nil {
		order.AdminNotes = *adminNotes
	}
	order.UpdatedAt = time.Now().UTC()
	o.store.data.orders[id] = order
	return nil
}
