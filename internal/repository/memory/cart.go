package memory

import (
	"bytes"
	"context"
	"sort"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

type cart struct{ store *Store }

var _ repository.CartRepository = (*cart)(nil)

func copyCartItem(item domain.CartItem) *domain.CartItem {
	item.SelectedOptions = item.SelectedOptions.Clone()
	return &item
}

func (c *cart) userItems(userID uuid.UUID) []*domain.CartItem {
	out := make([]*domain.CartItem, 0)
	for _, item := range c.store.data.cart {
		if item.UserID == userID {
			out = append(out, copyCartItem(item))
		}
	}
	return out
}

// sameLine reports whether two rows collide on the cart_items_line_key constraint
func sameLine(a, b domain.CartItem) bool {
	return a.UserID == b.UserID && a.ProductID == b.ProductID && a.SelectedOptions.Equal(b.SelectedOptions)
}

func (c *cart) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.CartLine, error) {
	c.store.rlock(ctx)
	defer c.store.runlock(ctx)

	items := c.userItems(userID)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return bytes.Compare(items[i].ID[:], items[j].ID[:]) < 0
	})

	lines := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		product, ok := c.store.data.products[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, domain.CartLine{CartItem: *item, Product: copyProduct(product)})
	}
	return lines, nil
}

func (c *cart) ListForUpdate(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	c.store.rlock(ctx)
	defer c.store.runlock(ctx)

	items := c.userItems(userID)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return bytes.Compare(items[i].ID[:], items[j].ID[:]) < 0
	})
	return items, nil
}

func (c *cart) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.CartItem, error) {
	c.store.rlock(ctx)
	defer c.store.runlock(ctx)

	item, ok := c.store.data.cart[id]
	if !ok || item.UserID != userID {
		return nil, repository.ErrCartItemNotFound
	}
	return copyCartItem(item), nil
}

func (c *cart) FindLine(ctx context.Context, userID, productID uuid.UUID, options domain.SelectedOptions) (*domain.CartItem, error) {
	c.store.rlock(ctx)
	defer c.store.runlock(ctx)

	want := domain.CartItem{UserID: userID, ProductID: productID, SelectedOptions: options}
	for _, item := range c.store.data.cart {
		if sameLine(item, want) {
			return copyCartItem(item), nil
		}
	}
	return nil, repository.ErrCartItemNotFound
}

func (c *cart) AddOrMerge(ctx context.Context, item *domain.CartItem) error {
	c.store.wlock(ctx)
	defer c.store.wunlock(ctx)

	if !domain.ValidCartQuantity(item.Quantity) {
		return domain.ErrInvalidQuantity
	}
	if _, ok := c.store.data.products[item.ProductID]; !ok {
		return repository.ErrProductNotFound
	}
	if _, ok := c.store.data.users[item.UserID]; !ok {
		return repository.ErrUserNotFound
	}

	for id, existing := range c.store.data.cart {
		if sameLine(existing, *item) {
			if !domain.ValidCartQuantity(existing.Quantity + item.Quantity) {
				return domain.ErrInvalidQuantity
			}
			existing.Quantity += item.Quantity
			existing.UpdatedAt = item.UpdatedAt
			c.store.data.cart[id] = existing

			item.ID = existing.ID
			item.Quantity = existing.Quantity
			item.CreatedAt = existing.CreatedAt
			return nil
		}
	}

	c.store.data.cart[item.ID] = *copyCartItem(*item)
	return nil
}

func (c *cart) Update(ctx context.Context, item *domain.CartItem) error {
	c.store.wlock(ctx)
	defer c.store.wunlock(ctx)

	existing, ok := c.store.data.cart[item.ID]
	if !ok || existing.UserID != item.UserID {
		return repository.ErrCartItemNotFound
	}
	if !domain.ValidCartQuantity(item.Quantity) {
		return domain.ErrInvalidQuantity
	}
	for id, other := range c.store.data.cart {
		if id != item.ID && sameLine(other, *item) {
			return domain.NewConflictError("an identical cart line already exists")
		}
	}

	existing.Quantity = item.Quantity
	existing.SelectedOptions = item.SelectedOptions.Clone()
	existing.UpdatedAt = item.UpdatedAt
	c.store.data.cart[item.ID] = existing
	return nil
}

func (c *cart) Delete(ctx context.Context, userID, id uuid.UUID) error {
	c.store.wlock(ctx)
	defer c.store.wunlock(ctx)

	item, ok := c.store.data.cart[id]
	if !ok || item.UserID != userID {
		return repository.ErrCartItemNotFound
	}
	delete(c.store.data.cart, id)
	return nil
}

func (c *cart) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	c.store.wlock(ctx)
	defer c.store.wunlock(ctx)

	var n int64
	for id, item := range c.store.data.cart {
		if item.UserID == userID {
			delete(c.store.data.cart, id)
			n++
		}
	}
	return n, nil
}
