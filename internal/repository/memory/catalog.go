package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

type categories struct{ store *Store }

var _ repository.CategoryRepository = (*categories)(nil)

func (c *categories) List(ctx context.Context) ([]*domain.Category, error) {
	c.store.rlock(ctx)
	defer c.store.runlock(ctx)

	out := make([]*domain.Category, 0, len(c.store.data.categories))
	for _, category := range c.store.data.categories {
		cp := category
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (c *categories) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c.store.rlock(ctx)
	defer c.store.runlock(ctx)

	category, ok := c.store.data.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return &category, nil
}

type products struct{ store *Store }

var _ repository.ProductRepository = (*products)(nil)

// copyProduct detaches the option bag from the stored row
func copyProduct(p domain.Product) *domain.Product {
	p.Options = p.Options.Clone()
	return &p
}

func (p *products) Create(ctx context.Context, product *domain.Product) error {
	p.store.wlock(ctx)
	defer p.store.wunlock(ctx)

	if _, ok := p.store.data.categories[product.CategoryID]; !ok {
		return repository.ErrCategoryNotFound
	}
	p.store.data.products[product.ID] = *copyProduct(*product)
	return nil
}

func (p *products) Update(ctx context.Context, product *domain.Product) error {
	p.store.wlock(ctx)
	defer p.store.wunlock(ctx)

	existing, ok := p.store.data.products[product.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	if _, ok := p.store.data.categories[product.CategoryID]; !ok {
		return repository.ErrCategoryNotFound
	}

	updated := *copyProduct(*product)
	updated.CreatedAt = existing.CreatedAt
	p.store.data.products[product.ID] = updated
	return nil
}

// Delete cascades to cart lines and refuses products with order history
func (p *products) Delete(ctx context.Context, id uuid.UUID) error {
	p.store.wlock(ctx)
	defer p.store.wunlock(ctx)

	if _, ok := p.store.data.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	for _, order := range p.store.data.orders {
		for _, item := range order.Items {
			if item.ProductID == id {
				return repository.ErrProductInOrders
			}
		}
	}

	for itemID, item := range p.store.data.cart {
		if item.ProductID == id {
			delete(p.store.data.cart, itemID)
		}
	}
	delete(p.store.data.products, id)
	return nil
}

func (p *products) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p.store.rlock(ctx)
	defer p.store.runlock(ctx)

	product, ok := p.store.data.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return copyProduct(product), nil
}

func (p *products) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	p.store.rlock(ctx)
	defer p.store.runlock(ctx)

	out := make([]*domain.Product, 0)
	for _, product := range p.store.data.products {
		if filter.CategoryID != nil && product.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Active != nil && product.Active != *filter.Active {
			continue
		}
		out = append(out, copyProduct(product))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

// LockForUpdate relies on the transaction holding the store lock
func (p *products) LockForUpdate(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error) {
	p.store.rlock(ctx)
	defer p.store.runlock(ctx)

	out := make([]*domain.Product, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if product, ok := p.store.data.products[id]; ok {
			out = append(out, copyProduct(product))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

func (p *products) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	p.store.wlock(ctx)
	defer p.store.wunlock(ctx)

	product, ok := p.store.data.products[id]
	if !ok || product.Stock < quantity {
		return fmt.Errorf("product %s: %w", id, domain.ErrInsufficientStock)
	}
	product.Stock -= quantity
	product.UpdatedAt = time.Now().UTC()
	p.store.data.products[id] = product
	return nil
}
