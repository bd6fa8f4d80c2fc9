package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var hoodiesCategory = uuid.MustParse("6f1c2a3e-0d1b-4c55-9a51-1f0b8d7a0001")

// shop wires every service over one in-memory store
type shop struct {
	store   *memory.Store
	catalog CatalogService
	cart    CartService
	orders  OrderService
}

func newShop(policy domain.TransitionPolicy) *shop {
	store := memory.NewStore()
	return &shop{
		store:   store,
		catalog: NewCatalogService(store.Categories(), store.Products(), store),
		cart:    NewCartService(store.Cart(), store.Products(), store),
		orders: NewOrderService(store.Orders(), store.Cart(), store.Products(), store.Users(), store,
			domain.PricingPolicy{}, policy),
	}
}

// customer inserts a user directly; password hashing is irrelevant here
func (s *shop) customer(t *testing.T, nickname string) *domain.User {
	t.Helper()
	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.New(),
		Email:     nickname + "@x.com",
		Nickname:  nickname,
		Role:      domain.RoleCustomer,
		Address:   domain.Address{Street: "1 Main St", City: "Porto", PostalCode: "4000", Country: "PT"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.store.Users().Create(context.Background(), user))
	return user
}

func (s *shop) product(t *testing.T, title, price string, stock int) *domain.Product {
	t.Helper()
	var options domain.Options
	options.Set("size", domain.ListOption("S", "M", "L"))
	options.Set("color", domain.StringOption("black"))

	product, err := s.catalog.CreateProduct(context.Background(), ProductInput{
		CategoryID: hoodiesCategory,
		Title:      title,
		Image:      "images/" + title + ".jpg",
		Price:      decimal.RequireFromString(price),
		Options:    options,
		Stock:      stock,
	})
	require.NoError(t, err)
	return product
}

func (s *shop) add(t *testing.T, user *domain.User, product *domain.Product, qty int, size string) *domain.CartItem {
	t.Helper()
	var options domain.SelectedOptions
	if size != "" {
		options = domain.SelectedOptions{"size": size}
	}
	item, err := s.cart.AddItem(context.Background(), user.ID, CartItemInput{
		ProductID:       product.ID,
		Quantity:        qty,
		SelectedOptions: options,
	})
	require.NoError(t, err)
	return item
}

var admin = Viewer{UserID: uuid.New(), Role: domain.RoleAdmin}
