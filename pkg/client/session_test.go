package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/repository/memory"
	"storefront/internal/server"
	"storefront/internal/service"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var hoodiesCategory = uuid.MustParse("6f1c2a3e-0d1b-4c55-9a51-1f0b8d7a0001")

type fixture struct {
	url      string
	services server.Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		JWT:    config.JWTConfig{Secret: "client-test", AccessExpiry: 30, RefreshExpiry: 7},
	}
	backend := server.MemoryBackend(memory.NewStore())
	services := server.NewServices(cfg, backend)

	ts := httptest.NewServer(server.NewRouter(cfg, zap.NewNop(), services, backend, nil))
	t.Cleanup(ts.Close)
	return &fixture{url: ts.URL, services: services}
}

func (f *fixture) product(t *testing.T, price string, stock int) *domain.Product {
	t.Helper()
	product, err := f.services.Catalog.CreateProduct(context.Background(), service.ProductInput{
		CategoryID: hoodiesCategory,
		Title:      "Hoodie",
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
	})
	require.NoError(t, err)
	return product
}

func (f *fixture) loggedIn(t *testing.T, nickname string) *Session {
	t.Helper()
	ctx := context.Background()
	s := NewSession(f.url)
	_, err := s.Register(ctx, RegisterRequest{
		Email:           nickname + "@x.com",
		Nickname:        nickname,
		Password:        "secret123",
		PasswordConfirm: "secret123",
	})
	require.NoError(t, err)
	require.NoError(t, s.Login(ctx, nickname+"@x.com", "secret123"))
	return s
}

func TestSession_CartSnapshotLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.loggedIn(t, "ann")
	product := f.product(t, "9.99", 5)

	require.NotNil(t, s.Profile())
	assert.Equal(t, "ann", s.Profile().Nickname)
	assert.Nil(t, s.Cart())

	_, err := s.AddToCart(ctx, product.ID, 2, nil)
	require.NoError(t, err)
	assert.Nil(t, s.Cart(), "adding must invalidate the snapshot")

	summary, err := s.RefreshCart(ctx)
	require.NoError(t, err)
	assert.Same(t, summary, s.Cart())
	assert.Equal(t, "19.98", summary.Subtotal.StringFixed(2))

	s.InvalidateCart()
	assert.Nil(t, s.Cart())

	_, err = s.RefreshCart(ctx)
	require.NoError(t, err)
	order, err := s.Checkout(ctx)
	require.NoError(t, err)
	assert.Nil(t, s.Cart())
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	orders, err := s.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	require.NoError(t, s.Logout(ctx))
	assert.False(t, s.LoggedIn())
	assert.Nil(t, s.Profile())
}

func TestSession_RemoveFromCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "4.00", 3)

	s := NewSession(f.url+"/", WithHTTPClient(&http.Client{Timeout: 5 * time.Second}), WithLogger(zap.NewNop()))
	_, err := s.Register(ctx, RegisterRequest{Email: "bo@x.com", Nickname: "bo", Password: "secret123", PasswordConfirm: "secret123"})
	require.NoError(t, err)
	require.NoError(t, s.Login(ctx, "bo", "secret123"))

	item, err := s.AddToCart(ctx, product.ID, 1, nil)
	require.NoError(t, err)
	_, err = s.RefreshCart(ctx)
	require.NoError(t, err)

	require.NoError(t, s.RemoveFromCart(ctx, item.ID))
	assert.Nil(t, s.Cart())

	summary, err := s.RefreshCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Items)

	err = s.RemoveFromCart(ctx, item.ID)
	assert.True(t, IsKind(err, domain.KindNotFound))
}

func TestSession_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	anonymous := NewSession(f.url)
	_, err := anonymous.RefreshCart(ctx)
	assert.True(t, errors.Is(err, ErrNotLoggedIn))

	err = anonymous.Login(ctx, "nobody", "whatever")
	assert.True(t, IsKind(err, domain.KindAuthentication))

	s := f.loggedIn(t, "ann")
	_, err = s.Checkout(ctx)
	require.Error(t, err)
	assert.True(t, IsKind(err, domain.KindValidation))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "cart is empty", apiErr.Message)

	_, err = s.Order(ctx, uuid.New())
	assert.True(t, IsKind(err, domain.KindNotFound))
}

func TestSession_BrowsesCatalogAnonymously(t *testing.T) {
	f := newFixture(t)
	f.product(t, "5.00", 1)
	ctx := context.Background()
	s := NewSession(f.url)

	categories, err := s.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 5)

	products, err := s.Products(ctx, &hoodiesCategory)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

// Property: any requested interval ends up inside the polling bounds
func TestProperty_PollIntervalIsClamped(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("clamped interval stays within 15s..30s", prop.ForAll(
		func(seconds int64) bool {
			d := ClampPollInterval(time.Duration(seconds) * time.Second)
			if d < MinPollInterval || d > MaxPollInterval {
				t.Logf("FAIL: %ds clamped to %s", seconds, d)
				return false
			}
			if seconds >= 15 && seconds <= 30 && d != time.Duration(seconds)*time.Second {
				t.Logf("FAIL: in-range %ds changed to %s", seconds, d)
				return false
			}
			return true
		},
		gen.Int64Range(-60, 600),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestWatchOrder_DefaultInterval(t *testing.T) {
	s := NewSession("http://unused")
	assert.Equal(t, DefaultPollInterval, s.WatchOrder(uuid.New(), 0).Interval())
	assert.Equal(t, MinPollInterval, s.WatchOrder(uuid.New(), time.Second).Interval())
}

func TestWatchOrder_ReportsChangesUntilTerminal(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := f.loggedIn(t, "ann")
	product := f.product(t, "9.99", 5)
	_, err := s.AddToCart(ctx, product.ID, 1, nil)
	require.NoError(t, err)
	order, err := s.Checkout(ctx)
	require.NoError(t, err)

	tick := make(chan time.Time, 3)
	seen := make(chan domain.OrderStatus, 8)
	done := make(chan error, 1)

	watcher := s.WatchOrder(order.ID, 0)
	go func() {
		done <- watcher.run(ctx, tick, func(o *domain.Order) { seen <- o.Status })
	}()

	assert.Equal(t, domain.OrderStatusPending, <-seen)

	// an unchanged status is not reported again
	tick <- time.Now()

	_, err = f.services.Orders.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed, nil)
	require.NoError(t, err)
	tick <- time.Now()
	assert.Equal(t, domain.OrderStatusConfirmed, <-seen)

	_, err = f.services.Orders.UpdateStatus(ctx, order.ID, domain.OrderStatusDelivered, nil)
	require.NoError(t, err)
	tick <- time.Now()
	assert.Equal(t, domain.OrderStatusDelivered, <-seen)

	require.NoError(t, <-done)
	assert.Empty(t, seen)
}

func TestWatchOrder_StopsWithContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	s := f.loggedIn(t, "ann")
	product := f.product(t, "9.99", 5)
	_, err := s.AddToCart(ctx, product.ID, 1, nil)
	require.NoError(t, err)
	order, err := s.Checkout(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- s.WatchOrder(order.ID, time.Hour).run(ctx, make(chan time.Time), func(*domain.Order) {})
	}()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
