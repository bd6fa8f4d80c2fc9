package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository/memory"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var hoodiesCategory = uuid.MustParse("6f1c2a3e-0d1b-4c55-9a51-1f0b8d7a0001")

// testAPI mounts every handler over one in-memory store
type testAPI struct {
	t      *testing.T
	router http.Handler
	store  *memory.Store
	users  service.UserService
}

func newTestAPI(t *testing.T, policy domain.TransitionPolicy) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()

	users := service.NewUserService(store.Users(), store.RefreshTokens(), store, service.TokenConfig{Secret: "transport-test"})
	catalog := service.NewCatalogService(store.Categories(), store.Products(), store)
	carts := service.NewCartService(store.Cart(), store.Products(), store)
	orders := service.NewOrderService(store.Orders(), store.Cart(), store.Products(), store.Users(), store,
		domain.PricingPolicy{}, policy)

	guards := Guards{
		Authenticated: middleware.AuthMiddleware(users, logger),
		Optional:      middleware.OptionalAuth(users, logger),
		Admin:         middleware.RequireAdmin(logger),
	}

	r := chi.NewRouter()
	NewUserHandler(users, logger).RegisterRoutes(r, guards)
	NewCatalogHandler(catalog, logger).RegisterRoutes(r, guards)
	NewCartHandler(carts, logger).RegisterRoutes(r, guards)
	NewOrderHandler(orders, logger).RegisterRoutes(r, guards)

	return &testAPI{t: t, router: r, store: store, users: users}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) loginForm(username, password string) *httptest.ResponseRecorder {
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// signup registers a customer and returns an access token
func (a *testAPI) signup(nickname string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/auth/register", "", map[string]interface{}{
		"email":            nickname + "@example.com",
		"nickname":         nickname,
		"password":         "password123",
		"password_confirm": "password123",
		"address":          map[string]string{"street_address": "1 Main St", "city": "Porto", "postal_code": "4000", "country": "PT"},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	return a.token(nickname, "password123")
}

func (a *testAPI) token(username, password string) string {
	a.t.Helper()
	w := a.loginForm(username, password)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var tokens service.TokenPair
	decode(a.t, w, &tokens)
	return tokens.AccessToken
}

func (a *testAPI) adminToken() string {
	a.t.Helper()
	_, _, err := a.users.EnsureAdmin(context.Background(), "admin@example.com", "admin", "admin-password")
	require.NoError(a.t, err)
	return a.token("admin", "admin-password")
}

// createProduct posts a product as admin and returns its id
func (a *testAPI) createProduct(adminToken, title, price string, stock int) uuid.UUID {
	a.t.Helper()
	w := a.do(http.MethodPost, "/products", adminToken, map[string]interface{}{
		"category_id":    hoodiesCategory,
		"title":          title,
		"base_price":     price,
		"stock_quantity": stock,
		"options":        json.RawMessage(`{"size":["S","M","L"],"color":"black"}`),
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var product struct {
		ID uuid.UUID `json:"id"`
	}
	decode(a.t, w, &product)
	return product.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var response middleware.ErrorResponse
	decode(t, w, &response)
	return response.Error.Message
}
