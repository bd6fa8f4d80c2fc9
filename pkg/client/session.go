// Package client is a Go client for the storefront API. A Session owns the
// caller's credentials, profile and a cached cart snapshot; nothing is
// global, so several sessions can live side by side.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotLoggedIn is returned by calls that need a bearer token before Login
var ErrNotLoggedIn = errors.New("client: not logged in")

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Kind maps the HTTP status back to the business error kind
func (e *APIError) Kind() domain.ErrorKind {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return domain.KindValidation
	case http.StatusUnauthorized:
		return domain.KindAuthentication
	case http.StatusForbidden:
		return domain.KindAuthorization
	case http.StatusNotFound:
		return domain.KindNotFound
	case http.StatusConflict:
		return domain.KindConflict
	default:
		return 0
	}
}

// IsKind reports whether err is an APIError of the given kind
func IsKind(err error, kind domain.ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind() == kind
}

type Option func(*Session)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.http = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Session is safe for concurrent use
type Session struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	profile      *domain.User
	cart         *domain.CartSummary
}

func NewSession(baseURL string, opts ...Option) *Session {
	s := &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRequest mirrors the body of POST /auth/register
type RegisterRequest struct {
	Email           string          `json:"email"`
	Nickname        string          `json:"nickname"`
	Password        string          `json:"password"`
	PasswordConfirm string          `json:"password_confirm"`
	Address         *domain.Address `json:"address,omitempty"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
}

func (s *Session) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	var user domain.User
	if err := s.do(ctx, http.MethodPost, "/auth/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges a username (email or nickname) and password for tokens
// and loads the profile.
func (s *Session) Login(ctx context.Context, username, password string) error {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := s.send(req, &tokens); err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.profile = nil
	s.cart = nil
	s.mu.Unlock()

	_, err = s.RefreshProfile(ctx)
	return err
}

// Logout revokes the refresh token and forgets all cached state
func (s *Session) Logout(ctx context.Context) error {
	s.mu.RLock()
	refresh := s.refreshToken
	s.mu.RUnlock()

	var err error
	if refresh != "" {
		err = s.do(ctx, http.MethodPost, "/auth/logout", map[string]string{"refresh_token": refresh}, nil)
	}

	s.mu.Lock()
	s.accessToken, s.refreshToken = "", ""
	s.profile, s.cart = nil, nil
	s.mu.Unlock()
	return err
}

func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != ""
}

// Profile returns the cached profile, nil before Login
func (s *Session) Profile() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

func (s *Session) RefreshProfile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := s.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.profile = &user
	s.mu.Unlock()
	return &user, nil
}

// Cart returns the cached cart snapshot. It is nil until RefreshCart runs
// and after InvalidateCart.
func (s *Session) Cart() *domain.CartSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart
}

// RefreshCart fetches the cart and replaces the cached snapshot
func (s *Session) RefreshCart(ctx context.Context) (*domain.CartSummary, error) {
	var summary domain.CartSummary
	if err := s.do(ctx, http.MethodGet, "/cart", nil, &summary); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cart = &summary
	s.mu.Unlock()
	return &summary, nil
}

// InvalidateCart drops the cached snapshot
func (s *Session) InvalidateCart() {
	s.mu.Lock()
	s.cart = nil
	s.mu.Unlock()
}

func (s *Session) Products(ctx context.Context, categoryID *uuid.UUID) ([]domain.Product, error) {
	path := "/products"
	if categoryID != nil {
		path += "?category_id=" + categoryID.String()
	}
	var products []domain.Product
	if err := s.do(ctx, http.MethodGet, path, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Session) Categories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := s.do(ctx, http.MethodGet, "/products/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// AddToCart adds a line and invalidates the cached cart
func (s *Session) AddToCart(ctx context.Context, productID uuid.UUID, quantity int, options domain.SelectedOptions) (*domain.CartItem, error) {
	body := map[string]interface{}{
		"product_id":       productID,
		"quantity":         quantity,
		"selected_options": options,
	}
	var item domain.CartItem
	err := s.do(ctx, http.MethodPost, "/cart/items", body, &item)
	s.InvalidateCart()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Session) RemoveFromCart(ctx context.Context, itemID uuid.UUID) error {
	err := s.do(ctx, http.MethodDelete, "/cart/items/"+itemID.String(), nil, nil)
	s.InvalidateCart()
	return err
}

// Checkout places an order from the server-side cart
func (s *Session) Checkout(ctx context.Context) (*domain.Order, error) {
	var order domain.Order
	err := s.do(ctx, http.MethodPost, "/orders/checkout", nil, &order)
	s.InvalidateCart()
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Session) Orders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := s.do(ctx, http.MethodGet, "/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Session) Order(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	if err := s.do(ctx, http.MethodGet, "/orders/"+id.String(), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Session) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	s.mu.RLock()
	token := s.accessToken
	s.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if needsAuth(path) {
		return ErrNotLoggedIn
	}

	return s.send(req, out)
}

func needsAuth(path string) bool {
	return strings.HasPrefix(path, "/cart") || strings.HasPrefix(path, "/orders") ||
		path == "/auth/me" || path == "/auth/logout"
}

func (s *Session) send(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		s.logger.Debug("API call failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
