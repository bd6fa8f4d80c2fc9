// Package memory is an in-process backend for every repository interface.
// It serves DB_DRIVER=memory and the service and handler tests.
package memory

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// tables holds every row the store knows about. Rows are stored by value so
// a shallow map copy is a consistent snapshot.
type tables struct {
	users      map[uuid.UUID]domain.User
	tokens     map[string]domain.RefreshToken
	categories map[uuid.UUID]domain.Category
	products   map[uuid.UUID]domain.Product
	cart       map[uuid.UUID]domain.CartItem
	orders     map[uuid.UUID]domain.Order
}

func newTables() tables {
	return tables{
		users:      make(map[uuid.UUID]domain.User),
		tokens:     make(map[string]domain.RefreshToken),
		categories: make(map[uuid.UUID]domain.Category),
		products:   make(map[uuid.UUID]domain.Product),
		cart:       make(map[uuid.UUID]domain.CartItem),
		orders:     make(map[uuid.UUID]domain.Order),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t tables) snapshot() tables {
	return tables{
		users:      copyMap(t.users),
		tokens:     copyMap(t.tokens),
		categories: copyMap(t.categories),
		products:   copyMap(t.products),
		cart:       copyMap(t.cart),
		orders:     copyMap(t.orders),
	}
}

// Store is a single in-memory database shared by all repositories it hands out.
type Store struct {
	mu   sync.RWMutex
	data tables
}

// NewStore creates an empty store seeded with the default categories
func NewStore() *Store {
	s := &Store{data: newTables()}
	s.seedCategories()
	return s
}

// transaction-aware locking helpers
type txKey struct{}

func inTx(ctx context.Context) bool {
	b, ok := ctx.Value(txKey{}).(bool)
	return ok && b
}

func (s *Store) rlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.RLock()
	}
}

func (s *Store) runlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.RUnlock()
	}
}

func (s *Store) wlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Lock()
	}
}

func (s *Store) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Unlock()
	}
}

// WithinTx holds the store lock for the whole of fn and restores the
// pre-transaction snapshot when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.data.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.data = saved
		return err
	}
	return nil
}

var _ repository.TxManager = (*Store)(nil)

func (s *Store) Users() repository.UserRepository {
	return &users{store: s}
}

func (s *Store) RefreshTokens() repository.RefreshTokenRepository {
	return &refreshTokens{store: s}
}

func (s *Store) Categories() repository.CategoryRepository {
	return &categories{store: s}
}

func (s *Store) Products() repository.ProductRepository {
	return &products{store: s}
}

func (s *Store) Cart() repository.CartRepository {
	return &cart{store: s}
}

func (s *Store) Orders() repository.OrderRepository {
	return &orders{store: s}
}

// Same rows as the seed migration so both backends agree on category ids.
var defaultCategories = []struct {
	id    string
	name  string
	title string
}{
	{"6f1c2a3e-0d1b-4c55-9a51-1f0b8d7a0001", "hoodies", "Hoodies"},
	{"6f1c2a3e-0d1b-4c55-9a51-1f0b8d7a0002", "shirts", "Shirts"},
	{"6f1c2a3e-0d1b-4c55-9a51-1f0b8d7a0003", "joggers", "Joggers"},
	{"6f1c2a3e-0d1b-4c55-9a51-1f0b8d7a0004", "posters", "Posters"},
	{"6f1c2a3e-0d1b-4c55-9a51-1f0b8d7a0005", "accessories", "Accessories"},
}

func (s *Store) seedCategories() {
	now := time.Now().UTC()
	for i, c := range defaultCategories {
		id := uuid.MustParse(c.id)
		s.data.categories[id] = domain.Category{
			ID:           id,
			Name:         c.name,
			Title:        c.title,
			Image:        "images/categories/" + c.name + ".jpg",
			DisplayOrder: i + 1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
}
