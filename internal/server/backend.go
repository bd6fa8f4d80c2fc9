package server

import (
	"context"

	"storefront/internal/database"
	"storefront/internal/repository"
	"storefront/internal/repository/memory"
)

// Backend is one storage implementation of every repository plus the
// transaction manager that spans them.
type Backend struct {
	Users         repository.UserRepository
	RefreshTokens repository.RefreshTokenRepository
	Categories    repository.CategoryRepository
	Products      repository.ProductRepository
	Cart          repository.CartRepository
	Orders        repository.OrderRepository
	Tx            repository.TxManager

	Health func(ctx context.Context) map[string]string
	Close  func() error
}

// PostgresBackend builds the SQL repositories over an open pool
func PostgresBackend(db database.Service) Backend {
	pool := db.DB()
	return Backend{
		Users:         repository.NewUserRepository(pool),
		RefreshTokens: repository.NewRefreshTokenRepository(pool),
		Categories:    repository.NewCategoryRepository(pool),
		Products:      repository.NewProductRepository(pool),
		Cart:          repository.NewCartRepository(pool),
		Orders:        repository.NewOrderRepository(pool),
		Tx:            repository.NewTxManager(pool),
		Health:        db.Health,
		Close:         db.Close,
	}
}

// MemoryBackend keeps everything in process; state is lost on restart
func MemoryBackend(store *memory.Store) Backend {
	return Backend{
		Users:         store.Users(),
		RefreshTokens: store.RefreshTokens(),
		Categories:    store.Categories(),
		Products:      store.Products(),
		Cart:          store.Cart(),
		Orders:        store.Orders(),
		Tx:            store,
		Health: func(ctx context.Context) map[string]string {
			return map[string]string{"status": "up", "driver": "memory"}
		},
		Close: func() error { return nil },
	}
}
