package server

import (
	"fmt"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config      *config.Config
	logger      *zap.Logger
	backend     Backend
	redisClient *redis.Client
	Users       service.UserService
}

// Services are the business services shared by every handler
type Services struct {
	Users   service.UserService
	Catalog service.CatalogService
	Cart    service.CartService
	Orders  service.OrderService
}

// NewServices wires the services over backend using the checkout settings of cfg
func NewServices(cfg *config.Config, backend Backend) Services {
	pricing := domain.PricingPolicy{
		TaxRate:               cfg.Checkout.TaxRate,
		ShippingCost:          cfg.Checkout.ShippingCost,
		FreeShippingThreshold: cfg.Checkout.FreeShippingThreshold,
	}

	var transitions domain.TransitionPolicy = domain.PermissivePolicy{}
	if cfg.Checkout.StrictTransitions {
		transitions = domain.StrictPolicy{}
	}

	return Services{
		Users: service.NewUserService(backend.Users, backend.RefreshTokens, backend.Tx, service.TokenConfig{
			Secret:        cfg.JWT.Secret,
			AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
			RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
		}),
		Catalog: service.NewCatalogService(backend.Categories, backend.Products, backend.Tx),
		Cart:    service.NewCartService(backend.Cart, backend.Products, backend.Tx),
		Orders: service.NewOrderService(backend.Orders, backend.Cart, backend.Products, backend.Users, backend.Tx,
			pricing, transitions),
	}
}

// NewRouter mounts every route. redisClient may be nil, which disables rate
// limiting on the auth endpoints.
func NewRouter(cfg *config.Config, logger *zap.Logger, services Services, backend Backend, redisClient redis.Cmdable) http.Handler {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack(logger) {
		router.Use(mw)
	}
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := backend.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, map[string]interface{}{
			"status":   health["status"],
			"database": health,
		})
	})

	guards := transport.Guards{
		Authenticated: custommiddleware.AuthMiddleware(services.Users, logger),
		Optional:      custommiddleware.OptionalAuth(services.Users, logger),
		Admin:         custommiddleware.RequireAdmin(logger),
	}
	if redisClient != nil {
		guards.AuthRateLimit = custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit:auth",
		}, logger)
	}

	transport.NewUserHandler(services.Users, logger).RegisterRoutes(router, guards)
	transport.NewCatalogHandler(services.Catalog, logger).RegisterRoutes(router, guards)
	transport.NewCartHandler(services.Cart, logger).RegisterRoutes(router, guards)
	transport.NewOrderHandler(services.Orders, logger).RegisterRoutes(router, guards)

	return router
}

func NewServer(cfg *config.Config, logger *zap.Logger, backend Backend, redisClient *redis.Client) *Server {
	services := NewServices(cfg, backend)

	// a typed nil would slip past the nil check in NewRouter
	var limiter redis.Cmdable
	if redisClient != nil {
		limiter = redisClient
	}

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      NewRouter(cfg, logger, services, backend, limiter),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:      cfg,
		logger:      logger,
		backend:     backend,
		redisClient: redisClient,
		Users:       services.Users,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if err := s.backend.Close(); err != nil {
		s.logger.Error("Failed to close database connection", zap.Error(err))
	}

	s.logger.Sync()
	return nil
}
