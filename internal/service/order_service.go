package service

import (
	"context"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderService defines the interface for checkout and the order status workflow
type OrderService interface {
	// Checkout turns the user's cart into a Pending order. Stock checks,
	// order rows, stock decrements and cart removal commit together or not at all.
	Checkout(ctx context.Context, userID uuid.UUID) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	// GetUserOrder returns the order when viewer owns it or is an admin.
	// Anyone else gets ErrOrderNotFound.
	GetUserOrder(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*domain.Order, error)
	ListAllOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	// UpdateStatus is the only operation that changes an order's status.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus, adminNotes *string) (*domain.Order, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	txManager   repository.TxManager
	pricing     domain.PricingPolicy
	transitions domain.TransitionPolicy
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	txManager repository.TxManager,
	pricing domain.PricingPolicy,
	transitions domain.TransitionPolicy,
) OrderService {
	if transitions == nil {
		transitions = domain.PermissivePolicy{}
	}
	return &orderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		txManager:   txManager,
		pricing:     pricing,
		transitions: transitions,
	}
}

func (s *orderService) Checkout(ctx context.Context, userID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		// Locking the cart first makes a second checkout by the same user
		// wait, then find the cart empty.
		lines, err := s.cartRepo.ListForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}

		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return err
		}

		requested := make(map[uuid.UUID]int)
		ids := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			if _, seen := requested[line.ProductID]; !seen {
				ids = append(ids, line.ProductID)
			}
			requested[line.ProductID] += line.Quantity
		}

		locked, err := s.productRepo.LockForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		products := make(map[uuid.UUID]*domain.Product, len(locked))
		for _, p := range locked {
			products[p.ID] = p
		}

		for _, id := range ids {
			product, ok := products[id]
			if !ok || !product.Active {
				title := id.String()
				if ok {
					title = product.Title
				}
				return domain.NewValidationError("'%s' is no longer available", title)
			}
			if requested[id] > product.Stock {
				return &domain.InsufficientStockError{
					ProductTitle: product.Title,
					Available:    product.Stock,
					Requested:    requested[id],
				}
			}
		}

		now := time.Now().UTC()
		order = &domain.Order{
			ID:        uuid.New(),
			UserID:    userID,
			Status:    domain.OrderStatusPending,
			Shipping:  user.Address,
			OrderDate: now,
			UpdatedAt: now,
			Items:     make([]domain.OrderItem, 0, len(lines)),
		}

		subtotal := decimal.Zero
		for _, line := range lines {
			product := products[line.ProductID]
			order.Items = append(order.Items, domain.OrderItem{
				ID:              uuid.New(),
				OrderID:         order.ID,
				ProductID:       product.ID,
				ProductTitle:    product.Title,
				ProductImage:    product.Image,
				Quantity:        line.Quantity,
				Price:           product.Price,
				SelectedOptions: line.SelectedOptions.Clone(),
				CreatedAt:       now,
			})
			subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		order.Subtotal = subtotal.Round(2)
		order.Tax, order.ShippingCost, order.Total = s.pricing.Quote(order.Subtotal)

		if err := s.orderRepo.Create(ctx, order); err != nil {
			return err
		}

		for _, id := range ids {
			if err := s.productRepo.DecrementStock(ctx, id, requested[id]); err != nil {
				return err
			}
		}

		_, err = s.cartRepo.DeleteByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) ListUserOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID)
}

func (s *orderService) GetUserOrder(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != viewer.UserID && !viewer.IsAdmin() {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListAllOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, domain.ErrUnknownOrderStatus
	}
	return s.orderRepo.List(ctx, filter)
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.orderRepo.FindByID(ctx, orderID)
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus, adminNotes *string) (*domain.Order, error) {
	if !status.Valid() {
		return nil, domain.ErrUnknownOrderStatus
	}

	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.orderRepo.LockStatus(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.transitions.CheckTransition(current, status); err != nil {
			return err
		}
		return s.orderRepo.UpdateStatus(ctx, orderID, status, adminNotes)
	})
	if err != nil {
		return nil, err
	}

	return s.orderRepo.FindByID(ctx, orderID)
}
