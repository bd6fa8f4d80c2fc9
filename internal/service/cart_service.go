package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrProductUnavailable = domain.NewValidationError("product is not available for purchase")
)

// CartItemInput is a line a customer wants to add
type CartItemInput struct {
	ProductID       uuid.UUID
	Quantity        int
	SelectedOptions domain.SelectedOptions
}

// CartService defines the interface for cart business logic. Every operation
// is scoped to the calling user.
type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*domain.CartSummary, error)
	// AddItem merges into an existing line with the same product and options.
	AddItem(ctx context.Context, userID uuid.UUID, input CartItemInput) (*domain.CartItem, error)
	// UpdateItem changes quantity and, when options is non-nil, the chosen
	// options. A line whose new options match another line is folded into it.
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int, options *domain.SelectedOptions) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	ClearCart(ctx context.Context, userID uuid.UUID) (int64, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	txManager   repository.TxManager
}

// NewCartService creates a new instance of CartService
func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	txManager repository.TxManager,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		txManager:   txManager,
	}
}

func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.CartSummary, error) {
	lines, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.NewCartSummary(lines), nil
}

// checkSelection rejects a choice the product does not offer. Options the
// product does not declare are kept as free-form notes.
func checkSelection(product *domain.Product, selected domain.SelectedOptions) error {
	for name, choice := range selected {
		offered, ok := product.Options.Get(name)
		if !ok {
			continue
		}
		if !offered.Allows(choice) {
			return domain.NewValidationError("invalid choice %q for option %q", choice, name)
		}
	}
	return nil
}

func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, input CartItemInput) (*domain.CartItem, error) {
	if !domain.ValidCartQuantity(input.Quantity) {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.productRepo.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, ErrProductUnavailable
	}

	options := input.SelectedOptions.Clone()
	if err := checkSelection(product, options); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	item := &domain.CartItem{
		ID:              uuid.New(),
		UserID:          userID,
		ProductID:       product.ID,
		Quantity:        input.Quantity,
		SelectedOptions: options,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.cartRepo.FindLine(ctx, userID, product.ID, options)
		switch {
		case err == nil && !domain.ValidCartQuantity(existing.Quantity+item.Quantity):
			return domain.ErrInvalidQuantity
		case err != nil && !errors.Is(err, repository.ErrCartItemNotFound):
			return err
		}
		return s.cartRepo.AddOrMerge(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *cartService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int, options *domain.SelectedOptions) (*domain.CartItem, error) {
	if !domain.ValidCartQuantity(quantity) {
		return nil, domain.ErrInvalidQuantity
	}

	var result *domain.CartItem
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		item, err := s.cartRepo.FindByID(ctx, userID, itemID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		item.Quantity = quantity
		item.UpdatedAt = now

		if options != nil && !options.Equal(item.SelectedOptions) {
			product, err := s.productRepo.FindByID(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if err := checkSelection(product, *options); err != nil {
				return err
			}

			other, err := s.cartRepo.FindLine(ctx, userID, item.ProductID, *options)
			switch {
			case err == nil && other.ID != item.ID:
				if !domain.ValidCartQuantity(other.Quantity + quantity) {
					return domain.ErrInvalidQuantity
				}
				other.Quantity += quantity
				other.UpdatedAt = now
				if err := s.cartRepo.Delete(ctx, userID, item.ID); err != nil {
					return err
				}
				if err := s.cartRepo.Update(ctx, other); err != nil {
					return err
				}
				result = other
				return nil
			case err != nil && !errors.Is(err, repository.ErrCartItemNotFound):
				return err
			}
			item.SelectedOptions = options.Clone()
		}

		if err := s.cartRepo.Update(ctx, item); err != nil {
			return err
		}
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return s.cartRepo.Delete(ctx, userID, itemID)
}

func (s *cartService) ClearCart(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.cartRepo.DeleteByUser(ctx, userID)
}
