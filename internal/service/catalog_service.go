package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice  = domain.NewValidationError("price must be greater than zero")
	ErrInvalidStock  = domain.NewValidationError("stock quantity cannot be negative")
	ErrTitleRequired = domain.NewValidationError("title is required")
)

// Viewer is the caller on whose behalf a read runs. The zero value is an
// anonymous visitor.
type Viewer struct {
	UserID uuid.UUID
	Role   domain.Role
}

func (v Viewer) IsAdmin() bool {
	return v.Role == domain.RoleAdmin
}

// ProductInput describes a new product
type ProductInput struct {
	CategoryID  uuid.UUID
	Title       string
	Description string
	Image       string
	Price       decimal.Decimal
	Options     domain.Options
	Stock       int
	Active      *bool
}

// ProductPatch is a partial product update; nil fields keep their value
type ProductPatch struct {
	CategoryID  *uuid.UUID
	Title       *string
	Description *string
	Image       *string
	Price       *decimal.Decimal
	Options     *domain.Options
	Stock       *int
	Active      *bool
}

// CatalogService defines the interface for catalog business logic
type CatalogService interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	// ListProducts shows inactive products to admins only.
	ListProducts(ctx context.Context, viewer Viewer, filter domain.ProductFilter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, viewer Viewer, id uuid.UUID) (*domain.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type catalogService struct {
	categoryRepo repository.CategoryRepository
	productRepo  repository.ProductRepository
	txManager    repository.TxManager
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	categoryRepo repository.CategoryRepository,
	productRepo repository.ProductRepository,
	txManager repository.TxManager,
) CatalogService {
	return &catalogService{
		categoryRepo: categoryRepo,
		productRepo:  productRepo,
		txManager:    txManager,
	}
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx)
}

func (s *catalogService) ListProducts(ctx context.Context, viewer Viewer, filter domain.ProductFilter) ([]*domain.Product, error) {
	if !viewer.IsAdmin() {
		active := true
		filter.Active = &active
	}
	return s.productRepo.List(ctx, filter)
}

func (s *catalogService) GetProduct(ctx context.Context, viewer Viewer, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Hidden products do not exist for customers.
	if !product.Active && !viewer.IsAdmin() {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func validateProduct(p *domain.Product) error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrTitleRequired
	}
	if !p.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if p.Stock < 0 {
		return ErrInvalidStock
	}
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		CategoryID:  input.CategoryID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Image:       input.Image,
		Price:       input.Price.Round(2),
		Options:     input.Options,
		Stock:       input.Stock,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.Active != nil {
		product.Active = *input.Active
	}

	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if _, err := s.categoryRepo.FindByID(ctx, product.CategoryID); err != nil {
		return nil, err
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*domain.Product, error) {
	var product *domain.Product
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		// Update writes every column, so the row stays locked until commit
		// to keep concurrent stock decrements.
		locked, err := s.productRepo.LockForUpdate(ctx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return repository.ErrProductNotFound
		}
		product = locked[0]

		if patch.CategoryID != nil && *patch.CategoryID != product.CategoryID {
			if _, err := s.categoryRepo.FindByID(ctx, *patch.CategoryID); err != nil {
				return err
			}
			product.CategoryID = *patch.CategoryID
		}
		if patch.Title != nil {
			product.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			product.Description = *patch.Description
		}
		if patch.Image != nil {
			product.Image = *patch.Image
		}
		if patch.Price != nil {
			product.Price = patch.Price.Round(2)
		}
		if patch.Options != nil {
			product.Options = *patch.Options
		}
		if patch.Stock != nil {
			product.Stock = *patch.Stock
		}
		if patch.Active != nil {
			product.Active = *patch.Active
		}

		if err := validateProduct(product); err != nil {
			return err
		}

		product.UpdatedAt = time.Now().UTC()
		return s.productRepo.Update(ctx, product)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) || errors.Is(err, repository.ErrProductInOrders) {
			return err
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}
