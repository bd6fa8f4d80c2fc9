package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCartItemNotFound = domain.NewNotFoundError("cart item not found")
)

// CartRepository defines the interface for cart data access. Every lookup is
// scoped to the owning user.
type CartRepository interface {
	// ListByUser returns the user's lines joined with live product data, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.CartLine, error)
	// ListForUpdate locks the user's lines, oldest first. Must run inside a transaction.
	ListForUpdate(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error)
	FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.CartItem, error)
	FindLine(ctx context.Context, userID, productID uuid.UUID, options domain.SelectedOptions) (*domain.CartItem, error)
	// AddOrMerge inserts the line, or adds its quantity to the existing line
	// with the same product and options. item is updated with the stored row.
	AddOrMerge(ctx context.Context, item *domain.CartItem) error
	Update(ctx context.Context, item *domain.CartItem) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

const cartColumns = `id, user_id, product_id, quantity, selected_options, created_at, updated_at`

func scanCartItem(row rowScanner) (*domain.CartItem, error) {
	item := &domain.CartItem{}
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.Quantity,
		&item.SelectedOptions,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *cartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.CartLine, error) {
	query := `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.selected_options, c.created_at, c.updated_at,
		       p.id, p.category_id, p.title, p.description, p.image, p.base_price, p.options,
		       p.stock_quantity, p.is_active, p.created_at, p.updated_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC, c.id ASC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		var line domain.CartLine
		product := &domain.Product{}
		err := rows.Scan(
			&line.ID,
			&line.UserID,
			&line.ProductID,
			&line.Quantity,
			&line.SelectedOptions,
			&line.CreatedAt,
			&line.UpdatedAt,
			&product.ID,
			&product.CategoryID,
			&product.Title,
			&product.Description,
			&product.Image,
			&product.Price,
			&product.Options,
			&product.Stock,
			&product.Active,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		line.Product = product
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return lines, nil
}

func (r *cartRepository) ListForUpdate(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	query := `
		SELECT ` + cartColumns + `
		FROM cart_items
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
		FOR UPDATE
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart items: %w", err)
	}
	defer rows.Close()

	items := []*domain.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

func (r *cartRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.CartItem, error) {
	query := `SELECT ` + cartColumns + ` FROM cart_items WHERE id = $1 AND user_id = $2`

	item, err := scanCartItem(conn(ctx, r.db).QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}

	return item, nil
}

func (r *cartRepository) FindLine(ctx context.Context, userID, productID uuid.UUID, options domain.SelectedOptions) (*domain.CartItem, error) {
	query := `
		SELECT ` + cartColumns + `
		FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND selected_options = $3::jsonb
	`

	item, err := scanCartItem(conn(ctx, r.db).QueryRowContext(ctx, query, userID, productID, options))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart line: %w", err)
	}

	return item, nil
}

func (r *cartRepository) AddOrMerge(ctx context.Context, item *domain.CartItem) error {
	query := `
		INSERT INTO cart_items (id, user_id, product_id, quantity, selected_options, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT cart_items_line_key
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		RETURNING id, quantity, created_at, updated_at
	`

	err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		item.ID,
		item.UserID,
		item.ProductID,
		item.Quantity,
		item.SelectedOptions,
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&item.ID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err, "fk_cart_items_product") {
			return ErrProductNotFound
		}
		if isCheckViolation(err, "cart_items_quantity_check") {
			return domain.ErrInvalidQuantity
		}
		return fmt.Errorf("failed to add cart item: %w", err)
	}

	return nil
}

func (r *cartRepository) Update(ctx context.Context, item *domain.CartItem) error {
	query := `
		UPDATE cart_items
		SET quantity = $3, selected_options = $4, updated_at = $5
		WHERE id = $1 AND user_id = $2
	`

	result, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		item.ID,
		item.UserID,
		item.Quantity,
		item.SelectedOptions,
		item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "cart_items_line_key") {
			return domain.NewConflictError("an identical cart line already exists")
		}
		if isCheckViolation(err, "cart_items_quantity_check") {
			return domain.ErrInvalidQuantity
		}
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	return expectOneRow(result, ErrCartItemNotFound)
}

func (r *cartRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	return expectOneRow(result, ErrCartItemNotFound)
}

func (r *cartRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
