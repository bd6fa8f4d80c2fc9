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
	ErrOrderNotFound = domain.NewNotFoundError("order not found")
)

// OrderRepository defines the interface for order data access. Orders are
// written once by checkout; UpdateStatus is the only mutation afterwards.
type OrderRepository interface {
	// Create inserts the order and its items. Callers run it inside a transaction.
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)
	// LockStatus reads the current status with a row lock. Must run inside a transaction.
	LockStatus(ctx context.Context, id uuid.UUID) (domain.OrderStatus, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, adminNotes *string) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, status, shipping_street, shipping_city, shipping_postal_code, shipping_country,
		subtotal, tax, shipping_cost, total, customer_notes, admin_notes, order_date, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.Shipping.Street,
		&order.Shipping.City,
		&order.Shipping.PostalCode,
		&order.Shipping.Country,
		&order.Subtotal,
		&order.Tax,
		&order.ShippingCost,
		&order.Total,
		&order.CustomerNotes,
		&order.AdminNotes,
		&order.OrderDate,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Items = []domain.OrderItem{}
	return order, nil
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	db := conn(ctx, r.db)

	query := `
		INSERT INTO orders (id, user_id, status, shipping_street, shipping_city, shipping_postal_code,
			shipping_country, subtotal, tax, shipping_cost, total, customer_notes, admin_notes, order_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := db.ExecContext(
		ctx,
		query,
		order.ID,
		order.UserID,
		order.Status,
		order.Shipping.Street,
		order.Shipping.City,
		order.Shipping.PostalCode,
		order.Shipping.Country,
		order.Subtotal,
		order.Tax,
		order.ShippingCost,
		order.Total,
		order.CustomerNotes,
		order.AdminNotes,
		order.OrderDate,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, product_title, product_image, quantity, price,
			selected_options, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, item := range order.Items {
		_, err := db.ExecContext(
			ctx,
			itemQuery,
			item.ID,
			order.ID,
			item.ProductID,
			item.ProductTitle,
			item.ProductImage,
			item.Quantity,
			item.Price,
			item.SelectedOptions,
			item.CreatedAt,
		)
		if err != nil {
			if isForeignKeyViolation(err, "fk_order_items_product") {
				return ErrProductNotFound
			}
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	if err := r.attachItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListByUser returns a customer's order history, newest first
func (r *orderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY order_date DESC, id ASC
	`
	return r.query(ctx, query, userID)
}

// List returns all orders for the admin dashboard, newest first
func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	whereClause := ""
	args := []interface{}{}
	if filter.Status != nil {
		whereClause = "WHERE status = $1"
		args = append(args, *filter.Status)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		%s
		ORDER BY order_date DESC, id ASC
	`, orderColumns, whereClause)

	return r.query(ctx, query, args...)
}

func (r *orderRepository) LockStatus(ctx context.Context, id uuid.UUID) (domain.OrderStatus, error) {
	var status domain.OrderStatus
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("failed to lock order: %w", err)
	}
	return status, nil
}

// UpdateStatus sets the status and, when adminNotes is non-nil, the admin note
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, adminNotes *string) error {
	query := `
		UPDATE orders
		SET status = $2, admin_notes = COALESCE($3, admin_notes), updated_at = NOW()
		WHERE id = $1
	`

	var notes sql.NullString
	if adminNotes != nil {
		notes = sql.NullString{String: *adminNotes, Valid: true}
	}

	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, status, notes)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return expectOneRow(result, ErrOrderNotFound)
}

func (r *orderRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all given orders with a single query
func (r *orderRepository) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	ids := make([]string, len(orders))
	for i, order := range orders {
		byID[order.ID] = order
		ids[i] = order.ID.String()
	}

	query := `
		SELECT id, order_id, product_id, product_title, product_image, quantity, price, selected_options, created_at
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY created_at ASC, id ASC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductTitle,
			&item.ProductImage,
			&item.Quantity,
			&item.Price,
			&item.SelectedOptions,
			&item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating order items: %w", err)
	}
	return nil
}
