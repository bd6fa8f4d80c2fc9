package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	CategoryID  uuid.UUID       `json:"category_id" db:"category_id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Image       string          `json:"image" db:"image"`
	Price       decimal.Decimal `json:"base_price" db:"base_price"`
	Options     Options         `json:"options" db:"options"`
	Stock       int             `json:"stock_quantity" db:"stock_quantity"`
	Active      bool            `json:"is_active" db:"is_active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Category represents a product category
type Category struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Title        string    `json:"title" db:"title"`
	Image        string    `json:"image" db:"image"`
	DisplayOrder int       `json:"display_order" db:"display_order"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ProductFilter narrows a product listing. A nil field means "any".
type ProductFilter struct {
	CategoryID *uuid.UUID
	Active     *bool
}
