package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxCartQuantity caps a single cart line, merged quantities included.
const MaxCartQuantity = 999

// ValidCartQuantity reports whether q fits a cart line.
func ValidCartQuantity(q int) bool {
	return q >= 1 && q <= MaxCartQuantity
}

// CartItem is one cart line: a product, the chosen options and a quantity
type CartItem struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	ProductID       uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity        int             `json:"quantity" db:"quantity"`
	SelectedOptions SelectedOptions `json:"selected_options" db:"selected_options"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// CartLine is a cart item joined with the live product it points at.
type CartLine struct {
	CartItem
	Product   *Product        `json:"product"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// CartSummary is a user's cart priced at current catalog prices.
type CartSummary struct {
	Items         []CartLine      `json:"items"`
	TotalItems    int             `json:"total_items"`
	TotalQuantity int             `json:"total_quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

// NewCartSummary prices lines with their products' current price.
func NewCartSummary(lines []CartLine) *CartSummary {
	summary := &CartSummary{Items: make([]CartLine, 0, len(lines)), Subtotal: decimal.Zero}
	for _, line := range lines {
		if line.Product == nil {
			continue
		}
		line.LineTotal = line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		summary.Subtotal = summary.Subtotal.Add(line.LineTotal)
		summary.TotalQuantity += line.Quantity
		summary.Items = append(summary.Items, line)
	}
	summary.TotalItems = len(summary.Items)
	summary.Subtotal = summary.Subtotal.Round(2)
	return summary
}
