package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "Pending"
	OrderStatusConfirmed       OrderStatus = "Confirmed"
	OrderStatusPaymentPending  OrderStatus = "Payment Pending"
	OrderStatusPaymentReceived OrderStatus = "Payment Received"
	OrderStatusDelivered       OrderStatus = "Delivered"
	OrderStatusCanceled        OrderStatus = "Canceled"
)

// happyPath lists the non-cancel states in their intended order.
var happyPath = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPaymentPending,
	OrderStatusPaymentReceived,
	OrderStatusDelivered,
}

var (
	ErrUnknownOrderStatus = NewValidationError("unknown order status")
	ErrTerminalOrder      = NewConflictError("order is in a terminal state and cannot change status")
	ErrInvalidTransition  = NewConflictError("order status transition is not allowed")
)

// OrderStatuses returns every status in lifecycle order, Canceled last.
func OrderStatuses() []OrderStatus {
	return append(append([]OrderStatus{}, happyPath...), OrderStatusCanceled)
}

// ParseOrderStatus validates a status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.Valid() {
		return "", ErrUnknownOrderStatus
	}
	return status, nil
}

func (s OrderStatus) Valid() bool {
	if s == OrderStatusCanceled {
		return true
	}
	return s.position() >= 0
}

// Terminal reports whether no further status change is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

func (s OrderStatus) position() int {
	for i, st := range happyPath {
		if st == s {
			return i
		}
	}
	return -1
}

// TransitionPolicy decides whether an admin may move an order between states.
type TransitionPolicy interface {
	CheckTransition(from, to OrderStatus) error
}

// PermissivePolicy lets admins jump to any state, but terminal states are final.
// Re-setting the current status is always allowed so notes can be edited.
type PermissivePolicy struct{}

func (PermissivePolicy) CheckTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return ErrUnknownOrderStatus
	}
	if from == to {
		return nil
	}
	if from.Terminal() {
		return ErrTerminalOrder
	}
	return nil
}

// StrictPolicy only allows one step forward along the happy path, or
// cancellation from any non-terminal state.
type StrictPolicy struct{}

func (StrictPolicy) CheckTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return ErrUnknownOrderStatus
	}
	if from == to {
		return nil
	}
	if from.Terminal() {
		return ErrTerminalOrder
	}
	if to == OrderStatusCanceled {
		return nil
	}
	if to.position() == from.position()+1 {
		return nil
	}
	return ErrInvalidTransition
}

// Order is an immutable purchase snapshot; only Status and AdminNotes change
// after creation.
type Order struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	Status        OrderStatus     `json:"status" db:"status"`
	Shipping      Address         `json:"shipping"`
	Subtotal      decimal.Decimal `json:"subtotal" db:"subtotal"`
	Tax           decimal.Decimal `json:"tax" db:"tax"`
	ShippingCost  decimal.Decimal `json:"shipping_cost" db:"shipping_cost"`
	Total         decimal.Decimal `json:"total" db:"total"`
	CustomerNotes string          `json:"customer_notes" db:"customer_notes"`
	AdminNotes    string          `json:"admin_notes" db:"admin_notes"`
	OrderDate     time.Time       `json:"order_date" db:"order_date"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
	Items         []OrderItem     `json:"items"`
}

// OrderItem copies product data at purchase time so later catalog edits never
// change order history.
type OrderItem struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	OrderID         uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID       uuid.UUID       `json:"product_id" db:"product_id"`
	ProductTitle    string          `json:"product_title" db:"product_title"`
	ProductImage    string          `json:"product_image" db:"product_image"`
	Quantity        int             `json:"quantity" db:"quantity"`
	Price           decimal.Decimal `json:"price" db:"price"`
	SelectedOptions SelectedOptions `json:"selected_options" db:"selected_options"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// OrderFilter narrows the admin order listing.
type OrderFilter struct {
	Status *OrderStatus
}

// PricingPolicy computes the charges added on top of an order's subtotal.
type PricingPolicy struct {
	TaxRate               decimal.Decimal
	ShippingCost          decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// Quote returns tax, shipping and total for a subtotal, rounded to cents.
func (p PricingPolicy) Quote(subtotal decimal.Decimal) (tax, shipping, total decimal.Decimal) {
	tax = subtotal.Mul(p.TaxRate).Round(2)
	shipping = p.ShippingCost.Round(2)
	if p.FreeShippingThreshold.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	total = subtotal.Add(tax).Add(shipping).Round(2)
	return tax, shipping, total
}
