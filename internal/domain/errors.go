package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies business errors so the transport layer can map them
// to status codes without knowing every sentinel.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a business rule violation with a human readable message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewAuthenticationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthentication, Message: fmt.Sprintf(format, args...)}
}

func NewAuthorizationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of the first business error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return KindConflict, true
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind, true
	}
	return 0, false
}

var (
	ErrEmptyCart         = NewValidationError("cart is empty")
	ErrInvalidQuantity   = NewValidationError("quantity must be between 1 and %d", MaxCartQuantity)
	ErrInsufficientStock = NewConflictError("insufficient stock")
)

// InsufficientStockError names the product that could not cover the
// requested quantity at checkout.
type InsufficientStockError struct {
	ProductTitle string
	Available    int
	Requested    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for '%s': available %d, requested %d", e.ProductTitle, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
