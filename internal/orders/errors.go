package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart     = errors.New("empty cart")
	ErrMissingBuyer  = errors.New("user id and email are required")
	ErrOrderNotFound = errors.New("order not found")
)

// InsufficientStockError names the first product whose tracked stock cannot
// cover the requested quantity. No order is created when it is returned.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}
