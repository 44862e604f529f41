package reconciler

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrProductNotFound is a referenced product that does not exist.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	// ErrLineNotFound covers both a missing cart line and one owned by
	// somebody else; callers cannot tell the two apart.
	ErrLineNotFound = fmt.Errorf("cart item %w", ErrNotFound)

	ErrInvalidQuantity = fmt.Errorf("quantity must be at least 1: %w", ErrInvalidArgument)
)

// InsufficientStockError reports the stock a rejected request ran into.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
