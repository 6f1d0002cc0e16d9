package order

import (
	"errors"
	"fmt"
)

// ErrConflict marks a store-detected serialization conflict with a
// concurrent transaction. The store has already rolled back; retrying is
// safe and is left to the caller.
var ErrConflict = errors.New("transaction conflict")

// ErrTimeout marks a transaction that exceeded its time bound. Rollback has
// happened; the operation is not retried automatically.
var ErrTimeout = errors.New("transaction timed out")

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}
