package order

import (
	"fmt"

	"github.com/google/uuid"
)

type ItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateRequest struct {
	UserID string        `json:"userId"`
	Items  []ItemRequest `json:"items"`
}

// Line is one merged line item. Requests naming the same product more than
// once are combined, so stock is checked and decremented once per product.
type Line struct {
	ProductID string
	Quantity  int
}

// Normalize validates req and merges duplicate products. Merged lines keep
// the order of first occurrence, which makes everything downstream
// deterministic for a given request. Pure; no I/O.
func Normalize(req CreateRequest) ([]Line, error) {
	if req.UserID == "" {
		return nil, &ValidationError{Message: "userId is required"}
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid userId: %q", req.UserID)}
	}
	if len(req.Items) == 0 {
		return nil, &ValidationError{Message: "order must contain at least one item"}
	}

	index := make(map[string]int, len(req.Items))
	lines := make([]Line, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == "" {
			return nil, &ValidationError{Message: "each item must have a productId"}
		}
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("invalid productId: %q", it.ProductID)}
		}
		if it.Quantity < 1 {
			return nil, &ValidationError{Message: fmt.Sprintf("quantity for product %q must be at least 1", it.ProductID)}
		}

		// uuid.String() canonicalizes case, so merging and row lookups see
		// one spelling per product.
		id := productID.String()
		if i, ok := index[id]; ok {
			lines[i].Quantity += it.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, Line{ProductID: id, Quantity: it.Quantity})
	}
	return lines, nil
}
