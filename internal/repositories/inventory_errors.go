package repositories

import "fmt"

// InventoryErrorCode is the machine readable cause of a stock failure.
type InventoryErrorCode string

const (
	InventoryErrorInsufficientStock InventoryErrorCode = "insufficient_stock"
	InventoryErrorProductNotFound   InventoryErrorCode = "product_not_found"
	InventoryErrorInvalidQuantity   InventoryErrorCode = "invalid_quantity"
)

// InventoryError reports a stock failure for one product.
type InventoryError struct {
	Op        string
	Code      InventoryErrorCode
	ProductID int64
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewInventoryError constructs a typed inventory error for productID.
func NewInventoryError(code InventoryErrorCode, productID int64, message string, err error) *InventoryError {
	if message == "" {
		message = string(code)
	}
	return &InventoryError{Code: code, ProductID: productID, Message: message, Err: err}
}
