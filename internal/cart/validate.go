package cart

import "fmt"

// Validation error codes.
const (
	CodeCartEmpty         = "CART_EMPTY"
	CodeNoItemsSelected   = "NO_ITEMS_SELECTED"
	CodeMOQNotMet         = "MOQ_NOT_MET"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
)

// ValidationError attributes a single violation to a product.
type ValidationError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	LineID      string `json:"lineId,omitempty"`
	ProductID   string `json:"productId,omitempty"`
	ProductName string `json:"productName,omitempty"`
	Required    int    `json:"required,omitempty"`
	Available   *int   `json:"available,omitempty"`
}

// Validation is the outcome of ValidateCartItems.
type Validation struct {
	IsValid bool              `json:"isValid"`
	Errors  []ValidationError `json:"errors"`
}

// ValidateCartItems screens the cart against its MOQ and stock snapshots.
// An empty cart or a cart without selected lines yields a single whole-cart
// error; otherwise every selected line is checked and errors accumulate in
// input order.
func ValidateCartItems(lines []Line) Validation {
	if len(lines) == 0 {
		return invalid(ValidationError{Code: CodeCartEmpty, Message: "your cart is empty"})
	}
	selected := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Selected {
			selected = append(selected, l)
		}
	}
	if len(selected) == 0 {
		return invalid(ValidationError{Code: CodeNoItemsSelected, Message: "select at least one item to order"})
	}
	return CheckLines(selected)
}

// CheckLines applies the per-line MOQ and stock rules without the whole-cart
// checks.
func CheckLines(lines []Line) Validation {
	errs := make([]ValidationError, 0)
	for _, l := range lines {
		name := displayName(l)
		if l.MOQ > 0 && l.Quantity < l.MOQ {
			errs = append(errs, ValidationError{
				Code:        CodeMOQNotMet,
				Message:     fmt.Sprintf("%s requires a minimum order of %d (requested %d)", name, l.MOQ, l.Quantity),
				LineID:      l.ID,
				ProductID:   l.ProductID,
				ProductName: l.Name,
				Required:    l.MOQ,
			})
		}
		if l.Quantity > l.StockQuantity {
			available := l.StockQuantity
			if available < 0 {
				available = 0
			}
			errs = append(errs, ValidationError{
				Code:        CodeInsufficientStock,
				Message:     fmt.Sprintf("only %d of %s in stock (requested %d)", available, name, l.Quantity),
				LineID:      l.ID,
				ProductID:   l.ProductID,
				ProductName: l.Name,
				Available:   &available,
			})
		}
	}
	return Validation{IsValid: len(errs) == 0, Errors: errs}
}

// CanCheckout reports whether the pay action should be enabled.
func CanCheckout(v Validation) bool {
	return v.IsValid && len(v.Errors) == 0
}

func invalid(e ValidationError) Validation {
	return Validation{IsValid: false, Errors: []ValidationError{e}}
}

func displayName(l Line) string {
	if l.Name != "" {
		return l.Name
	}
	return l.ProductID
}
