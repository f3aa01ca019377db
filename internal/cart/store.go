package cart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/agromarket/internal/pricing"
)

// ErrLineNotFound indicates the requested cart line does not exist.
var ErrLineNotFound = errors.New("cart line not found")

// ErrInvalidInput is returned when a line payload is missing required fields.
var ErrInvalidInput = errors.New("invalid input")

// Line is one buyer-selected product/variant pairing.
type Line struct {
	ID              string        `json:"id"`
	ProductID       string        `json:"productId"`
	VariantID       *string       `json:"variantId,omitempty"`
	Quantity        int           `json:"quantity"`
	UnitPrice       pricing.Money `json:"unitPrice"`
	ShippingUnitFee pricing.Money `json:"shippingUnitFee"`
	MOQ             int           `json:"moq"`
	StockQuantity   int           `json:"stockQuantity"`
	Selected        bool          `json:"selected"`
	// Version is the catalog price version the line was priced against.
	Version         int64         `json:"version,omitempty"`

	Name       string `json:"name"`
	ImageURL   string `json:"imageUrl,omitempty"`
	SellerID   string `json:"sellerId,omitempty"`
	SellerName string `json:"sellerName,omitempty"`
}

// PricingInput converts the line into a pricing input.
func (l Line) PricingInput() pricing.Input {
	return pricing.Input{UnitPrice: l.UnitPrice, ShippingUnitFee: l.ShippingUnitFee, Quantity: l.Quantity}
}

// Totals prices the line.
func (l Line) Totals() pricing.Totals {
	return pricing.Calculate(l.PricingInput())
}

func (l Line) sameItem(productID string, variantID *string) bool {
	if l.ProductID != productID {
		return false
	}
	if l.VariantID == nil || variantID == nil {
		return l.VariantID == nil && variantID == nil
	}
	return *l.VariantID == *variantID
}

// Store holds a buyer's in-progress cart. Mutations are synchronous and
// immediately visible to readers.
type Store struct {
	mu    sync.RWMutex
	lines []Line
	newID func() string
}

// NewStore returns a store seeded with the provided lines.
func NewStore(lines []Line) *Store {
	s := &Store{newID: uuid.NewString}
	for _, l := range lines {
		s.lines = append(s.lines, cloneLine(l))
	}
	return s
}

// Add inserts the line or, when the product/variant pairing already exists,
// increases the existing quantity. It returns the resulting line.
func (s *Store) Add(line Line) (Line, error) {
	if line.ProductID == "" {
		return Line{}, fmt.Errorf("productId is required: %w", ErrInvalidInput)
	}
	if line.Quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	if line.VariantID != nil && *line.VariantID == "" {
		line.VariantID = nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].sameItem(line.ProductID, line.VariantID) {
			s.lines[i].Quantity += line.Quantity
			return cloneLine(s.lines[i]), nil
		}
	}
	line.ID = s.generateID()
	line.Selected = true
	s.lines = append(s.lines, cloneLine(line))
	return cloneLine(line), nil
}

// Update replaces the quantity for the line matching id.
func (s *Store) Update(id string, quantity int) (Line, error) {
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return Line{}, ErrLineNotFound
	}
	s.lines[idx].Quantity = quantity
	return cloneLine(s.lines[idx]), nil
}

// SetSelected toggles whether the line takes part in checkout.
func (s *Store) SetSelected(id string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrLineNotFound
	}
	s.lines[idx].Selected = selected
	return nil
}

// Remove deletes the line. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
}

// ItemRef identifies a product or one of its variants.
type ItemRef struct {
	ProductID string
	VariantID *string
}

// RemoveItems deletes every line matching one of refs and reports how many
// lines were removed.
func (s *Store) RemoveItems(refs []ItemRef) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.lines[:0]
	removed := 0
	for _, l := range s.lines {
		match := false
		for _, ref := range refs {
			if l.sameItem(ref.ProductID, ref.VariantID) {
				match = true
				break
			}
		}
		if match {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	s.lines = kept
	return removed
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = nil
	s.mu.Unlock()
}

// Lines returns a copy of every line in insertion order.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Line, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, cloneLine(l))
	}
	return out
}

// Selected returns the lines marked for checkout.
func (s *Store) Selected() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Line, 0, len(s.lines))
	for _, l := range s.lines {
		if l.Selected {
			out = append(out, cloneLine(l))
		}
	}
	return out
}

// Totals prices the selected lines.
func (s *Store) Totals() pricing.Totals {
	return SumLines(s.Selected())
}

// Validate runs the cart validator over the current contents.
func (s *Store) Validate() Validation {
	return ValidateCartItems(s.Lines())
}

// SumLines prices the given lines.
func SumLines(lines []Line) pricing.Totals {
	inputs := make([]pricing.Input, 0, len(lines))
	for _, l := range lines {
		inputs = append(inputs, l.PricingInput())
	}
	return pricing.Sum(inputs...)
}

func (s *Store) indexOf(id string) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) generateID() string {
	if s.newID == nil {
		return uuid.NewString()
	}
	return s.newID()
}

func cloneLine(l Line) Line {
	if l.VariantID != nil {
		v := *l.VariantID
		l.VariantID = &v
	}
	return l
}
