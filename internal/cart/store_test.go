package cart

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agromarket/internal/pricing"
)

func strPtr(s string) *string { return &s }

func TestStoreAddMergesSameProductAndVariant(t *testing.T) {
	s := NewStore(nil)

	first, err := s.Add(Line{ProductID: "P", VariantID: strPtr("V"), Quantity: 3, UnitPrice: 1000})
	require.NoError(t, err)
	require.True(t, first.Selected)
	require.NotEmpty(t, first.ID)

	merged, err := s.Add(Line{ProductID: "P", VariantID: strPtr("V"), Quantity: 2, UnitPrice: 1000})
	require.NoError(t, err)
	require.Equal(t, first.ID, merged.ID)
	require.Equal(t, 5, merged.Quantity)

	lines := s.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, 5, lines[0].Quantity)
}

func TestStoreAddDistinguishesVariants(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Add(Line{ProductID: "P", Quantity: 1})
	require.NoError(t, err)
	_, err = s.Add(Line{ProductID: "P", VariantID: strPtr("V"), Quantity: 1})
	require.NoError(t, err)
	_, err = s.Add(Line{ProductID: "P", VariantID: strPtr(""), Quantity: 4})
	require.NoError(t, err)

	lines := s.Lines()
	require.Len(t, lines, 2)
	require.Nil(t, lines[0].VariantID)
	require.Equal(t, 5, lines[0].Quantity, "empty variant id means no variant")
}

func TestStoreAddRejectsInvalidInput(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Add(Line{ProductID: "P", Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = s.Add(Line{Quantity: 1})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Empty(t, s.Lines())
}

func TestStoreUpdate(t *testing.T) {
	s := NewStore(nil)
	line, err := s.Add(Line{ProductID: "P", Quantity: 2})
	require.NoError(t, err)

	updated, err := s.Update(line.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 7, updated.Quantity)

	_, err = s.Update(line.ID, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = s.Update(line.ID, -3)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	require.Equal(t, 7, s.Lines()[0].Quantity, "invalid quantity leaves line untouched")

	_, err = s.Update("missing", 1)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestStoreRemoveAndClear(t *testing.T) {
	s := NewStore(nil)
	a, _ := s.Add(Line{ProductID: "A", Quantity: 1})
	_, _ = s.Add(Line{ProductID: "B", Quantity: 1})

	s.Remove("unknown")
	require.Len(t, s.Lines(), 2)

	s.Remove(a.ID)
	lines := s.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, "B", lines[0].ProductID)

	s.Clear()
	require.Empty(t, s.Lines())
	require.Equal(t, pricing.Totals{}, s.Totals())
}

func TestStoreTotalsUseSelectedLines(t *testing.T) {
	s := NewStore(nil)
	a, _ := s.Add(Line{ProductID: "A", Quantity: 3, UnitPrice: 10000, ShippingUnitFee: 500})
	_, _ = s.Add(Line{ProductID: "B", Quantity: 2, UnitPrice: 100, ShippingUnitFee: 10})

	require.Equal(t, pricing.Totals{ProductTotal: 30200, ShippingFee: 1520, Total: 31720}, s.Totals())

	require.NoError(t, s.SetSelected(a.ID, false))
	require.Equal(t, pricing.Totals{ProductTotal: 200, ShippingFee: 20, Total: 220}, s.Totals())
	require.ErrorIs(t, s.SetSelected("missing", true), ErrLineNotFound)
}

func TestStoreReadsAreCopies(t *testing.T) {
	s := NewStore(nil)
	_, _ = s.Add(Line{ProductID: "P", VariantID: strPtr("V"), Quantity: 1})

	lines := s.Lines()
	lines[0].Quantity = 99
	*lines[0].VariantID = "changed"

	fresh := s.Lines()
	require.Equal(t, 1, fresh[0].Quantity)
	require.Equal(t, "V", *fresh[0].VariantID)
}

func TestStoreConcurrentAdds(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Add(Line{ProductID: fmt.Sprintf("P%d", i%5), Quantity: 1})
		}(i)
	}
	wg.Wait()

	total := 0
	for _, l := range s.Lines() {
		total += l.Quantity
	}
	require.Len(t, s.Lines(), 5)
	require.Equal(t, 50, total)
}
