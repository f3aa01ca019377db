package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// Input describes the figures of one cart or order line needed for pricing.
type Input struct {
	UnitPrice       Money
	ShippingUnitFee Money
	Quantity        int
}

// Totals aggregates computed pricing components.
type Totals struct {
	ProductTotal Money `json:"productTotal"`
	ShippingFee  Money `json:"shippingFee"`
	Total        Money `json:"total"`
}

// Calculate prices a single line. Shipping is charged per unit, not per line.
func Calculate(in Input) Totals {
	qty := Money(in.Quantity)
	product := in.UnitPrice * qty
	shipping := in.ShippingUnitFee * qty
	return Totals{
		ProductTotal: product,
		ShippingFee:  shipping,
		Total:        product + shipping,
	}
}

// Sum prices every line and adds each component independently.
func Sum(inputs ...Input) Totals {
	var out Totals
	for _, in := range inputs {
		out = out.Add(Calculate(in))
	}
	return out
}

// Add returns the component-wise sum of t and other.
func (t Totals) Add(other Totals) Totals {
	return Totals{
		ProductTotal: t.ProductTotal + other.ProductTotal,
		ShippingFee:  t.ShippingFee + other.ShippingFee,
		Total:        t.Total + other.Total,
	}
}
