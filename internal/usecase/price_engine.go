package usecase

import (
	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"

	"github.com/shopspring/decimal"
)

type PricingConfig struct {
	BaseShippingFee    decimal.Decimal
	PerItemShippingFee decimal.Decimal
	TaxRate            decimal.Decimal
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		BaseShippingFee:    decimal.NewFromInt(50),
		PerItemShippingFee: decimal.NewFromInt(10),
		TaxRate:            decimal.RequireFromString("0.18"),
	}
}

// PriceEngine is a pure function of validated lines, destination and discount.
type PriceEngine struct {
	cfg PricingConfig
}

func NewPriceEngine(cfg PricingConfig) *PriceEngine {
	return &PriceEngine{cfg: cfg}
}

type LineQuote struct {
	Snapshot  CatalogSnapshot
	Quantity  int64
	LineTotal decimal.Decimal
}

type Quote struct {
	Lines     []LineQuote
	ItemCount int64
	Price     model.PriceBreakdown
}

const moneyPlaces = 2

// Quote builds the breakdown. Each component is rounded exactly once here and
// total is derived from the rounded components, so
// total == subtotal + shippingFee + tax - discount holds to the cent.
func (e *PriceEngine) Quote(lines []ValidatedLine, discount decimal.Decimal) Quote {
	q := Quote{Lines: make([]LineQuote, 0, len(lines))}
	subtotal := decimal.Zero
	for _, l := range lines {
		//単価は必ずカタログから
		lineTotal := l.Snapshot.Price.Mul(decimal.NewFromInt(l.Quantity))
		q.Lines = append(q.Lines, LineQuote{
			Snapshot:  l.Snapshot,
			Quantity:  l.Quantity,
			LineTotal: lineTotal.Round(moneyPlaces),
		})
		subtotal = subtotal.Add(lineTotal)
		q.ItemCount += l.Quantity
	}

	subtotal = subtotal.Round(moneyPlaces)
	shipping := e.cfg.BaseShippingFee.
		Add(e.cfg.PerItemShippingFee.Mul(decimal.NewFromInt(q.ItemCount))).
		Round(moneyPlaces)
	tax := subtotal.Mul(e.cfg.TaxRate).Round(moneyPlaces)

	// 割引は [0, subtotal+shipping+tax] に収める
	ceiling := subtotal.Add(shipping).Add(tax)
	d := discount.Round(moneyPlaces)
	if d.IsNegative() {
		d = decimal.Zero
	}
	if d.GreaterThan(ceiling) {
		d = ceiling
	}

	q.Price = model.PriceBreakdown{
		Subtotal:    subtotal,
		ShippingFee: shipping,
		Tax:         tax,
		Discount:    d,
		Total:       ceiling.Sub(d),
	}
	return q
}
