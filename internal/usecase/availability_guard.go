package usecase

import (
	"context"
	"fmt"
	"slices"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type OrderLineInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type ValidatedLine struct {
	Snapshot CatalogSnapshot
	Quantity int64
}

type CODPolicy struct {
	MaxOrderTotal    decimal.Decimal
	DenylistPincodes []string
}

// 同時に読むカタログの上限
const catalogFanOut = 8

type AvailabilityGuard struct {
	catalog *CatalogReader
	cod     CODPolicy
}

func NewAvailabilityGuard(catalog *CatalogReader, cod CODPolicy) *AvailabilityGuard {
	return &AvailabilityGuard{catalog: catalog, cod: cod}
}

// Check validates every requested line against the live catalog.
// A bad quantity rejects the whole submission immediately; unknown products and
// stock shortfalls are collected so the caller gets one complete report.
func (g *AvailabilityGuard) Check(ctx context.Context, items []OrderLineInput) ([]ValidatedLine, error) {
	lines, err := mergeLines(items)
	if err != nil {
		return nil, err
	}

	snapshots := make([]CatalogSnapshot, len(lines))
	missing := make([]bool, len(lines))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(catalogFanOut)
	for i, l := range lines {
		eg.Go(func() error {
			s, err := g.catalog.Snapshot(egCtx, l.ProductID)
			if isNotFound(err) {
				missing[i] = true
				return nil
			}
			if err != nil {
				return infraError("catalog", err)
			}
			snapshots[i] = s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var issues []ItemIssue
	validated := make([]ValidatedLine, 0, len(lines))
	for i, l := range lines {
		if missing[i] {
			issues = append(issues, ItemIssue{ProductID: l.ProductID, Reason: IssueNotFound, Requested: l.Quantity})
			continue
		}
		s := snapshots[i]
		if l.Quantity > s.Stock {
			issues = append(issues, ItemIssue{
				ProductID: l.ProductID,
				Name:      s.Name,
				Reason:    IssueInsufficientStock,
				Requested: l.Quantity,
				Available: s.Stock,
			})
			continue
		}
		validated = append(validated, ValidatedLine{Snapshot: s, Quantity: l.Quantity})
	}

	if len(issues) > 0 {
		return nil, newAvailabilityError(issues)
	}
	return validated, nil
}

// CheckPaymentMethod applies the cash-on-delivery restrictions to a priced order.
func (g *AvailabilityGuard) CheckPaymentMethod(method model.PaymentMethod, pincode string, total decimal.Decimal) error {
	if method != model.PaymentMethodCOD {
		return nil
	}
	var issues []ItemIssue
	if slices.Contains(g.cod.DenylistPincodes, pincode) {
		issues = append(issues, ItemIssue{Reason: IssueCODPincode})
	}
	if g.cod.MaxOrderTotal.IsPositive() && total.GreaterThan(g.cod.MaxOrderTotal) {
		issues = append(issues, ItemIssue{Reason: IssueCODLimit})
	}
	if len(issues) > 0 {
		return newAvailabilityError(issues)
	}
	return nil
}

// 同じ商品は数量を合算（最初に出た順を保つ）
func mergeLines(items []OrderLineInput) ([]OrderLineInput, error) {
	if len(items) == 0 {
		return nil, newValidationError("items required")
	}
	index := make(map[int64]int, len(items))
	out := make([]OrderLineInput, 0, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, newValidationError("invalid product_id")
		}
		if it.Quantity < 1 || it.Quantity > model.MaxLineQuantity {
			return nil, newValidationError(fmt.Sprintf("invalid quantity for product %d", it.ProductID))
		}
		if i, ok := index[it.ProductID]; ok {
			// 合算後も上限内（オーバーフローさせない）
			if out[i].Quantity > model.MaxLineQuantity-it.Quantity {
				return nil, newValidationError(fmt.Sprintf("quantity for product %d exceeds %d", it.ProductID, model.MaxLineQuantity))
			}
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}
