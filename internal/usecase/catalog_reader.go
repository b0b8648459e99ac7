package usecase

import (
	"context"
	"time"

	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/shopspring/decimal"
)

// 注文時点のカタログ情報
type CatalogSnapshot struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Stock     int64
	ImageURL  string
}

// CatalogReader reads the live product record; never the cart's stored price.
type CatalogReader struct {
	products repo.ProductRepository
	timeout  time.Duration
}

func NewCatalogReader(products repo.ProductRepository, timeout time.Duration) *CatalogReader {
	return &CatalogReader{products: products, timeout: timeout}
}

// 非公開・削除済みはErrNotFound扱い
func (r *CatalogReader) Snapshot(ctx context.Context, productID int64) (CatalogSnapshot, error) {
	p, err := withTimeout(ctx, r.timeout, func(ctx context.Context) (CatalogSnapshot, error) {
		p, err := r.products.FindByID(ctx, productID)
		if err != nil {
			return CatalogSnapshot{}, err
		}
		if !p.IsActive {
			return CatalogSnapshot{}, repo.ErrNotFound
		}
		return CatalogSnapshot{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Stock:     p.Stock,
			ImageURL:  p.ImageURL,
		}, nil
	})
	if err != nil {
		return CatalogSnapshot{}, err
	}
	return p, nil
}
