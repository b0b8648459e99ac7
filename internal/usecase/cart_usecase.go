package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart の業務ロジック。
// カートの価格は表示用で、注文時はカタログを読み直す。
type CartUsecase struct {
	lines    repo.CartLineRepository
	products repo.ProductRepository
	timeout  time.Duration
}

func NewCartUsecase(lines repo.CartLineRepository, products repo.ProductRepository, timeout time.Duration) *CartUsecase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &CartUsecase{lines: lines, products: products, timeout: timeout}
}

type CartLineResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type CartResponse struct {
	Items []CartLineResponse `json:"items"`
	Total string             `json:"total"`
}

type AddCartInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type UpdateCartLineInput struct {
	Quantity int64 `json:"quantity"`
}

func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	return u.buildCartResponse(ctx, userID)
}

// AddToCart はカートに追加（同一商品は数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, newValidationError("invalid product_id")
	}
	if in.Quantity < 1 || in.Quantity > model.MaxLineQuantity {
		return CartResponse{}, newValidationError("invalid quantity")
	}
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	// 商品チェック（公開のみ）
	p, err := u.products.FindByID(ctx, in.ProductID)
	if isNotFound(err) || (err == nil && !p.IsActive) {
		return CartResponse{}, newNotFoundError("product not found")
	}
	if err != nil {
		return CartResponse{}, infraError("cart", err)
	}

	// 価格は追加時点のもの
	if err := u.lines.Upsert(ctx, userID, in.ProductID, in.Quantity, p.Price); err != nil {
		if errors.Is(err, repo.ErrQuantityLimit) {
			return CartResponse{}, newValidationError(fmt.Sprintf("quantity exceeds %d", model.MaxLineQuantity))
		}
		return CartResponse{}, infraError("cart", err)
	}
	return u.buildCartResponse(ctx, userID)
}

// 数量変更。0なら削除
func (u *CartUsecase) UpdateCartLine(ctx context.Context, userID int64, lineID int64, in UpdateCartLineInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if lineID <= 0 {
		return CartResponse{}, newValidationError("invalid id")
	}
	if in.Quantity < 0 || in.Quantity > model.MaxLineQuantity {
		return CartResponse{}, newValidationError("invalid quantity")
	}
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	if err := u.ensureOwned(ctx, userID, lineID); err != nil {
		return CartResponse{}, err
	}

	var err error
	if in.Quantity == 0 {
		err = u.lines.DeleteByID(ctx, lineID)
	} else {
		err = u.lines.UpdateQuantity(ctx, lineID, in.Quantity)
	}
	if err != nil {
		if isNotFound(err) {
			return CartResponse{}, newNotFoundError("not found")
		}
		return CartResponse{}, infraError("cart", err)
	}
	return u.buildCartResponse(ctx, userID)
}

func (u *CartUsecase) DeleteCartLine(ctx context.Context, userID int64, lineID int64) (CartResponse, error) {
	return u.UpdateCartLine(ctx, userID, lineID, UpdateCartLineInput{Quantity: 0})
}

// 他人の明細は存在しない扱い
func (u *CartUsecase) ensureOwned(ctx context.Context, userID int64, lineID int64) error {
	line, err := u.lines.FindByID(ctx, lineID)
	if isNotFound(err) || (err == nil && line.UserID != userID) {
		return newNotFoundError("not found")
	}
	if err != nil {
		return infraError("cart", err)
	}
	return nil
}

func (u *CartUsecase) buildCartResponse(ctx context.Context, userID int64) (CartResponse, error) {
	lines, err := u.lines.ListByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, infraError("cart", err)
	}

	items := make([]CartLineResponse, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		p, err := u.products.FindByID(ctx, l.ProductID)
		if err != nil || !p.IsActive {
			continue
		}
		items = append(items, CartLineResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			Name:      p.Name,
			Price:     money2(l.PriceSnapshot),
			Quantity:  l.Quantity,
		})
		total = total.Add(l.PriceSnapshot.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return CartResponse{Items: items, Total: money2(total)}, nil
}
