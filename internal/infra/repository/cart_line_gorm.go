package repository

import (
	"context"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartLineGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartLineGormRepository(db *gorm.DB) *CartLineGormRepository {
	return &CartLineGormRepository{db: db}
}

func (r *CartLineGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.CartLine, error) {
	var lines []model.CartLine
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&lines).Error; err != nil {
		return []model.CartLine{}, err
	}
	return lines, nil
}

// (user_id, product_id)の一意制約でUPSERT。既存なら数量加算、価格は最新に
// 合算が上限を超えるとchk_cart_lines_quantityで弾かれる
func (r *CartLineGormRepository) Upsert(ctx context.Context, userID int64, productID int64, addQty int64, priceSnapshot decimal.Decimal) error {
	if addQty <= 0 {
		return repo.ErrInvalidQuantity
	}
	if addQty > model.MaxLineQuantity {
		return repo.ErrQuantityLimit
	}
	now := time.Now()
	line := model.CartLine{
		UserID:        userID,
		ProductID:     productID,
		Quantity:      addQty,
		PriceSnapshot: priceSnapshot,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":       gorm.Expr("cart_lines.quantity + ?", addQty),
			"price_snapshot": priceSnapshot,
			"updated_at":     now,
		}),
	}).Create(&line).Error
	return translate(err)
}

func (r *CartLineGormRepository) FindByID(ctx context.Context, lineID int64) (model.CartLine, error) {
	var l model.CartLine
	if err := r.db.WithContext(ctx).Where("id = ?", lineID).First(&l).Error; err != nil {
		return model.CartLine{}, translate(err)
	}
	return l, nil
}

func (r *CartLineGormRepository) UpdateQuantity(ctx context.Context, lineID int64, qty int64) error {
	if qty <= 0 {
		return repo.ErrInvalidQuantity
	}
	if qty > model.MaxLineQuantity {
		return repo.ErrQuantityLimit
	}
	res := r.db.WithContext(ctx).
		Model(&model.CartLine{}).
		Where("id = ?", lineID).
		Updates(map[string]interface{}{"quantity": qty, "updated_at": time.Now()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartLineGormRepository) DeleteByID(ctx context.Context, lineID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CartLine{}, lineID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
