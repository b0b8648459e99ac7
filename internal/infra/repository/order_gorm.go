package repository

import (
	"context"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if err != nil {
		return model.Order{}, translate(err)
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

// 注文番号/idempotency_keyの重複は一意制約で検出する
func (r *OrderGormRepository) Create(ctx context.Context, order *model.Order) error {
	return translate(r.db.WithContext(ctx).Create(order).Error)
}

func (r *OrderGormRepository) TransitionStatus(ctx context.Context, orderID int64, from model.OrderStatus, change model.StatusChange) (bool, error) {
	updates := map[string]interface{}{
		"status":     change.To,
		"updated_at": change.At,
	}
	switch change.To {
	case model.OrderStatusDelivered:
		updates["delivered_at"] = change.At
	case model.OrderStatusCancelled:
		updates["cancelled_at"] = change.At
		updates["cancellation_reason"] = change.Reason
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) UpdatePayment(ctx context.Context, orderID int64, status model.PaymentStatus, gatewayPaymentID string, paidAt *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"payment_status": status,
	}
	if gatewayPaymentID != "" {
		updates["payment_gateway_payment_id"] = gatewayPaymentID
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
		updates["updated_at"] = *paidAt
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status <> ?", orderID, model.PaymentStatusPaid).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&o).Error

	if err != nil {
		if err = translate(err); err == repo.ErrNotFound {
			return model.Order{}, false, nil
		}
		return model.Order{}, false, err
	}
	return o, true, nil
}

func (r *OrderGormRepository) adminQuery(ctx context.Context, f repo.AdminOrderListFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Order{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	//user_id 絞り込み
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	return q
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	var total int64
	if err := r.adminQuery(ctx, f).Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := r.adminQuery(ctx, f).Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) SumRevenue(ctx context.Context, f repo.AdminOrderListFilter) (decimal.Decimal, error) {
	var row struct {
		Revenue decimal.NullDecimal
	}
	err := r.adminQuery(ctx, f).
		Where("status <> ?", model.OrderStatusCancelled).
		Select("SUM(price_total) AS revenue").
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !row.Revenue.Valid {
		return decimal.Zero, nil
	}
	return row.Revenue.Decimal, nil
}
