package repository

import (
	"context"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"gorm.io/gorm"
)

type addressGormRepository struct {
	db *gorm.DB
}

// DI
func NewAddressGormRepository(db *gorm.DB) repo.AddressRepository {
	return &addressGormRepository{db: db}
}

func (r *addressGormRepository) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	var a model.Address
	if err := r.db.WithContext(ctx).Where("id = ?", addressID).First(&a).Error; err != nil {
		return model.Address{}, translate(err)
	}
	return a, nil
}
