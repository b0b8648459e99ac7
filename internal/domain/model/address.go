package model

import "time"

// 配送先住所（住所録のCRUDは別サービス。ここでは参照のみ）
type Address struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`
	//PIN code（6桁）
	Pincode string `gorm:"type:varchar(10);not null;index" json:"pincode"`

	State string `gorm:"type:varchar(100);not null" json:"state"`
	City  string `gorm:"type:varchar(255);not null" json:"city"`
	Line1 string `gorm:"type:varchar(255);not null" json:"line1"`
	Line2 string `gorm:"type:varchar(255)" json:"line2"`

	//宛名
	Name  string `gorm:"type:varchar(255);not null" json:"name"`
	Phone string `gorm:"type:varchar(30)" json:"phone"`

	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
