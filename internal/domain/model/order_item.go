package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID      int64           `gorm:"not null;index" json:"order_id"`
	MovieID      int64           `gorm:"not null;index" json:"movie_id"`
	PriceAtOrder decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price_at_order"`
	CreatedAt    time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	Movie        *Movie          `gorm:"foreignKey:MovieID" json:"movie,omitempty"`
}
