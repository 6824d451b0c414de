package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MovieStatus string

const (
	MovieStatusAnnounced MovieStatus = "ANNOUNCED"
	MovieStatusReleased  MovieStatus = "RELEASED"
	MovieStatusArchived  MovieStatus = "ARCHIVED"
)

type Movie struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Year      int             `gorm:"not null;default:0" json:"year"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`
	Status    MovieStatus     `gorm:"type:varchar(20);not null;default:'RELEASED'" json:"status"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt  `gorm:"index" json:"-"`
}

// 購入できるのは公開中かつRELEASEDのものだけ
func (m Movie) IsAvailable() bool {
	return m.IsActive && m.Status == MovieStatusReleased
}
