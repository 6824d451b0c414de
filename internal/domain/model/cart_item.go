package model

import "time"

// 同じ映画は1カートに1行
type CartItem struct {
	ID      int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID  int64     `gorm:"not null;uniqueIndex:idx_cart_movie" json:"cart_id"`
	MovieID int64     `gorm:"not null;uniqueIndex:idx_cart_movie" json:"movie_id"`
	AddedAt time.Time `gorm:"not null;autoCreateTime" json:"added_at"`
	Movie   *Movie    `gorm:"foreignKey:MovieID" json:"movie,omitempty"`
}
