package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusSuccessful PaymentStatus = "SUCCESSFUL"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// 注文と1:1（order_idはunique）
type Payment struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64           `gorm:"not null;index" json:"user_id"`
	OrderID           int64           `gorm:"not null;uniqueIndex" json:"order_id"`
	Status            PaymentStatus   `gorm:"type:varchar(20);not null" json:"status"`
	Amount            decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	ExternalPaymentID *string         `gorm:"type:varchar(255);index" json:"external_payment_id"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	Items             []PaymentItem   `gorm:"foreignKey:PaymentID" json:"items"`
	Order             *Order          `gorm:"foreignKey:OrderID" json:"-"`
}

type PaymentItem struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID      int64           `gorm:"not null;index" json:"payment_id"`
	OrderItemID    int64           `gorm:"not null;index" json:"order_item_id"`
	MovieID        int64           `gorm:"not null" json:"movie_id"`
	PriceAtPayment decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price_at_payment"`
	Movie          *Movie          `gorm:"foreignKey:MovieID" json:"movie,omitempty"`
}
