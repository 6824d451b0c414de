package repository

import (
	"context"

	"theater/internal/domain/model"
)

type PaymentRepository interface {
	// 同じ注文の支払いが既にあれば ErrAlreadyExists
	Create(ctx context.Context, p model.Payment) (int64, error)
	// 新しい順
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Payment, int64, error)
	// Items.MovieとOrderをpreloadする。他人の支払いは ErrNotFound
	FindByIDForUser(ctx context.Context, paymentID int64, userID int64) (model.Payment, error)
	// 無ければ ErrNotFound
	FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error)
}

type PaymentItemRepository interface {
	CreateBulk(ctx context.Context, paymentID int64, items []model.PaymentItem) error
}
