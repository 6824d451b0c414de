package repository

import (
	"context"

	"theater/internal/domain/model"
)

type OrderRepository interface {
	// Items.Movieまでpreloadする
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 他人の注文は ErrNotFound
	FindByIDForUser(ctx context.Context, orderID int64, userID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	// status = from のときだけ to に更新する。更新できたら true
	UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error)

	// PAID注文に含まれる映画ID
	PurchasedMovieIDs(ctx context.Context, userID int64) (map[int64]struct{}, error)
	// PENDING注文にどれか1つでも含まれているか
	HasPendingOrderFor(ctx context.Context, userID int64, movieIDs []int64) (bool, error)
}
