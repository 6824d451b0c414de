package repository

import (
	"context"

	"theater/internal/domain/model"
)

type CartItemRepository interface {
	// Movieをpreloadして返す
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	// 同じ映画があれば ErrAlreadyExists
	Add(ctx context.Context, cartID int64, movieID int64) (model.CartItem, error)
	// カート外の明細なら ErrNotFound
	DeleteFromCart(ctx context.Context, cartID int64, cartItemID int64) error
}
