package repository

import (
	"context"

	"theater/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	// 見つからなければ nil, nil
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}
