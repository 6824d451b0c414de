package repository

import (
	"context"
	"errors"

	"theater/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// unique制約に引っかかった
var ErrAlreadyExists = errors.New("already exists")

// 映画の取得だけを約束。カタログ管理は別サービス。
type MovieRepository interface {
	FindByID(ctx context.Context, id int64) (model.Movie, error)
	Create(ctx context.Context, m model.Movie) (model.Movie, error)
}
