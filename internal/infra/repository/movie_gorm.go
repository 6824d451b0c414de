package repository

import (
	"context"
	"errors"

	"theater/internal/domain/model"
	repo "theater/internal/repository"

	"gorm.io/gorm"
)

type MovieGormRepository struct {
	db *gorm.DB
}

// DI
func NewMovieGormRepository(db *gorm.DB) *MovieGormRepository {
	return &MovieGormRepository{db: db}
}

func (r *MovieGormRepository) FindByID(ctx context.Context, id int64) (model.Movie, error) {
	var m model.Movie
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Movie{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Movie{}, err
	}
	return m, nil
}

func (r *MovieGormRepository) Create(ctx context.Context, m model.Movie) (model.Movie, error) {
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return model.Movie{}, err
	}
	return m, nil
}
