package repository

import (
	"context"
	"errors"

	"theater/internal/domain/model"
	repo "theater/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) Create(ctx context.Context, p model.Payment) (int64, error) {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&p).Error; err != nil {
		//order_idのunique違反は二重決済
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, repo.ErrAlreadyExists
		}
		return 0, err
	}
	return p.ID, nil
}

func (r *PaymentGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Payment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Payment{}, 0, err
	}

	var items []model.Payment
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Preload("Items.Movie", withDeletedMovies).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Payment{}, 0, err
	}

	return items, total, nil
}

func (r *PaymentGormRepository) FindByIDForUser(ctx context.Context, paymentID int64, userID int64) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Preload("Items.Movie", withDeletedMovies).
		Preload("Order").
		Where("id = ? AND user_id = ?", paymentID, userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

type PaymentItemGormRepository struct {
	db *gorm.DB
}

func NewPaymentItemGormRepository(db *gorm.DB) *PaymentItemGormRepository {
	return &PaymentItemGormRepository{db: db}
}

func (r *PaymentItemGormRepository) CreateBulk(ctx context.Context, paymentID int64, items []model.PaymentItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].PaymentID = paymentID
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&items).Error
}
