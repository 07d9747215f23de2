package repository

import (
	"context"
	"time"

	"preorder/internal/domain/model"
	repo "preorder/internal/repository"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) Create(ctx context.Context, order *model.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return errors.Wrap(err, "create order")
	}
	return nil
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, errors.Wrap(err, "find order")
	}
	return o, nil
}

func (r *OrderGormRepository) FindByIDAndPhone(ctx context.Context, orderID int64, phone string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND phone = ?", orderID, phone).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, errors.Wrap(err, "find order by phone")
	}
	return o, nil
}

func (r *OrderGormRepository) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})

	if res.Error != nil {
		return false, errors.Wrap(res.Error, "update order status")
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) Delete(ctx context.Context, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", orderID).Delete(&model.Order{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "delete order")
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) ListRecent(ctx context.Context, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 50
	}

	var items []model.Order
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, errors.Wrap(err, "list recent orders")
	}
	return items, nil
}
