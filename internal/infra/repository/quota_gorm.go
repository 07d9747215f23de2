package repository

import (
	"context"
	"time"

	"preorder/internal/domain/model"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

type QuotaGormRepository struct {
	db *gorm.DB
}

func NewQuotaGormRepository(db *gorm.DB) *QuotaGormRepository {
	return &QuotaGormRepository{db: db}
}

// from <= created_at < to の数量合計
func (r *QuotaGormRepository) SumQuantityBetween(ctx context.Context, from, to time.Time) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Scan(&total).Error
	if err != nil {
		return 0, errors.Wrap(err, "sum quantity")
	}
	return int(total), nil
}

// PostgreSQLだけ advisory lock を取る（トランザクション終了で解放）
func (r *QuotaGormRepository) LockDay(ctx context.Context, day time.Time) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	key := int64(day.Year()*10000 + int(day.Month())*100 + day.Day())
	if err := r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", key).Error; err != nil {
		return errors.Wrap(err, "advisory lock")
	}
	return nil
}
