package repository

import (
	"context"

	"preorder/internal/domain/model"

	"github.com/cockroachdb/errors"
)

var ErrNotFound = errors.New("not found")

// 注文テーブルの約束。
// 更新・削除で該当行がなかったときはエラーではなく false を返す（404にするかは呼び出し側が決める）。
type OrderRepository interface {
	// IDを採番してorder.IDに入れる
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	// 電話番号が一致しないときも ErrNotFound（注文の存在を漏らさない）
	FindByIDAndPhone(ctx context.Context, orderID int64, phone string) (model.Order, error)

	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) (bool, error)
	Delete(ctx context.Context, orderID int64) (bool, error)

	//新しい順
	ListRecent(ctx context.Context, limit int) ([]model.Order, error)
}
