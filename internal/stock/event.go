// 当日の残数をライブで配る
package stock

import (
	"context"
	"time"
)

// 残数の状態（イベント履歴ではないので新しい値が常に勝つ）
type Snapshot struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

const (
	ReasonOrderCreated  = "order_created"
	ReasonOrderDeleted  = "order_deleted"
	ReasonStatusChanged = "status_changed"
)

// コミット後の変更通知
type Event struct {
	Reason  string    `json:"reason"`
	OrderID int64     `json:"orderId"`
	At      time.Time `json:"at"`
}

// 配信を待たずに返すこと。失敗しても呼び出し側は失敗させない
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}
