package repository

import (
	"context"
	"time"
)

// 日次の受注枠を数えるための約束
type QuotaRepository interface {
	// from <= created_at < to の注文数量の合計（ステータスは問わない）
	SumQuantityBetween(ctx context.Context, from, to time.Time) (int, error)

	// トランザクション内で同じ日の受付判定を直列化する。
	// PostgreSQL では advisory lock、それ以外は何もしない（プロセス内の mutex に任せる）。
	LockDay(ctx context.Context, day time.Time) error
}
