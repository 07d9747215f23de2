package usecase

import (
	"context"
	"time"

	repo "preorder/internal/repository"
	"preorder/internal/stock"
)

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// QuotaAccountant は「今日」の受注数量を数える唯一の窓口。
// 日付は作成時刻のローカル暦日で区切るので、0時に自動でリセットされる。
type QuotaAccountant struct {
	quota repo.QuotaRepository
	clock Clock
	loc   *time.Location
	limit int
}

func NewQuotaAccountant(quota repo.QuotaRepository, clock Clock, loc *time.Location, dailyLimit int) *QuotaAccountant {
	if loc == nil {
		loc = time.Local
	}
	return &QuotaAccountant{quota: quota, clock: clock, loc: loc, limit: dailyLimit}
}

func (a *QuotaAccountant) Limit() int { return a.limit }

// DayBounds は now を含むローカル暦日の [開始, 翌日開始)
func (a *QuotaAccountant) DayBounds(now time.Time) (time.Time, time.Time) {
	local := now.In(a.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc)
	return start, start.AddDate(0, 0, 1)
}

// CommittedToday は今日作成された（削除されていない）注文の数量合計。入金前の注文も含む。
func (a *QuotaAccountant) CommittedToday(ctx context.Context) (int, error) {
	return a.committedOn(ctx, a.quota, a.clock.Now())
}

func (a *QuotaAccountant) committedOn(ctx context.Context, quota repo.QuotaRepository, now time.Time) (int, error) {
	from, to := a.DayBounds(now)
	total, err := quota.SumQuantityBetween(ctx, from, to)
	if err != nil {
		return 0, storageFailure(err, "sum committed quantity")
	}
	return total, nil
}

func (a *QuotaAccountant) Remaining(committed int) int {
	if r := a.limit - committed; r > 0 {
		return r
	}
	return 0
}

// Snapshot implements stock.Source.
func (a *QuotaAccountant) Snapshot(ctx context.Context) (stock.Snapshot, error) {
	total, err := a.CommittedToday(ctx)
	if err != nil {
		return stock.Snapshot{}, err
	}
	return stock.Snapshot{
		Remaining: a.Remaining(total),
		Limit:     a.limit,
		UpdatedAt: a.clock.Now().UTC(),
	}, nil
}
