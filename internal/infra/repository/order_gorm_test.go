package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"preorder/internal/domain/model"
	"preorder/internal/infra/db"
	infraRepo "preorder/internal/infra/repository"
	repo "preorder/internal/repository"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "orders.sqlite"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func newOrder(qty int, createdAt time.Time) *model.Order {
	return &model.Order{
		Name:          "Kim",
		Phone:         "010-1234-5678",
		Quantity:      qty,
		PickupSlot:    "15:00-20:00",
		DepositorName: "Kim",
		Status:        model.OrderStatusAwaitingPayment,
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     createdAt.UTC(),
	}
}

func TestOrderGormRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	r := infraRepo.NewOrderGormRepository(openTestDB(t))

	o := newOrder(3, time.Now())
	require.NoError(t, r.Create(ctx, o))
	require.NotZero(t, o.ID)

	got, err := r.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)
	assert.Equal(t, model.OrderStatusAwaitingPayment, got.Status)

	got, err = r.FindByIDAndPhone(ctx, o.ID, "010-1234-5678")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = r.FindByIDAndPhone(ctx, o.ID, "010-9999-9999")
	assert.True(t, errors.Is(err, repo.ErrNotFound))

	ok, err := r.UpdateStatus(ctx, o.ID, model.OrderStatusPaid)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = r.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, got.Status)

	ok, err = r.UpdateStatus(ctx, 9999, model.OrderStatusPaid)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Delete(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = r.FindByID(ctx, o.ID)
	assert.True(t, errors.Is(err, repo.ErrNotFound))

	ok, err = r.Delete(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderGormRepository_ListRecent(t *testing.T) {
	ctx := context.Background()
	r := infraRepo.NewOrderGormRepository(openTestDB(t))

	base := time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Create(ctx, newOrder(1, base.Add(time.Duration(i)*time.Minute))))
	}

	items, err := r.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	// 新しい順
	assert.True(t, items[0].CreatedAt.After(items[1].CreatedAt))
	assert.True(t, items[1].CreatedAt.After(items[2].CreatedAt))
	assert.Equal(t, int64(5), items[0].ID)
}

func TestQuotaGormRepository_SumQuantityBetween(t *testing.T) {
	ctx := context.Background()
	gdb := openTestDB(t)
	orders := infraRepo.NewOrderGormRepository(gdb)
	quota := infraRepo.NewQuotaGormRepository(gdb)

	kst := time.FixedZone("KST", 9*60*60)
	dayStart := time.Date(2026, 10, 14, 0, 0, 0, 0, kst)
	dayEnd := dayStart.AddDate(0, 0, 1)

	// 前日の最後、当日の最初と最後、翌日の最初
	require.NoError(t, orders.Create(ctx, newOrder(10, dayStart.Add(-time.Second))))
	require.NoError(t, orders.Create(ctx, newOrder(3, dayStart)))
	require.NoError(t, orders.Create(ctx, newOrder(4, dayEnd.Add(-time.Second))))
	require.NoError(t, orders.Create(ctx, newOrder(20, dayEnd)))

	total, err := quota.SumQuantityBetween(ctx, dayStart, dayEnd)
	require.NoError(t, err)
	assert.Equal(t, 7, total)

	// 空の日は0
	total, err = quota.SumQuantityBetween(ctx, dayEnd.AddDate(0, 0, 5), dayEnd.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	// SQLiteでは何もしない
	assert.NoError(t, quota.LockDay(ctx, dayStart))
}

func TestTxManagerGorm_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	gdb := openTestDB(t)
	txm := infraRepo.NewTxManagerGorm(gdb)
	orders := infraRepo.NewOrderGormRepository(gdb)

	boom := errors.New("boom")
	err := txm.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Orders().Create(ctx, newOrder(2, time.Now())); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	items, err := orders.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)

	// コミットされる場合
	err = txm.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Orders().Create(ctx, newOrder(2, time.Now())); err != nil {
			return err
		}
		return r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        "token",
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   1,
			BeforeJSON:   `{"status":"pending_payment"}`,
			AfterJSON:    `{"status":"paid"}`,
			CreatedAt:    time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	items, err = orders.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestAuditLogGormRepository_List(t *testing.T) {
	ctx := context.Background()
	r := infraRepo.NewAuditLogGormRepository(openTestDB(t))

	for i, actor := range []string{"token", "owner", "token"} {
		require.NoError(t, r.Create(ctx, model.AuditLog{
			Actor:        actor,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   int64(i%2 + 1),
			CreatedAt:    time.Now().UTC(),
		}))
	}

	rt := model.AuditResourceOrder
	id := int64(1)
	logs, err := r.List(ctx, repo.AuditLogFilter{ResourceType: &rt, ResourceID: &id})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Greater(t, logs[0].ID, logs[1].ID)

	actor := "owner"
	logs, err = r.List(ctx, repo.AuditLogFilter{Actor: &actor})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(2), logs[0].ResourceID)
}
