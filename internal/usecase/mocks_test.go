package usecase_test

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"preorder/internal/domain/model"
	repo "preorder/internal/repository"
	"preorder/internal/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders    repo.OrderRepository
	quota     repo.QuotaRepository
	auditLogs repo.AuditLogRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository       { return r.orders }
func (r *TxReposMock) Quota() repo.QuotaRepository        { return r.quota }
func (r *TxReposMock) AuditLogs() repo.AuditLogRepository { return r.auditLogs }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindByIDAndPhone(ctx context.Context, orderID int64, phone string) (model.Order, error) {
	args := m.Called(ctx, orderID, phone)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) (bool, error) {
	args := m.Called(ctx, orderID, status)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) Delete(ctx context.Context, orderID int64) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ListRecent(ctx context.Context, limit int) ([]model.Order, error) {
	args := m.Called(ctx, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Error(1)
}

type QuotaRepoMock struct{ mock.Mock }

func (m *QuotaRepoMock) SumQuantityBetween(ctx context.Context, from, to time.Time) (int, error) {
	args := m.Called(ctx, from, to)
	return args.Int(0), args.Error(1)
}

func (m *QuotaRepoMock) LockDay(ctx context.Context, day time.Time) error {
	args := m.Called(ctx, day)
	return args.Error(0)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Notify(ctx context.Context, ev stock.Event) {
	m.Called(ctx, ev)
}

// =====================
// 固定時計
// =====================

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// =====================
// 並行テスト用のインメモリ実装（1操作ずつしかロックしない）
// =====================

type memStore struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]model.Order
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[int64]model.Order)}
}

func (s *memStore) Create(_ context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	order.ID = s.nextID
	s.orders[order.ID] = *order
	return nil
}

func (s *memStore) FindByID(_ context.Context, orderID int64) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (s *memStore) FindByIDAndPhone(ctx context.Context, orderID int64, phone string) (model.Order, error) {
	o, err := s.FindByID(ctx, orderID)
	if err != nil || o.Phone != phone {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (s *memStore) UpdateStatus(_ context.Context, orderID int64, status model.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, nil
	}
	o.Status = status
	s.orders[orderID] = o
	return true, nil
}

func (s *memStore) Delete(_ context.Context, orderID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[orderID]; !ok {
		return false, nil
	}
	delete(s.orders, orderID)
	return true, nil
}

func (s *memStore) ListRecent(_ context.Context, limit int) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) SumQuantityBetween(_ context.Context, from, to time.Time) (int, error) {
	s.mu.Lock()
	total := 0
	for _, o := range s.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			total += o.Quantity
		}
	}
	s.mu.Unlock()
	// 読み取りとINSERTの間に他のgoroutineを割り込ませる
	runtime.Gosched()
	return total, nil
}

func (s *memStore) LockDay(context.Context, time.Time) error { return nil }

func (s *memStore) committed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, o := range s.orders {
		total += o.Quantity
	}
	return total
}

type memTx struct{ store *memStore }

func (t memTx) WithinTx(_ context.Context, fn func(r repo.TxRepos) error) error {
	return fn(&TxReposMock{orders: t.store, quota: t.store})
}

// =====================
// Helper: error contains
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}
