package usecase

import (
	"context"
	"encoding/json"
	"strings"

	"preorder/internal/domain/model"
	repo "preorder/internal/repository"
	"preorder/internal/stock"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const maxRecentOrders = 200

type AdminOrderUsecase struct {
	tx          repo.TransactionManager
	orders      repo.OrderRepository
	auditRepo   repo.AuditLogRepository
	codec       model.OrderCodec
	notifier    stock.Notifier
	clock       Clock
	recentLimit int
}

func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	auditRepo repo.AuditLogRepository,
	codec model.OrderCodec,
	notifier stock.Notifier,
	clock Clock,
	recentLimit int,
) *AdminOrderUsecase {
	if notifier == nil {
		notifier = stock.NopNotifier{}
	}
	if recentLimit <= 0 || recentLimit > maxRecentOrders {
		recentLimit = maxRecentOrders
	}
	return &AdminOrderUsecase{
		tx:          tx,
		orders:      orders,
		auditRepo:   auditRepo,
		codec:       codec,
		notifier:    notifier,
		clock:       clock,
		recentLimit: recentLimit,
	}
}

// 運営者の操作と遷移先の対応
type OperatorAction string

const (
	ActionMarkPaid        OperatorAction = "mark-paid"
	ActionMarkPending     OperatorAction = "mark-pending"
	ActionMarkPickedUp    OperatorAction = "mark-picked-up"
	ActionMarkNotPickedUp OperatorAction = "mark-not-picked-up"
)

// TargetStatus は操作の遷移先。受け取り取消は途中の状態に関係なく常に paid に戻す。
func (a OperatorAction) TargetStatus() (model.OrderStatus, bool) {
	switch a {
	case ActionMarkPaid:
		return model.OrderStatusPaid, true
	case ActionMarkPending:
		return model.OrderStatusAwaitingPayment, true
	case ActionMarkPickedUp:
		return model.OrderStatusPickedUp, true
	case ActionMarkNotPickedUp:
		return model.OrderStatusPaid, true
	default:
		return "", false
	}
}

// 最近の注文一覧（新しい順、上限あり）
func (u *AdminOrderUsecase) ListRecent(ctx context.Context, limit int) ([]OrderOutput, error) {
	if limit <= 0 || limit > u.recentLimit {
		limit = u.recentLimit
	}

	orders, err := u.orders.ListRecent(ctx, limit)
	if err != nil {
		return []OrderOutput{}, storageFailure(err, "list recent orders")
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(u.codec, o))
	}
	return outs, nil
}

// Transition は指定のステータスをそのまま適用する。
// 同じステータスなら何もせず成功扱い。状態遷移図にない飛び越しも適用するが warn を残す。
func (u *AdminOrderUsecase) Transition(ctx context.Context, actor string, orderID int64, target model.OrderStatus) error {
	if strings.TrimSpace(actor) == "" {
		return NewUnauthorizedError()
	}
	if orderID <= 0 {
		return NewValidationError("invalid id")
	}
	if !target.Valid() {
		return NewValidationError("invalid status")
	}

	changed := false
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFoundError()
		}
		if err != nil {
			return storageFailure(err, "find order")
		}

		// すでに同じなら何もしない（200）
		if o.Status == target {
			return nil
		}
		if !o.Status.CanTransitionTo(target) {
			zerolog.Ctx(ctx).Warn().
				Int64("order_id", orderID).
				Str("from", string(o.Status)).
				Str("to", string(target)).
				Msg("status jump outside transition graph")
		}

		before, err := statusJSON(o.Status)
		if err != nil {
			return storageFailure(err, "marshal audit before")
		}
		after, err := statusJSON(target)
		if err != nil {
			return storageFailure(err, "marshal audit after")
		}

		ok, err := r.Orders().UpdateStatus(ctx, orderID, target)
		if err != nil {
			return storageFailure(err, "update order status")
		}
		if !ok {
			return NewNotFoundError()
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        actor,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   before,
			AfterJSON:    after,
			CreatedAt:    u.clock.Now().UTC(),
		}); err != nil {
			return storageFailure(err, "create audit log")
		}
		changed = true
		return nil
	})
	if err != nil {
		return storageFailure(err, "transition order")
	}

	if changed {
		zerolog.Ctx(ctx).Info().Int64("order_id", orderID).Str("status", string(target)).Str("actor", actor).Msg("order status changed")
		u.notifier.Notify(ctx, stock.Event{Reason: stock.ReasonStatusChanged, OrderID: orderID, At: u.clock.Now().UTC()})
	}
	return nil
}

// Apply は運営者の操作名で Transition する
func (u *AdminOrderUsecase) Apply(ctx context.Context, actor string, orderID int64, action OperatorAction) error {
	target, ok := action.TargetStatus()
	if !ok {
		return NewValidationError("invalid action")
	}
	return u.Transition(ctx, actor, orderID, target)
}

// Delete は注文を物理削除する（以後の残数計算・一覧から外れる）
func (u *AdminOrderUsecase) Delete(ctx context.Context, actor string, orderID int64) error {
	if strings.TrimSpace(actor) == "" {
		return NewUnauthorizedError()
	}
	if orderID <= 0 {
		return NewValidationError("invalid id")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFoundError()
		}
		if err != nil {
			return storageFailure(err, "find order")
		}

		before, err := json.Marshal(toOrderOutput(u.codec, o))
		if err != nil {
			return storageFailure(err, "marshal audit before")
		}

		ok, err := r.Orders().Delete(ctx, orderID)
		if err != nil {
			return storageFailure(err, "delete order")
		}
		if !ok {
			return NewNotFoundError()
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        actor,
			Action:       model.AuditActionDeleteOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   string(before),
			AfterJSON:    "null",
			CreatedAt:    u.clock.Now().UTC(),
		}); err != nil {
			return storageFailure(err, "create audit log")
		}
		return nil
	})
	if err != nil {
		return storageFailure(err, "delete order")
	}

	zerolog.Ctx(ctx).Info().Int64("order_id", orderID).Str("actor", actor).Msg("order deleted")
	u.notifier.Notify(ctx, stock.Event{Reason: stock.ReasonOrderDeleted, OrderID: orderID, At: u.clock.Now().UTC()})
	return nil
}

// AuditTrail は注文1件分の監査ログ（新しい順）
func (u *AdminOrderUsecase) AuditTrail(ctx context.Context, orderID int64, limit int) ([]model.AuditLog, error) {
	if orderID <= 0 {
		return []model.AuditLog{}, NewValidationError("invalid id")
	}
	resourceType := model.AuditResourceOrder
	logs, err := u.auditRepo.List(ctx, repo.AuditLogFilter{
		ResourceType: &resourceType,
		ResourceID:   &orderID,
		Limit:        limit,
	})
	if err != nil {
		return []model.AuditLog{}, storageFailure(err, "list audit logs")
	}
	return logs, nil
}

func statusJSON(s model.OrderStatus) (string, error) {
	b, err := json.Marshal(struct {
		Status model.OrderStatus `json:"status"`
	}{Status: s})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
